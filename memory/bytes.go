package memory

import (
	"encoding/binary"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
)

// Bytes is a linear memory backed by a Go byte slice.
type Bytes struct {
	data []byte
}

// NewBytes allocates a zeroed memory of size bytes.
func NewBytes(size uint32) *Bytes {
	return &Bytes{data: make([]byte, size)}
}

// FromBytes wraps an existing image without copying it.
func FromBytes(data []byte) *Bytes {
	return &Bytes{data: data}
}

func (m *Bytes) check(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return errors.MemoryOutOfBounds(offset, length)
	}
	return nil
}

// Read returns a view of length bytes at offset. The view aliases memory.
func (m *Bytes) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length : offset+length], nil
}

// Write copies data into memory at offset.
func (m *Bytes) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Bytes) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Bytes) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *Bytes) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Bytes) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *Bytes) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Bytes) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *Bytes) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *Bytes) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

// Size returns the memory size in bytes.
func (m *Bytes) Size() uint32 {
	return uint32(len(m.data))
}

// Data exposes the backing slice, e.g. for dumping an image to disk.
func (m *Bytes) Data() []byte {
	return m.data
}

var _ variantruntime.Memory = (*Bytes)(nil)
var _ variantruntime.MemorySizer = (*Bytes)(nil)
