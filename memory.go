package variantruntime

// Memory is a 32-bit linear address space holding tagged values, strings,
// safe-array descriptors and their data buffers. All multi-byte accessors
// are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the address space in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator hands out buffers inside a Memory. Free releases a buffer
// returned by Alloc; the allocator tracks buffer sizes itself, the way a
// task allocator does, so callers never pass a length back. Alloc need not
// zero the buffer.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr uint32)
}
