package interop

import (
	"encoding/binary"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
)

// MaxStringBytes bounds the scan for a string terminator.
const MaxStringBytes = 1 << 30

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Strings marshals strings between Go and linear memory.
type Strings struct {
	mem    variantruntime.Memory
	alloc  variantruntime.Allocator
	narrow *charmap.Charmap
}

// NewStrings creates a marshaler. Narrow strings use Windows-1252.
func NewStrings(mem variantruntime.Memory, alloc variantruntime.Allocator) *Strings {
	return &Strings{mem: mem, alloc: alloc, narrow: charmap.Windows1252}
}

// WithCodePage returns a copy using cm for LPSTR data.
func (s *Strings) WithCodePage(cm *charmap.Charmap) *Strings {
	cp := *s
	cp.narrow = cm
	return &cp
}

// BSTR reads a length-prefixed wide string. A null BSTR is the empty string.
func (s *Strings) BSTR(ptr uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	if ptr < 4 {
		return "", errors.InvalidData(errors.PhaseDecode, nil, "BSTR pointer below length prefix")
	}
	n, err := s.mem.ReadU32(ptr - 4)
	if err != nil {
		return "", err
	}
	if n > MaxStringBytes {
		return "", errors.Overflow(errors.PhaseDecode, nil, n, "BSTR length")
	}
	data, err := s.mem.Read(ptr, n&^1)
	if err != nil {
		return "", err
	}
	return decodeWide(data)
}

// Wide reads a NUL-terminated UTF-16LE string.
func (s *Strings) Wide(ptr uint32) (string, error) {
	n, err := s.scan(ptr, 2)
	if err != nil {
		return "", err
	}
	data, err := s.mem.Read(ptr, n)
	if err != nil {
		return "", err
	}
	return decodeWide(data)
}

// Narrow reads a NUL-terminated narrow string.
func (s *Strings) Narrow(ptr uint32) (string, error) {
	n, err := s.scan(ptr, 1)
	if err != nil {
		return "", err
	}
	data, err := s.mem.Read(ptr, n)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		b.WriteRune(s.narrow.DecodeByte(c))
	}
	return b.String(), nil
}

// scan returns the byte length of a string up to its terminator of the given unit width.
func (s *Strings) scan(ptr uint32, unit uint32) (uint32, error) {
	if ptr == 0 {
		return 0, errors.NilPointer(errors.PhaseDecode, nil, "string pointer")
	}
	var n uint32
	for n < MaxStringBytes {
		var c uint32
		var err error
		if unit == 2 {
			var v uint16
			v, err = s.mem.ReadU16(ptr + n)
			c = uint32(v)
		} else {
			var v uint8
			v, err = s.mem.ReadU8(ptr + n)
			c = uint32(v)
		}
		if err != nil {
			return 0, err
		}
		if c == 0 {
			return n, nil
		}
		n += unit
	}
	return 0, errors.Overflow(errors.PhaseDecode, nil, n, "string length")
}

// AllocBSTR copies str into a new BSTR and returns the data pointer.
func (s *Strings) AllocBSTR(str string) (uint32, error) {
	data, err := encodeWide(str)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 4+len(data)+2)
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	base, err := s.alloc.Alloc(uint32(len(buf)), 4)
	if err != nil {
		return 0, err
	}
	if err := s.mem.Write(base, buf); err != nil {
		s.alloc.Free(base)
		return 0, err
	}
	return base + 4, nil
}

// AllocWide copies str into a new NUL-terminated UTF-16LE buffer.
func (s *Strings) AllocWide(str string) (uint32, error) {
	data, err := encodeWide(str)
	if err != nil {
		return 0, err
	}
	return s.allocTerminated(data, 2)
}

// AllocNarrow copies str into a new NUL-terminated narrow buffer.
// Characters the narrow encoding cannot represent become '?'.
func (s *Strings) AllocNarrow(str string) (uint32, error) {
	data := make([]byte, 0, len(str))
	for _, r := range str {
		c, ok := s.narrow.EncodeRune(r)
		if !ok {
			c = '?'
		}
		data = append(data, c)
	}
	return s.allocTerminated(data, 1)
}

func (s *Strings) allocTerminated(data []byte, unit uint32) (uint32, error) {
	buf := make([]byte, uint32(len(data))+unit)
	copy(buf, data)
	ptr, err := s.alloc.Alloc(uint32(len(buf)), unit)
	if err != nil {
		return 0, err
	}
	if err := s.mem.Write(ptr, buf); err != nil {
		s.alloc.Free(ptr)
		return 0, err
	}
	return ptr, nil
}

// FreeBSTR releases a BSTR returned by AllocBSTR. Null is ignored.
func (s *Strings) FreeBSTR(ptr uint32) {
	if ptr < 4 {
		return
	}
	s.alloc.Free(ptr - 4)
}

// Free releases an LPWSTR or LPSTR buffer. Null is ignored.
func (s *Strings) Free(ptr uint32) {
	if ptr == 0 {
		return
	}
	s.alloc.Free(ptr)
}

func decodeWide(data []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "wide string")
	}
	return string(out), nil
}

func encodeWide(str string) ([]byte, error) {
	out, err := utf16le.NewEncoder().Bytes([]byte(str))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "wide string")
	}
	return out, nil
}
