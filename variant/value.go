package variant

import (
	"encoding/binary"
	"encoding/hex"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
)

// Size is the byte size of a tagged value in linear memory.
const Size = 16

// Field offsets inside a tagged value.
const (
	tagOffset     = 0
	payloadOffset = 8

	// vector and BLOB counted forms
	countOffset   = 8
	elemPtrOffset = 12

	// DECIMAL overlays the reserved words
	decimalScaleOffset = 2
	decimalSignOffset  = 3
	decimalHiOffset    = 4
	decimalLoOffset    = 8
)

// Value is a tagged value in the 32-bit layout: a 16-bit tag followed by
// reserved words and an 8-byte payload whose meaning depends on the tag.
// Pointers in the payload are 4-byte addresses into a Memory. The zero
// Value is EMPTY.
//
// Values are compared and copied by value. A Value that owns resources
// (strings, buffers, object references) must be released with
// Converter.Clear exactly once; copies share those resources.
type Value struct {
	raw [Size]byte
}

// Tag returns the discriminant.
func (v *Value) Tag() Tag {
	return Tag(binary.LittleEndian.Uint16(v.raw[tagOffset:]))
}

// Bytes returns a copy of the 16-byte wire form.
func (v *Value) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, v.raw[:])
	return out
}

// String renders the tag and raw bytes, for diagnostics.
func (v *Value) String() string {
	return v.Tag().String() + " " + hex.EncodeToString(v.raw[:])
}

// FromBytes builds a Value from its 16-byte wire form.
func FromBytes(b []byte) (Value, error) {
	var v Value
	if len(b) != Size {
		return v, errors.InvalidData(errors.PhaseLoad, nil, "tagged value must be 16 bytes")
	}
	copy(v.raw[:], b)
	return v, nil
}

// Load reads a tagged value from mem at addr.
func Load(mem variantruntime.Memory, addr uint32) (Value, error) {
	b, err := mem.Read(addr, Size)
	if err != nil {
		return Value{}, err
	}
	return FromBytes(b)
}

// Store writes v to mem at addr.
func (v *Value) Store(mem variantruntime.Memory, addr uint32) error {
	return mem.Write(addr, v.raw[:])
}

func newValue(t Tag) Value {
	var v Value
	binary.LittleEndian.PutUint16(v.raw[tagOffset:], uint16(t))
	return v
}

func (v *Value) u8(off int) uint8 { return v.raw[off] }
func (v *Value) u32(off int) uint32 { return binary.LittleEndian.Uint32(v.raw[off:]) }
func (v *Value) u64(off int) uint64 { return binary.LittleEndian.Uint64(v.raw[off:]) }
func (v *Value) payload() []byte { return v.raw[payloadOffset:] }
func (v *Value) pointer() uint32 { return v.u32(payloadOffset) }
func (v *Value) putU32(off int, x uint32) { binary.LittleEndian.PutUint32(v.raw[off:], x) }
func (v *Value) putU64(off int, x uint64) { binary.LittleEndian.PutUint64(v.raw[off:], x) }
