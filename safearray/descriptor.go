package safearray

import (
	"encoding/binary"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
)

const (
	HeaderSize = 16
	BoundSize  = 8
	PrefixSize = 16

	// MaxDims bounds cDims to keep bound reads finite.
	MaxDims = 64
)

// Feature flags (fFeatures).
const (
	FeatureAuto        uint16 = 0x0001
	FeatureStatic      uint16 = 0x0002
	FeatureEmbedded    uint16 = 0x0004
	FeatureFixedSize   uint16 = 0x0010
	FeatureRecord      uint16 = 0x0020
	FeatureHaveIID     uint16 = 0x0040
	FeatureHaveVarType uint16 = 0x0080
	FeatureBSTR        uint16 = 0x0100
	FeatureUnknown     uint16 = 0x0200
	FeatureDispatch    uint16 = 0x0400
	FeatureVariant     uint16 = 0x0800
)

// Element tags implied by feature flags when no explicit tag is stored.
const (
	tagBSTR     uint16 = 8
	tagDispatch uint16 = 9
	tagVariant  uint16 = 12
	tagUnknown  uint16 = 13
	tagRecord   uint16 = 36
)

// Bound is one dimension of a safe array.
type Bound struct {
	Count uint32
	Lower int32
}

// Upper returns the inclusive upper bound.
func (b Bound) Upper() int64 {
	return int64(b.Lower) + int64(b.Count) - 1
}

// Descriptor is a read-only view of a safe-array descriptor. It is a
// snapshot taken by Open; later writes to memory are not reflected.
type Descriptor struct {
	raw      []Bound
	addr     uint32
	elemSize uint32
	locks    uint32
	data     uint32
	vartype  uint16
	features uint16
	hasVT    bool
}

// Open reads the descriptor at addr.
func Open(mem variantruntime.Memory, addr uint32) (*Descriptor, error) {
	if addr == 0 {
		return nil, errors.NilPointer(errors.PhaseDecode, nil, "safe array")
	}
	hdr, err := mem.Read(addr, HeaderSize)
	if err != nil {
		return nil, err
	}
	dims := binary.LittleEndian.Uint16(hdr[0:])
	if dims == 0 {
		return nil, errors.InvalidDescriptor(nil, "zero dimensions")
	}
	if dims > MaxDims {
		return nil, errors.InvalidDescriptor(nil, "too many dimensions")
	}
	d := &Descriptor{
		addr:     addr,
		features: binary.LittleEndian.Uint16(hdr[2:]),
		elemSize: binary.LittleEndian.Uint32(hdr[4:]),
		locks:    binary.LittleEndian.Uint32(hdr[8:]),
		data:     binary.LittleEndian.Uint32(hdr[12:]),
		raw:      make([]Bound, dims),
	}
	bounds, err := mem.Read(addr+HeaderSize, uint32(dims)*BoundSize)
	if err != nil {
		return nil, err
	}
	for r := range d.raw {
		rec := bounds[r*BoundSize:]
		d.raw[r] = Bound{Count: binary.LittleEndian.Uint32(rec), Lower: int32(binary.LittleEndian.Uint32(rec[4:]))}
	}

	switch {
	case d.features&FeatureHaveVarType != 0:
		if addr < 4 {
			return nil, errors.InvalidDescriptor(nil, "element tag prefix below address 0")
		}
		vt, err := mem.ReadU32(addr - 4)
		if err != nil {
			return nil, err
		}
		d.vartype, d.hasVT = uint16(vt), true
	case d.features&FeatureBSTR != 0:
		d.vartype, d.hasVT = tagBSTR, true
	case d.features&FeatureUnknown != 0:
		d.vartype, d.hasVT = tagUnknown, true
	case d.features&FeatureDispatch != 0:
		d.vartype, d.hasVT = tagDispatch, true
	case d.features&FeatureVariant != 0:
		d.vartype, d.hasVT = tagVariant, true
	case d.features&FeatureRecord != 0:
		d.vartype, d.hasVT = tagRecord, true
	}
	return d, nil
}

// Addr returns the descriptor address.
func (d *Descriptor) Addr() uint32 { return d.addr }

// DimensionCount returns cDims.
func (d *Descriptor) DimensionCount() int { return len(d.raw) }

// Bounds returns the bound of logical dimension dim.
func (d *Descriptor) Bounds(dim int) Bound {
	return d.raw[len(d.raw)-1-dim]
}

// RawBounds returns the bound records in storage order. The slice must not
// be modified.
func (d *Descriptor) RawBounds() []Bound { return d.raw }

// ElementByteSize returns cbElements.
func (d *Descriptor) ElementByteSize() uint32 { return d.elemSize }

// DeclaredElementKind returns the element tag recorded in the descriptor,
// either stored explicitly or implied by its feature flags.
func (d *Descriptor) DeclaredElementKind() (uint16, bool) { return d.vartype, d.hasVT }

// RawPointer returns pvData.
func (d *Descriptor) RawPointer() uint32 { return d.data }

// Features returns fFeatures.
func (d *Descriptor) Features() uint16 { return d.features }

// Locks returns cLocks.
func (d *Descriptor) Locks() uint32 { return d.locks }

// ElementCount returns the product of all dimension counts, failing with
// InvalidDescriptor when it does not fit in limit.
func (d *Descriptor) ElementCount(limit uint64) (uint64, error) {
	total := uint64(1)
	for _, b := range d.raw {
		if b.Count != 0 && total > limit/uint64(b.Count) {
			return 0, errors.InvalidDescriptor(nil, "element count overflow")
		}
		total *= uint64(b.Count)
	}
	return total, nil
}

// DataSize returns ElementCount * ElementByteSize, bounded by limit.
func (d *Descriptor) DataSize(limit uint64) (uint64, error) {
	n, err := d.ElementCount(limit)
	if err != nil {
		return 0, err
	}
	if d.elemSize != 0 && n > limit/uint64(d.elemSize) {
		return 0, errors.InvalidDescriptor(nil, "data size overflow")
	}
	return n * uint64(d.elemSize), nil
}

// Offset returns the column-major element index of a logical index tuple.
func (d *Descriptor) Offset(index ...int) (uint64, error) {
	if len(index) != len(d.raw) {
		return 0, errors.InvalidData(errors.PhaseDecode, nil, "index rank does not match descriptor")
	}
	var off, stride uint64 = 0, 1
	for dim := range index {
		b := d.Bounds(dim)
		rel := int64(index[dim]) - int64(b.Lower)
		if rel < 0 || rel >= int64(b.Count) {
			return 0, errors.OutOfBounds(errors.PhaseDecode, nil, index[dim], int(b.Count))
		}
		off += uint64(rel) * stride
		stride *= uint64(b.Count)
	}
	return off, nil
}
