package safearray

import (
	"encoding/binary"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
)

// Layout describes a safe array to create.
type Layout struct {
	// Bounds in logical dimension order.
	Bounds []Bound
	// ElementSize is cbElements.
	ElementSize uint32
	// ElementKind is the element tag recorded at descriptor - 4. Zero
	// with OmitKind leaves the array without a declared element kind.
	ElementKind uint16
	// Features are OR-ed into the computed feature flags.
	Features uint16
	// OmitKind clears FeatureHaveVarType and the kind-implied flags.
	OmitKind bool
}

// Create allocates a descriptor and a zeroed column-major data buffer.
// The descriptor block carries a PrefixSize header holding the element tag.
func Create(mem variantruntime.Memory, alloc variantruntime.Allocator, l Layout) (*Descriptor, error) {
	if len(l.Bounds) == 0 || len(l.Bounds) > MaxDims {
		return nil, errors.InvalidDescriptor(nil, "dimension count out of range")
	}
	size := uint64(l.ElementSize)
	for _, b := range l.Bounds {
		size *= uint64(b.Count)
		if size > 1<<31 {
			return nil, errors.InvalidDescriptor(nil, "data size overflow")
		}
	}

	features := l.Features
	if !l.OmitKind {
		features |= FeatureHaveVarType | impliedFeatures(l.ElementKind)
	}

	dims := uint32(len(l.Bounds))
	block, err := alloc.Alloc(PrefixSize+HeaderSize+dims*BoundSize, 8)
	if err != nil {
		return nil, err
	}
	addr := block + PrefixSize

	var data uint32
	if size > 0 {
		data, err = alloc.Alloc(uint32(size), dataAlign(l.ElementSize))
		if err != nil {
			alloc.Free(block)
			return nil, err
		}
		// allocators need not zero; unwritten elements must read as null
		if err := mem.Write(data, make([]byte, size)); err != nil {
			freeAll(alloc, block, data)
			return nil, err
		}
	}

	hdr := make([]byte, HeaderSize+dims*BoundSize)
	putU16(hdr[0:], uint16(dims))
	putU16(hdr[2:], features)
	putU32(hdr[4:], l.ElementSize)
	putU32(hdr[12:], data)
	for dim, b := range l.Bounds {
		rec := hdr[HeaderSize+uint32(len(l.Bounds)-1-dim)*BoundSize:]
		putU32(rec, b.Count)
		putU32(rec[4:], uint32(b.Lower))
	}
	if !l.OmitKind {
		if err := mem.WriteU32(addr-4, uint32(l.ElementKind)); err != nil {
			freeAll(alloc, block, data)
			return nil, err
		}
	}
	if err := mem.Write(addr, hdr); err != nil {
		freeAll(alloc, block, data)
		return nil, err
	}
	return Open(mem, addr)
}

// Owner is implemented by allocators that can tell whether they handed
// out a pointer, such as memory.Heap.
type Owner interface {
	SizeOf(ptr uint32) (uint32, bool)
}

// CheckDestroy reports whether Destroy would free d. Locked arrays fail.
// When alloc implements Owner, an array whose descriptor block or data
// buffer alloc did not allocate fails as well; other allocators are
// trusted to have produced d through Create.
func CheckDestroy(alloc variantruntime.Allocator, d *Descriptor) error {
	if d.locks > 0 {
		return errors.New(errors.PhaseClear, errors.KindInvalidDescriptor).
			Detail("array is locked (%d)", d.locks).
			Build()
	}
	if d.features&(FeatureStatic|FeatureEmbedded|FeatureAuto) != 0 {
		return nil
	}
	if d.addr < PrefixSize {
		return errors.InvalidDescriptor(nil, "descriptor has no Create prefix")
	}
	owner, ok := alloc.(Owner)
	if !ok {
		return nil
	}
	if _, ok := owner.SizeOf(d.addr - PrefixSize); !ok {
		return errors.New(errors.PhaseClear, errors.KindInvalidDescriptor).
			Detail("descriptor 0x%x was not allocated by Create", d.addr).
			Build()
	}
	if _, ok := owner.SizeOf(d.data); d.data != 0 && !ok {
		return errors.New(errors.PhaseClear, errors.KindInvalidDescriptor).
			Detail("data buffer 0x%x is not owned by the allocator", d.data).
			Build()
	}
	return nil
}

// Destroy frees the data buffer and descriptor block of an array produced
// by Create. Element resources must be released by the caller first.
// Arrays flagged static, embedded or auto are caller-owned and left alone.
// Arrays CheckDestroy rejects are not touched and its error is returned.
func Destroy(alloc variantruntime.Allocator, d *Descriptor) error {
	if err := CheckDestroy(alloc, d); err != nil {
		return err
	}
	if d.features&(FeatureStatic|FeatureEmbedded|FeatureAuto) != 0 {
		return nil
	}
	freeAll(alloc, d.addr-PrefixSize, d.data)
	return nil
}

// WriteElement stores raw element bytes at a logical index tuple.
func (d *Descriptor) WriteElement(mem variantruntime.Memory, raw []byte, index ...int) error {
	off, err := d.Offset(index...)
	if err != nil {
		return err
	}
	if uint32(len(raw)) != d.elemSize {
		return errors.InvalidData(errors.PhaseEncode, nil, "element size does not match descriptor")
	}
	return mem.Write(d.data+uint32(off)*d.elemSize, raw)
}

// ElementAddr returns the address of the element at column-major position i.
func (d *Descriptor) ElementAddr(i uint64) uint32 {
	return d.data + uint32(i)*d.elemSize
}

func impliedFeatures(kind uint16) uint16 {
	switch kind {
	case tagBSTR:
		return FeatureBSTR
	case tagUnknown:
		return FeatureUnknown
	case tagDispatch:
		return FeatureDispatch
	case tagVariant:
		return FeatureVariant
	case tagRecord:
		return FeatureRecord
	}
	return 0
}

func dataAlign(elemSize uint32) uint32 {
	switch {
	case elemSize >= 8 && elemSize%8 == 0:
		return 8
	case elemSize >= 4 && elemSize%4 == 0:
		return 4
	case elemSize%2 == 0:
		return 2
	}
	return 1
}

func freeAll(alloc variantruntime.Allocator, ptrs ...uint32) {
	for _, p := range ptrs {
		if p != 0 {
			alloc.Free(p)
		}
	}
}

func putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
