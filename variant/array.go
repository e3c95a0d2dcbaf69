package variant

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/safearray"
)

// arrayElementKind reports whether k may be the element kind of a safe
// array.
func arrayElementKind(k Kind) bool {
	switch k {
	case KindI1, KindUI1, KindI2, KindUI2, KindI4, KindUI4, KindI8, KindUI8,
		KindInt, KindUint, KindR4, KindR8, KindCY, KindDate, KindBSTR,
		KindDispatch, KindError, KindBool, KindVariant, KindUnknown, KindDecimal:
		return true
	}
	return false
}

// compatibleElement reports whether a descriptor declaring elements of
// kind declared can be read as kind want.
func compatibleElement(declared, want Kind) bool {
	if declared == want {
		return true
	}
	switch [2]Kind{declared, want} {
	case [2]Kind{KindInt, KindI4}, [2]Kind{KindI4, KindInt},
		[2]Kind{KindUint, KindUI4}, [2]Kind{KindUI4, KindUint},
		[2]Kind{KindUnknown, KindDispatch}, [2]Kind{KindDispatch, KindUnknown}:
		return true
	}
	return false
}

func (c *Converter) decodeArray(kind Kind, handle uint32, path []string, depth int) (any, error) {
	if handle == 0 {
		return nil, nil
	}
	if kind == KindRecord {
		return nil, errors.RecordMarshalingUnsupported(path)
	}
	if !arrayElementKind(kind) {
		return nil, errors.UnsupportedKind(errors.PhaseDecode, path, (kind.Tag() | FlagArray).String())
	}
	size, _ := inlineSize(kind)

	d, err := safearray.Open(c.mem, handle)
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}
	if err := checkElements(d, kind, size, path); err != nil {
		return nil, err
	}
	n, err := d.ElementCount(c.maxElems)
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}

	rank := d.DimensionCount()
	out := &Array{
		Kind:        kind,
		Lengths:     make([]int, rank),
		LowerBounds: make([]int, rank),
		Elements:    make([]any, n),
	}
	for dim := 0; dim < rank; dim++ {
		b := d.Bounds(dim)
		out.Lengths[dim] = int(b.Count)
		out.LowerBounds[dim] = int(b.Lower)
	}
	if n == 0 {
		return out, nil
	}
	if d.RawPointer() == 0 {
		return nil, errors.InvalidDescriptor(path, "null data pointer")
	}
	if n*uint64(size) > math.MaxUint32 {
		return nil, errors.InvalidDescriptor(path, "data size overflow")
	}
	data, err := c.mem.Read(d.RawPointer(), uint32(n)*size)
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}

	if rank == 1 && d.Bounds(0).Lower == 0 {
		err = c.copyElements(kind, size, data, out.Elements, path, depth)
	} else {
		err = c.transposeElements(kind, size, data, d.RawBounds(), out.Elements, path, depth)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkElements(d *safearray.Descriptor, kind Kind, size uint32, path []string) error {
	if declared, ok := d.DeclaredElementKind(); ok && !compatibleElement(Kind(declared), kind) {
		return errors.ArrayTypeMismatch(path, kind.String(), "descriptor declares "+Kind(declared).String())
	}
	if d.ElementByteSize() != size {
		return errors.ArrayTypeMismatch(path, kind.String(),
			fmt.Sprintf("element size %d, expected %d", d.ElementByteSize(), size))
	}
	return nil
}

// copyElements converts a contiguous run of elements in order.
func (c *Converter) copyElements(kind Kind, size uint32, data []byte, dst []any, path []string, depth int) error {
	for i := range dst {
		elem, err := c.decodeInline(kind, data[uint32(i)*size:uint32(i+1)*size], nil, depth)
		if err != nil {
			return errors.WithPath(err, append(clonePath(path), "["+strconv.Itoa(i)+"]")...)
		}
		dst[i] = elem
	}
	return nil
}

// transposeElements walks a column-major data buffer in storage order and
// scatters each element to its row-major position in dst.
//
// raw holds the bound records as stored, so record 0 describes the last
// logical dimension. The walk keeps one counter per record and advances
// the last record fastest, carrying towards record 0; that visits the
// buffer sequentially. The row-major stride of record r is the product of
// the counts of records before it.
func (c *Converter) transposeElements(kind Kind, size uint32, data []byte, raw []safearray.Bound, dst []any, path []string, depth int) error {
	rank := len(raw)
	cur := getIndexSlice(rank)
	defer putIndexSlice(cur)
	stride := getStrideSlice(rank)
	defer putStrideSlice(stride)

	var acc uint64 = 1
	for r, b := range raw {
		cur[r] = int64(b.Lower)
		stride[r] = acc
		acc *= uint64(b.Count)
	}

	for src := uint64(0); src < uint64(len(dst)); src++ {
		var off uint64
		for r, b := range raw {
			off += uint64(cur[r]-int64(b.Lower)) * stride[r]
		}
		elem, err := c.decodeInline(kind, data[src*uint64(size):(src+1)*uint64(size)], nil, depth)
		if err != nil {
			return errors.WithPath(err, append(clonePath(path), indexLabel(cur))...)
		}
		dst[off] = elem

		for r := rank - 1; r >= 0; r-- {
			cur[r]++
			if cur[r] <= raw[r].Upper() {
				break
			}
			cur[r] = int64(raw[r].Lower)
		}
	}
	return nil
}

// indexLabel formats the record counters as a logical index, "[i,j,k]".
func indexLabel(cur []int64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := len(cur) - 1; i >= 0; i-- {
		b.WriteString(strconv.FormatInt(cur[i], 10))
		if i > 0 {
			b.WriteByte(',')
		}
	}
	b.WriteByte(']')
	return b.String()
}
