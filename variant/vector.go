package variant

import (
	"math"

	"github.com/wippyai/variant-runtime/errors"
)

// vectorElementKind reports whether k may be the element kind of a
// counted vector.
func vectorElementKind(k Kind) bool {
	switch k {
	case KindI1, KindUI1, KindI2, KindUI2, KindI4, KindUI4, KindI8, KindUI8,
		KindInt, KindUint, KindR4, KindR8, KindCY, KindDate, KindBSTR,
		KindBool, KindError, KindFileTime, KindLPSTR, KindLPWSTR, KindCLSID,
		KindCF, KindVariant, KindUnknown, KindDispatch:
		return true
	}
	return false
}

func (c *Converter) decodeVector(kind Kind, count, ptr uint32, path []string, depth int) (any, error) {
	if !vectorElementKind(kind) {
		return nil, errors.UnsupportedVectorElementKind(path, kind.String())
	}
	if ptr == 0 {
		return nil, nil
	}
	if uint64(count) > c.maxElems {
		return nil, errors.Overflow(errors.PhaseDecode, path, count, "vector element limit")
	}

	out := NewVector(kind, make([]any, count))
	if count == 0 {
		return out, nil
	}
	size, _ := inlineSize(kind)
	if uint64(count)*uint64(size) > math.MaxUint32 {
		return nil, errors.Overflow(errors.PhaseDecode, path, count, "vector byte size")
	}
	data, err := c.mem.Read(ptr, count*size)
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}
	if err := c.copyElements(kind, size, data, out.Elements, path, depth); err != nil {
		return nil, err
	}
	return out, nil
}
