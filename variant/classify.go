package variant

import (
	"github.com/wippyai/variant-runtime/errors"
)

// Class is the decomposition of a tag into its base kind and modifiers.
type Class struct {
	Kind     Kind
	ByRef    bool
	IsArray  bool
	IsVector bool
}

// Tag reassembles the class into a tag.
func (c Class) Tag() Tag {
	t := Tag(c.Kind)
	if c.ByRef {
		t |= FlagByRef
	}
	if c.IsArray {
		t |= FlagArray
	}
	if c.IsVector {
		t |= FlagVector
	}
	return t
}

// Classify splits t into kind and modifier flags. It fails with
// InvalidTag when the base kind is at or above KindIllegal or the reserved
// bit is set.
func Classify(t Tag) (Class, error) {
	if t&FlagReserved != 0 {
		return Class{}, errors.InvalidTag(errors.PhaseClassify, uint16(t), "reserved bit set")
	}
	k := t.Kind()
	if k >= KindIllegal {
		return Class{}, errors.InvalidTag(errors.PhaseClassify, uint16(t), "base kind out of range")
	}
	return Class{
		Kind:     k,
		ByRef:    t.ByRef(),
		IsArray:  t.IsArray(),
		IsVector: t.IsVector(),
	}, nil
}

// Validate classifies t and additionally rejects modifier combinations no
// decoder accepts: vector with array or by-reference, an array or vector of
// EMPTY or NULL, and a bare VARIANT.
func Validate(t Tag) (Class, error) {
	c, err := Classify(t)
	if err != nil {
		return Class{}, err
	}
	switch {
	case c.IsVector && c.IsArray:
		return Class{}, errors.InvalidTag(errors.PhaseClassify, uint16(t), "vector and array are exclusive")
	case c.IsVector && c.ByRef:
		return Class{}, errors.InvalidTag(errors.PhaseClassify, uint16(t), "vector cannot be by reference")
	case (c.IsVector || c.IsArray) && (c.Kind == KindEmpty || c.Kind == KindNull):
		return Class{}, errors.InvalidTag(errors.PhaseClassify, uint16(t), "container of "+c.Kind.String())
	case c.Kind == KindVariant && !c.ByRef && !c.IsVector && !c.IsArray:
		return Class{}, errors.InvalidTag(errors.PhaseClassify, uint16(t), "VT_VARIANT requires VT_BYREF")
	}
	return c, nil
}

// IsEmpty reports whether v is the EMPTY sentinel: base kind EMPTY, not by
// reference, and an all-zero payload.
func IsEmpty(v *Value) bool {
	t := v.Tag()
	return t.Kind() == KindEmpty && !t.ByRef() && v.u64(payloadOffset) == 0
}
