package variant

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wippyai/variant-runtime/errors"
)

const (
	clipDataSize        = 12
	versionedStreamSize = 20
	guidSize            = 16
)

// Null is the host value of VT_NULL, distinct from the nil of VT_EMPTY.
type Null struct{}

// SCode is the host value of VT_ERROR.
type SCode int32

func (s SCode) String() string {
	return fmt.Sprintf("0x%08X", uint32(s))
}

// Failed reports whether the severity bit is set.
func (s SCode) Failed() bool { return s < 0 }

// ClipData is the host value of VT_CF.
type ClipData struct {
	Data   []byte
	Format int32
}

// VersionedStream is the host value of VT_VERSIONED_STREAM.
type VersionedStream struct {
	Stream  any
	Version uuid.UUID
}

// Array is the host value of VT_ARRAY and VT_VECTOR containers. Elements
// are stored row-major: the last dimension varies fastest.
type Array struct {
	Elements    []any
	Lengths     []int
	LowerBounds []int
	Kind        Kind
	// Vector marks a counted inline vector rather than a safe array.
	Vector bool
}

// NewArray builds a zero-based row-major array.
func NewArray(kind Kind, lengths []int, elements []any) *Array {
	return &Array{
		Kind:        kind,
		Lengths:     lengths,
		LowerBounds: make([]int, len(lengths)),
		Elements:    elements,
	}
}

// NewVector builds a one-dimensional vector.
func NewVector(kind Kind, elements []any) *Array {
	return &Array{
		Kind:        kind,
		Lengths:     []int{len(elements)},
		LowerBounds: []int{0},
		Elements:    elements,
		Vector:      true,
	}
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.Lengths) }

// Len returns the total element count.
func (a *Array) Len() int { return len(a.Elements) }

// At returns the element at index, expressed against each dimension's
// lower bound.
func (a *Array) At(index ...int) (any, bool) {
	off, ok := a.offset(index)
	if !ok {
		return nil, false
	}
	return a.Elements[off], true
}

func (a *Array) offset(index []int) (int, bool) {
	if len(index) != len(a.Lengths) {
		return 0, false
	}
	off := 0
	for dim, i := range index {
		rel := i - a.LowerBounds[dim]
		if rel < 0 || rel >= a.Lengths[dim] {
			return 0, false
		}
		off = off*a.Lengths[dim] + rel
	}
	return off, true
}

// Nested returns the elements as nested []any slices, one level per
// dimension.
func (a *Array) Nested() []any {
	if len(a.Lengths) == 0 {
		return nil
	}
	out, _ := nest(a.Elements, a.Lengths)
	return out
}

func nest(elems []any, lengths []int) ([]any, []any) {
	n := lengths[0]
	out := make([]any, n)
	if len(lengths) == 1 {
		copy(out, elems[:n])
		return out, elems[n:]
	}
	for i := range out {
		var sub []any
		sub, elems = nest(elems, lengths[1:])
		out[i] = sub
	}
	return out, elems
}

func (a *Array) validate() error {
	if len(a.Lengths) == 0 {
		return errors.InvalidData(errors.PhaseEncode, nil, "array has no dimensions")
	}
	if len(a.LowerBounds) != len(a.Lengths) {
		return errors.InvalidData(errors.PhaseEncode, nil, fmt.Sprintf("array has %d lower bounds for %d dimensions", len(a.LowerBounds), len(a.Lengths)))
	}
	total := 1
	for _, n := range a.Lengths {
		if n < 0 {
			return errors.InvalidData(errors.PhaseEncode, nil, fmt.Sprintf("negative dimension length %d", n))
		}
		total *= n
	}
	if total != len(a.Elements) {
		return errors.InvalidData(errors.PhaseEncode, nil, fmt.Sprintf("array shape holds %d elements, got %d", total, len(a.Elements)))
	}
	if a.Vector && len(a.Lengths) != 1 {
		return errors.InvalidData(errors.PhaseEncode, nil, "vector must have one dimension")
	}
	return nil
}
