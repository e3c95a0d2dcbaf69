package variant

import (
	"fmt"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/interop"
)

const (
	// DefaultMaxElements bounds the element count of a decoded container.
	DefaultMaxElements = 1 << 24
	// DefaultMaxDepth bounds how many VT_VARIANT levels a decode follows.
	DefaultMaxDepth = 64
)

// Env wires a Converter to its collaborators.
type Env struct {
	Memory    variantruntime.Memory
	Allocator variantruntime.Allocator

	// Strings and Objects default to fresh instances over Memory and
	// Allocator.
	Strings *interop.Strings
	Objects *interop.Objects

	// MaxElements bounds vector and safe-array element counts.
	// Zero selects DefaultMaxElements.
	MaxElements uint64

	// MaxDepth bounds nested VT_VARIANT values, which may form cycles
	// through by-reference pointers or container elements. Zero selects
	// DefaultMaxDepth.
	MaxDepth int
}

// Converter moves tagged values between linear memory and Go. A Converter
// holds no per-call state; concurrent decodes of distinct values are safe
// as long as the collaborators are.
type Converter struct {
	mem      variantruntime.Memory
	alloc    variantruntime.Allocator
	strs     *interop.Strings
	objs     *interop.Objects
	maxElems uint64
	maxDepth int
}

// NewConverter validates env and fills in defaults.
func NewConverter(env Env) (*Converter, error) {
	if env.Memory == nil {
		return nil, errors.NilPointer(errors.PhaseLoad, nil, "memory")
	}
	if env.Allocator == nil {
		return nil, errors.NilPointer(errors.PhaseLoad, nil, "allocator")
	}
	c := &Converter{
		mem:      env.Memory,
		alloc:    env.Allocator,
		strs:     env.Strings,
		objs:     env.Objects,
		maxElems: env.MaxElements,
		maxDepth: env.MaxDepth,
	}
	if c.strs == nil {
		c.strs = interop.NewStrings(env.Memory, env.Allocator)
	}
	if c.objs == nil {
		c.objs = interop.NewObjects()
	}
	if c.maxElems == 0 {
		c.maxElems = DefaultMaxElements
	}
	if c.maxDepth <= 0 {
		c.maxDepth = DefaultMaxDepth
	}
	return c, nil
}

// Memory returns the linear memory values are read from.
func (c *Converter) Memory() variantruntime.Memory { return c.mem }

// Strings returns the string marshaler.
func (c *Converter) Strings() *interop.Strings { return c.strs }

// Objects returns the object table handles resolve against.
func (c *Converter) Objects() *interop.Objects { return c.objs }

// ToObject decodes v into its Go host value. The value is not modified and
// keeps ownership of its resources.
func (c *Converter) ToObject(v *Value) (any, error) {
	return c.toObject(v, nil, 0)
}

// DecodeAt loads the tagged value stored at addr and decodes it.
func (c *Converter) DecodeAt(addr uint32) (any, error) {
	v, err := Load(c.mem, addr)
	if err != nil {
		return nil, err
	}
	return c.ToObject(&v)
}

// toObject decodes v found depth VT_VARIANT levels below the value the
// caller asked for.
func (c *Converter) toObject(v *Value, path []string, depth int) (any, error) {
	if depth > c.maxDepth {
		return nil, errors.InvalidData(errors.PhaseDecode, path,
			fmt.Sprintf("variant nesting exceeds depth %d", c.maxDepth))
	}
	cls, err := Validate(v.Tag())
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}

	switch {
	case cls.IsVector:
		return c.decodeVector(cls.Kind, v.u32(countOffset), v.u32(elemPtrOffset), path, depth)

	case cls.IsArray:
		handle := v.pointer()
		if cls.ByRef {
			if handle == 0 {
				return nil, errors.NullByRefPointer(path, v.Tag().String())
			}
			if handle, err = c.mem.ReadU32(handle); err != nil {
				return nil, errors.WithPath(err, path...)
			}
		}
		return c.decodeArray(cls.Kind, handle, path, depth)

	default:
		return c.decodeScalar(v, cls, path, depth)
	}
}
