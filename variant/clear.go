package variant

import (
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/interop"
	"github.com/wippyai/variant-runtime/safearray"
)

// Clear releases every resource v owns and resets it to EMPTY. It is a
// no-op on an EMPTY value, so calling it twice is safe. By-reference
// values own nothing and are only reset.
//
// Clear never fails: release problems are logged and the value is reset
// regardless.
func (c *Converter) Clear(v *Value) {
	c.clear(v, &clearState{})
}

// clearState follows one Clear through nested VT_VARIANT values. Each
// container buffer is released at most once, so a value whose elements
// point back at an enclosing container terminates.
type clearState struct {
	claimed map[uint32]struct{}
	depth   int
}

// claim reports whether ptr has not been released yet in this Clear and
// marks it released.
func (s *clearState) claim(ptr uint32) bool {
	if _, ok := s.claimed[ptr]; ok {
		return false
	}
	if s.claimed == nil {
		s.claimed = make(map[uint32]struct{})
	}
	s.claimed[ptr] = struct{}{}
	return true
}

func (c *Converter) clear(v *Value, st *clearState) {
	if v == nil {
		return
	}
	if IsEmpty(v) {
		*v = Value{}
		return
	}
	defer func() { *v = Value{} }()

	t := v.Tag()
	cls, err := Validate(t)
	if err != nil {
		Logger().Warn("clear of invalid tagged value", zap.Stringer("tag", t), zap.Error(err))
		return
	}
	if cls.ByRef {
		Logger().Debug("clear by-reference value", zap.Stringer("tag", t))
		return
	}

	switch {
	case cls.IsVector:
		c.clearVector(cls.Kind, v.u32(countOffset), v.u32(elemPtrOffset), st)
	case cls.IsArray:
		c.destroyArray(cls.Kind, v.pointer(), st)
	default:
		c.releaseScalar(cls.Kind, v, st)
	}
}

func (c *Converter) releaseScalar(k Kind, v *Value, st *clearState) {
	switch k {
	case KindCLSID:
		c.free(v.pointer())
	case KindCF, KindVersionedStream:
		ptr := v.pointer()
		if ptr == 0 {
			return
		}
		size, _ := inlineSize(k)
		b, err := c.mem.Read(ptr, size)
		if err != nil {
			Logger().Warn("read of owned record failed", zap.Stringer("kind", k), zap.Error(err))
		} else {
			c.releaseInline(k, b, st)
		}
		c.free(ptr)
	case KindRecord:
		Logger().Warn("record value left unreleased", zap.Uint32("record", v.pointer()))
	default:
		if size, ok := inlineSize(k); ok && size <= Size-payloadOffset {
			c.releaseInline(k, v.payload()[:size], st)
		}
	}
}

// releaseInline gives back whatever one inline element of kind k owns.
// The element bytes themselves belong to the caller.
func (c *Converter) releaseInline(k Kind, b []byte, st *clearState) {
	switch k {
	case KindBSTR:
		ptr := binary.LittleEndian.Uint32(b)
		Logger().Debug("free bstr", zap.Uint32("ptr", ptr))
		c.strs.FreeBSTR(ptr)
	case KindLPSTR, KindLPWSTR:
		c.strs.Free(binary.LittleEndian.Uint32(b))
	case KindBlob, KindBlobObject:
		c.free(binary.LittleEndian.Uint32(b[4:]))
	case KindCF:
		c.free(binary.LittleEndian.Uint32(b[8:]))
	case KindUnknown, KindDispatch, KindStream, KindStorage, KindStreamedObject, KindStoredObject:
		c.releaseObject(binary.LittleEndian.Uint32(b))
	case KindVersionedStream:
		c.releaseObject(binary.LittleEndian.Uint32(b[guidSize:]))
	case KindVariant:
		if st.depth >= c.maxDepth {
			Logger().Warn("nested variant left unreleased", zap.Int("depth", st.depth))
			return
		}
		inner, err := FromBytes(b)
		if err == nil {
			st.depth++
			c.clear(&inner, st)
			st.depth--
		}
	}
}

func (c *Converter) clearVector(k Kind, count, ptr uint32, st *clearState) {
	if ptr == 0 {
		return
	}
	if !st.claim(ptr) {
		Logger().Warn("vector buffer already released", zap.Uint32("ptr", ptr))
		return
	}
	if size, ok := inlineSize(k); ok && count > 0 && ownsResources(k) {
		var data []byte
		var err error = errors.Overflow(errors.PhaseClear, nil, count, "vector byte size")
		if uint64(count)*uint64(size) <= math.MaxUint32 {
			data, err = c.mem.Read(ptr, count*size)
		}
		if err != nil {
			Logger().Warn("read of vector elements failed", zap.Stringer("kind", k), zap.Error(err))
		} else {
			for i := uint32(0); i < count; i++ {
				c.releaseInline(k, data[i*size:(i+1)*size], st)
			}
		}
	}
	Logger().Debug("free vector", zap.Stringer("kind", k), zap.Uint32("count", count), zap.Uint32("ptr", ptr))
	c.free(ptr)
}

// destroyArray releases the elements and storage of an owned safe array.
// An array Destroy would refuse (locked, or not allocated by c's
// allocator) is left untouched, elements included.
func (c *Converter) destroyArray(k Kind, handle uint32, st *clearState) {
	if handle == 0 {
		return
	}
	if !st.claim(handle) {
		Logger().Warn("safe array already released", zap.Uint32("handle", handle))
		return
	}
	d, err := safearray.Open(c.mem, handle)
	if err != nil {
		Logger().Warn("open of owned safe array failed", zap.Uint32("handle", handle), zap.Error(err))
		return
	}
	if err := safearray.CheckDestroy(c.alloc, d); err != nil {
		Logger().Warn("safe array left in place", zap.Uint32("handle", handle), zap.Error(err))
		return
	}
	if ownsResources(k) && d.RawPointer() != 0 {
		c.releaseArrayElements(k, d, st)
	}
	if err := safearray.Destroy(c.alloc, d); err != nil {
		Logger().Warn("destroy of safe array failed", zap.Uint32("handle", handle), zap.Error(err))
	}
}

func (c *Converter) releaseArrayElements(k Kind, d *safearray.Descriptor, st *clearState) {
	if k == KindRecord {
		Logger().Warn("record array elements left unreleased", zap.Uint32("handle", d.Addr()))
		return
	}
	size := d.ElementByteSize()
	if want, ok := inlineSize(k); !ok || want != size {
		Logger().Warn("safe array element size does not match its tag",
			zap.Stringer("kind", k), zap.Uint32("size", size))
		return
	}
	n, err := d.ElementCount(c.maxElems)
	if err == nil && n*uint64(size) > math.MaxUint32 {
		err = errors.InvalidDescriptor(nil, "data size overflow")
	}
	if err != nil {
		Logger().Warn("safe array elements left unreleased", zap.Uint32("handle", d.Addr()), zap.Error(err))
		return
	}
	if n == 0 {
		return
	}
	data, err := c.mem.Read(d.RawPointer(), uint32(n)*size)
	if err != nil {
		Logger().Warn("read of safe array elements failed", zap.Error(err))
		return
	}
	for i := uint32(0); i < uint32(n); i++ {
		c.releaseInline(k, data[i*size:(i+1)*size], st)
	}
}

// ownsResources reports whether an inline element of kind k can own
// anything that needs releasing.
func ownsResources(k Kind) bool {
	switch k {
	case KindBSTR, KindLPSTR, KindLPWSTR, KindBlob, KindBlobObject, KindCF,
		KindUnknown, KindDispatch, KindStream, KindStorage, KindStreamedObject,
		KindStoredObject, KindVersionedStream, KindVariant, KindRecord:
		return true
	}
	return false
}

func (c *Converter) releaseObject(h uint32) {
	if h == 0 {
		return
	}
	interop.Adopt(c.objs, interop.Handle(h)).Release()
}

func (c *Converter) free(ptr uint32) {
	if ptr != 0 {
		c.alloc.Free(ptr)
	}
}
