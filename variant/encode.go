package variant

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"

	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/interop"
	"github.com/wippyai/variant-runtime/safearray"
	"github.com/wippyai/variant-runtime/variant/internal/oa"
)

const (
	variantTrue  = 0xFFFF
	variantFalse = 0
)

// FromObject encodes a Go value. Strings, GUIDs, blobs, clipboard data
// and containers allocate memory owned by the returned Value; release it
// with Clear.
//
// Accepted types: nil, Null, bool, every sized integer, int and uint
// (narrowest of I4/I8 and UI4/UI8), float32, float64, string (BSTR),
// SCode, *apd.Decimal and apd.Decimal (DECIMAL), time.Time (DATE),
// uuid.UUID (CLSID), []byte (BLOB), ClipData (CF) and *Array.
func (c *Converter) FromObject(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Value{}, nil
	case Null:
		return newValue(KindNull.Tag()), nil
	case bool:
		return scalar(KindBool, boolBits(x)), nil
	case int8:
		return scalar(KindI1, uint64(uint8(x))), nil
	case uint8:
		return scalar(KindUI1, uint64(x)), nil
	case int16:
		return scalar(KindI2, uint64(uint16(x))), nil
	case uint16:
		return scalar(KindUI2, uint64(x)), nil
	case int32:
		return scalar(KindI4, uint64(uint32(x))), nil
	case uint32:
		return scalar(KindUI4, uint64(x)), nil
	case int64:
		return scalar(KindI8, uint64(x)), nil
	case uint64:
		return scalar(KindUI8, x), nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return scalar(KindI4, uint64(uint32(int32(x)))), nil
		}
		return scalar(KindI8, uint64(x)), nil
	case uint:
		if x <= math.MaxUint32 {
			return scalar(KindUI4, uint64(x)), nil
		}
		return scalar(KindUI8, uint64(x)), nil
	case float32:
		return scalar(KindR4, uint64(math.Float32bits(x))), nil
	case float64:
		return scalar(KindR8, math.Float64bits(x)), nil
	case SCode:
		return scalar(KindError, uint64(uint32(x))), nil
	case time.Time:
		d, ok := oa.TimeToDate(x)
		if !ok {
			return Value{}, errors.Overflow(errors.PhaseEncode, nil, x, "date")
		}
		return scalar(KindDate, math.Float64bits(d)), nil
	case *apd.Decimal:
		if x == nil {
			return Value{}, errors.NilPointer(errors.PhaseEncode, nil, "decimal")
		}
		return newDecimal(x)
	case apd.Decimal:
		return newDecimal(&x)

	case string:
		ptr, err := c.strs.AllocBSTR(x)
		if err != nil {
			return Value{}, err
		}
		return scalar(KindBSTR, uint64(ptr)), nil
	case uuid.UUID:
		ptr, err := c.allocBytes(encodeGUID(x), 4)
		if err != nil {
			return Value{}, err
		}
		return scalar(KindCLSID, uint64(ptr)), nil
	case []byte:
		return c.newBlob(KindBlob, x)
	case ClipData:
		return c.newClipData(x)
	case *Array:
		if x == nil {
			return Value{}, errors.NilPointer(errors.PhaseEncode, nil, "array")
		}
		if x.Vector {
			return c.newVector(x)
		}
		return c.newSafeArray(x)
	}
	return Value{}, errors.UnsupportedHostType(fmt.Sprintf("%T", x))
}

// NewCurrency encodes d as VT_CY, rounding half-to-even to four decimal
// places.
func NewCurrency(d *apd.Decimal) (Value, error) {
	if d == nil {
		return Value{}, errors.NilPointer(errors.PhaseEncode, nil, "currency")
	}
	cy, ok := oa.DecimalToCurrency(d)
	if !ok {
		return Value{}, errors.Overflow(errors.PhaseEncode, nil, d.String(), "currency")
	}
	return scalar(KindCY, uint64(cy)), nil
}

// NewFileTime encodes t as VT_FILETIME.
func NewFileTime(t time.Time) (Value, error) {
	ft, ok := oa.TimeToFileTime(t)
	if !ok {
		return Value{}, errors.Overflow(errors.PhaseEncode, nil, t, "filetime")
	}
	return scalar(KindFileTime, ft), nil
}

// NewByRef builds a by-reference value pointing at ptr. The target stays
// owned by the caller; Clear does not release it.
func NewByRef(t Tag, ptr uint32) Value {
	return retag(scalar(KindEmpty, uint64(ptr)), t|FlagByRef)
}

// NewLPWSTR encodes s as a NUL-terminated wide string.
func (c *Converter) NewLPWSTR(s string) (Value, error) {
	ptr, err := c.strs.AllocWide(s)
	if err != nil {
		return Value{}, err
	}
	return scalar(KindLPWSTR, uint64(ptr)), nil
}

// NewLPSTR encodes s as a NUL-terminated narrow string.
func (c *Converter) NewLPSTR(s string) (Value, error) {
	ptr, err := c.strs.AllocNarrow(s)
	if err != nil {
		return Value{}, err
	}
	return scalar(KindLPSTR, uint64(ptr)), nil
}

// NewObject registers obj in the object table and returns a value of kind
// k holding the new reference. A nil obj yields a null handle.
func (c *Converter) NewObject(k Kind, obj any) (Value, error) {
	if !objectKind(k) {
		return Value{}, errors.UnsupportedKind(errors.PhaseEncode, nil, k.String())
	}
	h, err := c.insertObject(obj)
	if err != nil {
		return Value{}, err
	}
	return scalar(k, uint64(h)), nil
}

// NewVersionedStream encodes a stream object tagged with a version GUID.
func (c *Converter) NewVersionedStream(version uuid.UUID, stream any) (Value, error) {
	h, err := c.insertObject(stream)
	if err != nil {
		return Value{}, err
	}
	b := make([]byte, versionedStreamSize)
	copy(b, encodeGUID(version))
	binary.LittleEndian.PutUint32(b[guidSize:], uint32(h))
	ptr, err := c.allocBytes(b, 4)
	if err != nil {
		c.releaseObject(uint32(h))
		return Value{}, err
	}
	return scalar(KindVersionedStream, uint64(ptr)), nil
}

func objectKind(k Kind) bool {
	switch k {
	case KindUnknown, KindDispatch, KindStream, KindStorage, KindStreamedObject, KindStoredObject:
		return true
	}
	return false
}

func (c *Converter) insertObject(obj any) (interop.Handle, error) {
	if obj == nil {
		return 0, nil
	}
	h := c.objs.Insert(obj)
	if h == 0 {
		return 0, errors.InvalidData(errors.PhaseEncode, nil, "object table is closed")
	}
	return h, nil
}

func scalar(k Kind, bits uint64) Value {
	v := newValue(k.Tag())
	v.putU64(payloadOffset, bits)
	return v
}

func retag(v Value, t Tag) Value {
	binary.LittleEndian.PutUint16(v.raw[tagOffset:], uint16(t))
	return v
}

func boolBits(b bool) uint64 {
	if b {
		return variantTrue
	}
	return variantFalse
}

func newDecimal(d *apd.Decimal) (Value, error) {
	packed, ok := oa.APDToDecimal(d)
	if !ok {
		return Value{}, errors.Overflow(errors.PhaseEncode, nil, d.String(), "decimal")
	}
	v := newValue(KindDecimal.Tag())
	v.raw[decimalScaleOffset] = packed.Scale
	v.raw[decimalSignOffset] = packed.Sign
	v.putU32(decimalHiOffset, packed.Hi32)
	v.putU64(decimalLoOffset, packed.Lo64)
	return v, nil
}

func (c *Converter) allocBytes(b []byte, align uint32) (uint32, error) {
	ptr, err := c.alloc.Alloc(uint32(len(b)), align)
	if err != nil {
		return 0, err
	}
	if err := c.mem.Write(ptr, b); err != nil {
		c.alloc.Free(ptr)
		return 0, err
	}
	return ptr, nil
}

func (c *Converter) newBlob(k Kind, data []byte) (Value, error) {
	v := newValue(k.Tag())
	if len(data) == 0 {
		return v, nil
	}
	ptr, err := c.allocBytes(data, 1)
	if err != nil {
		return Value{}, err
	}
	v.putU32(countOffset, uint32(len(data)))
	v.putU32(elemPtrOffset, ptr)
	return v, nil
}

func (c *Converter) newClipData(cd ClipData) (Value, error) {
	b, err := c.encodeClipData(cd)
	if err != nil {
		return Value{}, err
	}
	ptr, err := c.allocBytes(b, 4)
	if err != nil {
		c.free(binary.LittleEndian.Uint32(b[8:]))
		return Value{}, err
	}
	return scalar(KindCF, uint64(ptr)), nil
}

// encodeClipData allocates the clipboard buffer and returns the inline
// CLIPDATA record.
func (c *Converter) encodeClipData(cd ClipData) ([]byte, error) {
	b := make([]byte, clipDataSize)
	binary.LittleEndian.PutUint32(b, uint32(len(cd.Data))+4)
	binary.LittleEndian.PutUint32(b[4:], uint32(cd.Format))
	if len(cd.Data) > 0 {
		ptr, err := c.allocBytes(cd.Data, 1)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(b[8:], ptr)
	}
	return b, nil
}

func (c *Converter) newVector(a *Array) (Value, error) {
	if err := a.validate(); err != nil {
		return Value{}, err
	}
	if !vectorElementKind(a.Kind) {
		return Value{}, errors.UnsupportedVectorElementKind(nil, a.Kind.String())
	}
	size, _ := inlineSize(a.Kind)
	count := uint32(len(a.Elements))
	if uint64(count)*uint64(size) > math.MaxInt32 {
		return Value{}, errors.Overflow(errors.PhaseEncode, nil, count, "vector byte size")
	}
	// an empty vector still gets a buffer so it decodes as empty, not null
	ptr, err := c.alloc.Alloc(max(count, 1)*size, min(size, 8))
	if err != nil {
		return Value{}, err
	}
	// Clear after a partial failure reads every slot
	if err := c.mem.Write(ptr, make([]byte, max(count, 1)*size)); err != nil {
		c.alloc.Free(ptr)
		return Value{}, err
	}

	v := newValue(a.Kind.Tag() | FlagVector)
	v.putU32(countOffset, count)
	v.putU32(elemPtrOffset, ptr)

	buf := make([]byte, size)
	for i, x := range a.Elements {
		clear(buf)
		if err := c.encodeInline(a.Kind, x, buf); err == nil {
			err = c.mem.Write(ptr+uint32(i)*size, buf)
		}
		if err != nil {
			c.Clear(&v)
			return Value{}, errors.WithPath(err, fmt.Sprintf("[%d]", i))
		}
	}
	return v, nil
}

func (c *Converter) newSafeArray(a *Array) (Value, error) {
	if err := a.validate(); err != nil {
		return Value{}, err
	}
	if a.Kind == KindRecord {
		return Value{}, errors.RecordMarshalingUnsupported(nil)
	}
	if !arrayElementKind(a.Kind) {
		return Value{}, errors.UnsupportedKind(errors.PhaseEncode, nil, (a.Kind.Tag() | FlagArray).String())
	}
	size, _ := inlineSize(a.Kind)
	bounds := make([]safearray.Bound, len(a.Lengths))
	for dim, n := range a.Lengths {
		if uint64(n) > math.MaxUint32 || a.LowerBounds[dim] < math.MinInt32 || a.LowerBounds[dim] > math.MaxInt32 {
			return Value{}, errors.Overflow(errors.PhaseEncode, nil, n, "array bound")
		}
		bounds[dim] = safearray.Bound{Count: uint32(n), Lower: int32(a.LowerBounds[dim])}
	}
	d, err := safearray.Create(c.mem, c.alloc, safearray.Layout{
		Bounds:      bounds,
		ElementSize: size,
		ElementKind: uint16(a.Kind),
	})
	if err != nil {
		return Value{}, err
	}
	v := retag(scalar(a.Kind, uint64(d.Addr())), a.Kind.Tag()|FlagArray)

	// column-major stride of each logical dimension
	rank := len(a.Lengths)
	colStride := getStrideSlice(rank)
	defer putStrideSlice(colStride)
	rel := getIndexSlice(rank)
	defer putIndexSlice(rel)
	var acc uint64 = 1
	for dim, n := range a.Lengths {
		colStride[dim] = acc
		rel[dim] = 0
		acc *= uint64(n)
	}

	buf := make([]byte, size)
	for i, x := range a.Elements {
		var off uint64
		for dim := 0; dim < rank; dim++ {
			off += uint64(rel[dim]) * colStride[dim]
		}
		clear(buf)
		if err = c.encodeInline(a.Kind, x, buf); err == nil {
			err = c.mem.Write(d.ElementAddr(off), buf)
		}
		if err != nil {
			c.Clear(&v)
			return Value{}, errors.WithPath(err, fmt.Sprintf("[%d]", i))
		}
		for dim := rank - 1; dim >= 0; dim-- {
			rel[dim]++
			if rel[dim] < int64(a.Lengths[dim]) {
				break
			}
			rel[dim] = 0
		}
	}
	return v, nil
}

// encodeInline writes x as one inline element of kind k into dst, which
// is inlineSize(k) bytes long and zeroed. Resources allocated for the
// element are owned by the enclosing container.
func (c *Converter) encodeInline(k Kind, x any, dst []byte) error {
	switch k {
	case KindI1, KindI2, KindI4, KindInt, KindI8:
		n, ok := toInt64(x)
		if !ok || !fitsSigned(n, len(dst)) {
			return hostMismatch(k, x)
		}
		putUint(dst, uint64(n))
		return nil
	case KindUI1, KindUI2, KindUI4, KindUint, KindUI8:
		n, ok := toUint64(x)
		if !ok || !fitsUnsigned(n, len(dst)) {
			return hostMismatch(k, x)
		}
		putUint(dst, n)
		return nil
	case KindR4:
		switch f := x.(type) {
		case float32:
			binary.LittleEndian.PutUint32(dst, math.Float32bits(f))
			return nil
		case float64:
			binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
			return nil
		}
	case KindR8:
		switch f := x.(type) {
		case float32:
			binary.LittleEndian.PutUint64(dst, math.Float64bits(float64(f)))
			return nil
		case float64:
			binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
			return nil
		}
	case KindBool:
		if b, ok := x.(bool); ok {
			binary.LittleEndian.PutUint16(dst, uint16(boolBits(b)))
			return nil
		}
	case KindError:
		switch s := x.(type) {
		case SCode:
			binary.LittleEndian.PutUint32(dst, uint32(s))
			return nil
		case int32:
			binary.LittleEndian.PutUint32(dst, uint32(s))
			return nil
		}
	case KindCY:
		if d, ok := x.(*apd.Decimal); ok && d != nil {
			v, err := NewCurrency(d)
			if err != nil {
				return err
			}
			copy(dst, v.payload())
			return nil
		}
	case KindDecimal:
		if d, ok := x.(*apd.Decimal); ok && d != nil {
			v, err := newDecimal(d)
			if err != nil {
				return err
			}
			copy(dst, v.raw[:])
			binary.LittleEndian.PutUint16(dst[tagOffset:], 0)
			return nil
		}
	case KindDate:
		if t, ok := x.(time.Time); ok {
			d, ok := oa.TimeToDate(t)
			if !ok {
				return errors.Overflow(errors.PhaseEncode, nil, t, "date")
			}
			binary.LittleEndian.PutUint64(dst, math.Float64bits(d))
			return nil
		}
	case KindFileTime:
		if t, ok := x.(time.Time); ok {
			v, err := NewFileTime(t)
			if err != nil {
				return err
			}
			copy(dst, v.payload())
			return nil
		}
	case KindCLSID:
		if u, ok := x.(uuid.UUID); ok {
			copy(dst, encodeGUID(u))
			return nil
		}
	case KindBSTR, KindLPWSTR, KindLPSTR:
		if x == nil && k != KindBSTR {
			return nil
		}
		s, ok := x.(string)
		if !ok {
			break
		}
		var ptr uint32
		var err error
		switch k {
		case KindBSTR:
			ptr, err = c.strs.AllocBSTR(s)
		case KindLPWSTR:
			ptr, err = c.strs.AllocWide(s)
		default:
			ptr, err = c.strs.AllocNarrow(s)
		}
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, ptr)
		return nil
	case KindCF:
		if cd, ok := x.(ClipData); ok {
			b, err := c.encodeClipData(cd)
			if err != nil {
				return err
			}
			copy(dst, b)
			return nil
		}
	case KindUnknown, KindDispatch:
		h, err := c.insertObject(x)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(h))
		return nil
	case KindVariant:
		v, err := c.FromObject(x)
		if err != nil {
			return err
		}
		copy(dst, v.raw[:])
		return nil
	}
	return hostMismatch(k, x)
}

func hostMismatch(k Kind, x any) error {
	return errors.New(errors.PhaseEncode, errors.KindUnsupportedHostType).
		GoType(fmt.Sprintf("%T", x)).
		Tag(k.String()).
		Build()
}

func toInt64(x any) (int64, bool) {
	switch n := x.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toUint64(x any) (uint64, bool) {
	switch n := x.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	}
	if n, ok := toInt64(x); ok && n >= 0 {
		return uint64(n), true
	}
	return 0, false
}

func fitsSigned(n int64, width int) bool {
	if width >= 8 {
		return true
	}
	bits := uint(width * 8)
	return n >= -(1<<(bits-1)) && n < 1<<(bits-1)
}

func fitsUnsigned(n uint64, width int) bool {
	return width >= 8 || n < 1<<uint(width*8)
}

func putUint(dst []byte, n uint64) {
	for i := range dst {
		dst[i] = byte(n >> (8 * i))
	}
}
