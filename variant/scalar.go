package variant

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/interop"
	"github.com/wippyai/variant-runtime/variant/internal/oa"
)

// refPath marks the target of a by-reference pointer in error paths.
const refPath = "*"

func (c *Converter) decodeScalar(v *Value, cls Class, path []string, depth int) (any, error) {
	k := cls.Kind
	if cls.ByRef {
		return c.decodeByRef(v, k, path, depth)
	}

	switch k {
	case KindEmpty:
		return nil, nil
	case KindNull:
		return Null{}, nil
	case KindDecimal:
		return decodeDecimal(v.raw[:], path)
	case KindRecord:
		return nil, errors.RecordMarshalingUnsupported(path)
	case KindCLSID, KindCF, KindVersionedStream:
		ptr := v.pointer()
		if ptr == 0 {
			return nil, nil
		}
		size, _ := inlineSize(k)
		b, err := c.mem.Read(ptr, size)
		if err != nil {
			return nil, errors.WithPath(err, path...)
		}
		return c.decodeInline(k, b, path, depth)
	}

	size, ok := inlineSize(k)
	if !ok || size > Size-payloadOffset {
		return nil, errors.UnsupportedKind(errors.PhaseDecode, path, k.String())
	}
	return c.decodeInline(k, v.payload()[:size], path, depth)
}

// byRefKind reports whether k may be combined with FlagByRef outside a
// container.
func byRefKind(k Kind) bool {
	switch k {
	case KindI1, KindUI1, KindI2, KindUI2, KindI4, KindUI4, KindI8, KindUI8,
		KindInt, KindUint, KindR4, KindR8, KindCY, KindDate, KindBSTR,
		KindDispatch, KindError, KindBool, KindVariant, KindUnknown, KindDecimal:
		return true
	}
	return false
}

func (c *Converter) decodeByRef(v *Value, k Kind, path []string, depth int) (any, error) {
	ptr := v.pointer()
	switch k {
	case KindEmpty:
		// EMPTY|BYREF surfaces the pointer itself.
		return uint64(ptr), nil
	case KindNull:
		if ptr != 0 {
			return nil, errors.InvalidTag(errors.PhaseDecode, uint16(v.Tag()), "VT_NULL|VT_BYREF with non-null pointer")
		}
		return Null{}, nil
	case KindRecord:
		return nil, errors.RecordMarshalingUnsupported(path)
	}
	if !k.Known() {
		return nil, errors.UnsupportedKind(errors.PhaseDecode, path, v.Tag().String())
	}
	if !byRefKind(k) {
		return nil, errors.UnsupportedByRefKind(path, v.Tag().String())
	}
	if ptr == 0 {
		return nil, errors.NullByRefPointer(path, v.Tag().String())
	}

	if k == KindVariant {
		target, err := Load(c.mem, ptr)
		if err != nil {
			return nil, errors.WithPath(err, path...)
		}
		if target.Tag().ByRef() {
			return nil, errors.InvalidNestedReference(path, target.Tag().String())
		}
		out, err := c.toObject(&target, nil, depth+1)
		return out, errors.WithPath(err, append(clonePath(path), refPath)...)
	}

	size, _ := inlineSize(k)
	b, err := c.mem.Read(ptr, size)
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}
	return c.decodeInline(k, b, path, depth)
}

// decodeInline converts one element of kind k from its inline bytes. The
// slice must be exactly inlineSize(k) long.
func (c *Converter) decodeInline(k Kind, b []byte, path []string, depth int) (any, error) {
	switch k {
	case KindI1:
		return int8(b[0]), nil
	case KindUI1:
		return b[0], nil
	case KindI2:
		return int16(binary.LittleEndian.Uint16(b)), nil
	case KindUI2:
		return binary.LittleEndian.Uint16(b), nil
	case KindI4, KindInt:
		return int32(binary.LittleEndian.Uint32(b)), nil
	case KindUI4, KindUint:
		return binary.LittleEndian.Uint32(b), nil
	case KindI8:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case KindUI8:
		return binary.LittleEndian.Uint64(b), nil
	case KindR4:
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case KindR8:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case KindBool:
		return binary.LittleEndian.Uint16(b) != 0, nil
	case KindError:
		return SCode(int32(binary.LittleEndian.Uint32(b))), nil

	case KindCY:
		return oa.CurrencyToDecimal(int64(binary.LittleEndian.Uint64(b))), nil
	case KindDecimal:
		return decodeDecimal(b, path)
	case KindDate:
		d := math.Float64frombits(binary.LittleEndian.Uint64(b))
		t, ok := oa.DateToTime(d)
		if !ok {
			return nil, errors.Overflow(errors.PhaseDecode, path, d, "date")
		}
		return t, nil
	case KindFileTime:
		return oa.FileTimeToTime(binary.LittleEndian.Uint64(b)), nil
	case KindCLSID:
		return decodeGUID(b), nil

	case KindBSTR:
		s, err := c.strs.BSTR(binary.LittleEndian.Uint32(b))
		return s, errors.WithPath(err, path...)
	case KindLPWSTR, KindLPSTR:
		ptr := binary.LittleEndian.Uint32(b)
		if ptr == 0 {
			return nil, nil
		}
		var s string
		var err error
		if k == KindLPWSTR {
			s, err = c.strs.Wide(ptr)
		} else {
			s, err = c.strs.Narrow(ptr)
		}
		if err != nil {
			return nil, errors.WithPath(err, path...)
		}
		return s, nil

	case KindUnknown, KindDispatch, KindStream, KindStorage, KindStreamedObject, KindStoredObject:
		return c.object(binary.LittleEndian.Uint32(b), path)

	case KindBlob, KindBlobObject:
		return c.buffer(binary.LittleEndian.Uint32(b), binary.LittleEndian.Uint32(b[4:]), path)

	case KindCF:
		size := binary.LittleEndian.Uint32(b)
		if size < 4 {
			return nil, errors.InvalidData(errors.PhaseDecode, path, "clipboard data shorter than its format")
		}
		data, err := c.buffer(size-4, binary.LittleEndian.Uint32(b[8:]), path)
		if err != nil {
			return nil, err
		}
		return ClipData{Format: int32(binary.LittleEndian.Uint32(b[4:])), Data: data}, nil

	case KindVersionedStream:
		stream, err := c.object(binary.LittleEndian.Uint32(b[guidSize:]), path)
		if err != nil {
			return nil, err
		}
		return VersionedStream{Version: decodeGUID(b), Stream: stream}, nil

	case KindVariant:
		inner, err := FromBytes(b)
		if err != nil {
			return nil, errors.WithPath(err, path...)
		}
		return c.toObject(&inner, path, depth+1)

	case KindRecord:
		return nil, errors.RecordMarshalingUnsupported(path)
	}
	return nil, errors.UnsupportedKind(errors.PhaseDecode, path, k.String())
}

func (c *Converter) object(h uint32, path []string) (any, error) {
	if h == 0 {
		return nil, nil
	}
	obj, ok := c.objs.Get(interop.Handle(h))
	if !ok {
		return nil, errors.WithPath(errors.NotFound(errors.PhaseDecode, "object handle", h), path...)
	}
	return obj, nil
}

// buffer copies size bytes at ptr out of memory.
func (c *Converter) buffer(size, ptr uint32, path []string) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if ptr == 0 {
		return nil, errors.NilPointer(errors.PhaseDecode, path, "buffer data")
	}
	b, err := c.mem.Read(ptr, size)
	if err != nil {
		return nil, errors.WithPath(err, path...)
	}
	out := make([]byte, size)
	copy(out, b)
	return out, nil
}

func decodeDecimal(b []byte, path []string) (any, error) {
	d, ok := oa.DecimalToAPD(oa.Decimal{
		Scale: b[decimalScaleOffset],
		Sign:  b[decimalSignOffset],
		Hi32:  binary.LittleEndian.Uint32(b[decimalHiOffset:]),
		Lo64:  binary.LittleEndian.Uint64(b[decimalLoOffset:]),
	})
	if !ok {
		return nil, errors.InvalidData(errors.PhaseDecode, path, "decimal scale above 28")
	}
	return d, nil
}

// decodeGUID reads a GUID whose first three fields are little-endian.
func decodeGUID(b []byte) uuid.UUID {
	var u uuid.UUID
	copy(u[:], b[:guidSize])
	swapGUID(u[:])
	return u
}

func encodeGUID(u uuid.UUID) []byte {
	b := make([]byte, guidSize)
	copy(b, u[:])
	swapGUID(b)
	return b
}

// swapGUID converts between GUID and RFC 4122 byte order in place.
func swapGUID(b []byte) {
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
}

func clonePath(path []string) []string {
	return append(make([]string, 0, len(path)+1), path...)
}
