package variant

import (
	"strconv"
	"strings"
)

// Kind is the base type of a tagged value, the tag with its modifier bits
// masked off.
type Kind uint16

const (
	KindEmpty           Kind = 0
	KindNull            Kind = 1
	KindI2              Kind = 2
	KindI4              Kind = 3
	KindR4              Kind = 4
	KindR8              Kind = 5
	KindCY              Kind = 6
	KindDate            Kind = 7
	KindBSTR            Kind = 8
	KindDispatch        Kind = 9
	KindError           Kind = 10
	KindBool            Kind = 11
	KindVariant         Kind = 12
	KindUnknown         Kind = 13
	KindDecimal         Kind = 14
	KindI1              Kind = 16
	KindUI1             Kind = 17
	KindUI2             Kind = 18
	KindUI4             Kind = 19
	KindI8              Kind = 20
	KindUI8             Kind = 21
	KindInt             Kind = 22
	KindUint            Kind = 23
	KindLPSTR           Kind = 30
	KindLPWSTR          Kind = 31
	KindRecord          Kind = 36
	KindFileTime        Kind = 64
	KindBlob            Kind = 65
	KindStream          Kind = 66
	KindStorage         Kind = 67
	KindStreamedObject  Kind = 68
	KindStoredObject    Kind = 69
	KindBlobObject      Kind = 70
	KindCF              Kind = 71
	KindCLSID           Kind = 72
	KindVersionedStream Kind = 73

	// KindIllegal is the first base value rejected outright.
	KindIllegal Kind = 0x80
)

var kindNames = map[Kind]string{
	KindEmpty:           "EMPTY",
	KindNull:            "NULL",
	KindI2:              "I2",
	KindI4:              "I4",
	KindR4:              "R4",
	KindR8:              "R8",
	KindCY:              "CY",
	KindDate:            "DATE",
	KindBSTR:            "BSTR",
	KindDispatch:        "DISPATCH",
	KindError:           "ERROR",
	KindBool:            "BOOL",
	KindVariant:         "VARIANT",
	KindUnknown:         "UNKNOWN",
	KindDecimal:         "DECIMAL",
	KindI1:              "I1",
	KindUI1:             "UI1",
	KindUI2:             "UI2",
	KindUI4:             "UI4",
	KindI8:              "I8",
	KindUI8:             "UI8",
	KindInt:             "INT",
	KindUint:            "UINT",
	KindLPSTR:           "LPSTR",
	KindLPWSTR:          "LPWSTR",
	KindRecord:          "RECORD",
	KindFileTime:        "FILETIME",
	KindBlob:            "BLOB",
	KindStream:          "STREAM",
	KindStorage:         "STORAGE",
	KindStreamedObject:  "STREAMED_OBJECT",
	KindStoredObject:    "STORED_OBJECT",
	KindBlobObject:      "BLOB_OBJECT",
	KindCF:              "CF",
	KindCLSID:           "CLSID",
	KindVersionedStream: "VERSIONED_STREAM",
}

// String returns the VT_ name of k, or VT_0x.. for values without a name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return "VT_" + name
	}
	return "VT_0x" + strconv.FormatUint(uint64(k), 16)
}

// Known reports whether k is one of the enumerated kinds.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Tag returns k as a tag with no modifiers.
func (k Kind) Tag() Tag { return Tag(k) }

// Tag is the full 16-bit discriminant: a base kind plus modifier bits.
type Tag uint16

const (
	FlagVector   Tag = 0x1000
	FlagArray    Tag = 0x2000
	FlagByRef    Tag = 0x4000
	FlagReserved Tag = 0x8000

	// KindMask selects the base kind.
	KindMask Tag = 0x0FFF
)

// Kind returns the base kind.
func (t Tag) Kind() Kind { return Kind(t & KindMask) }

// ByRef reports whether FlagByRef is set.
func (t Tag) ByRef() bool { return t&FlagByRef != 0 }

// IsArray reports whether FlagArray is set.
func (t Tag) IsArray() bool { return t&FlagArray != 0 }

// IsVector reports whether FlagVector is set.
func (t Tag) IsVector() bool { return t&FlagVector != 0 }

// String renders t as VT_ names joined by '|', e.g. "VT_I4|VT_BYREF".
func (t Tag) String() string {
	var b strings.Builder
	b.WriteString(t.Kind().String())
	for _, f := range []struct {
		flag Tag
		name string
	}{
		{FlagVector, "|VT_VECTOR"},
		{FlagArray, "|VT_ARRAY"},
		{FlagByRef, "|VT_BYREF"},
		{FlagReserved, "|VT_RESERVED"},
	} {
		if t&f.flag != 0 {
			b.WriteString(f.name)
		}
	}
	return b.String()
}

// ParseTag parses the String form of a tag. Numeric kinds in VT_0x..
// form and bare hexadecimal tags ("0x2003") are accepted.
func ParseTag(s string) (Tag, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 16)
		return Tag(v), err == nil
	}
	var t Tag
	for i, part := range strings.Split(strings.ToUpper(s), "|") {
		name := strings.TrimPrefix(strings.TrimSpace(part), "VT_")
		if i > 0 {
			switch name {
			case "VECTOR":
				t |= FlagVector
			case "ARRAY":
				t |= FlagArray
			case "BYREF":
				t |= FlagByRef
			case "RESERVED":
				t |= FlagReserved
			default:
				return 0, false
			}
			continue
		}
		k, ok := kindByName(name)
		if !ok {
			return 0, false
		}
		t |= Tag(k)
	}
	return t, true
}

func kindByName(name string) (Kind, bool) {
	if hex, ok := strings.CutPrefix(name, "0X"); ok {
		v, err := strconv.ParseUint(hex, 16, 12)
		return Kind(v), err == nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// pointerSize is the width of a linear-memory pointer.
const pointerSize = 4

// inlineSize returns the number of bytes one element of kind k occupies
// when stored inline: in a vector buffer, a safe-array data buffer or at
// the target of a by-reference pointer.
func inlineSize(k Kind) (uint32, bool) {
	switch k {
	case KindI1, KindUI1:
		return 1, true
	case KindI2, KindUI2, KindBool:
		return 2, true
	case KindI4, KindUI4, KindInt, KindUint, KindR4, KindError:
		return 4, true
	case KindBSTR, KindLPSTR, KindLPWSTR, KindUnknown, KindDispatch,
		KindStream, KindStorage, KindStreamedObject, KindStoredObject:
		return pointerSize, true
	case KindI8, KindUI8, KindR8, KindCY, KindDate, KindFileTime, KindBlob, KindBlobObject:
		return 8, true
	case KindCF:
		return clipDataSize, true
	case KindCLSID, KindDecimal, KindVariant:
		return 16, true
	case KindVersionedStream:
		return versionedStreamSize, true
	}
	return 0, false
}
