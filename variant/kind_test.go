package variant

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/variant-runtime/errors"
)

func TestTag_String(t *testing.T) {
	tests := []struct {
		tag  Tag
		want string
	}{
		{KindEmpty.Tag(), "VT_EMPTY"},
		{KindI4.Tag() | FlagByRef, "VT_I4|VT_BYREF"},
		{KindVariant.Tag() | FlagArray | FlagByRef, "VT_VARIANT|VT_ARRAY|VT_BYREF"},
		{KindLPWSTR.Tag() | FlagVector, "VT_LPWSTR|VT_VECTOR"},
		{Tag(0x7F), "VT_0x7f"},
		{Tag(0x8000) | KindBSTR.Tag(), "VT_BSTR|VT_RESERVED"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.tag.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			parsed, ok := ParseTag(tt.want)
			if !ok || parsed != tt.tag {
				t.Errorf("ParseTag(%q) = %v, %v", tt.want, parsed, ok)
			}
		})
	}

	if got, ok := ParseTag("0x2003"); !ok || got != KindI4.Tag()|FlagArray {
		t.Errorf("ParseTag(0x2003) = %v, %v", got, ok)
	}
	if got, ok := ParseTag("vt_bool|vt_byref"); !ok || got != KindBool.Tag()|FlagByRef {
		t.Errorf("ParseTag lower case = %v, %v", got, ok)
	}
	for _, bad := range []string{"", "VT_NOPE", "VT_I4|VT_NOPE", "0xZZ"} {
		if _, ok := ParseTag(bad); ok {
			t.Errorf("ParseTag(%q) accepted", bad)
		}
	}
}

func TestKind_InlineSizes(t *testing.T) {
	for k := range kindNames {
		size, ok := inlineSize(k)
		switch k {
		case KindEmpty, KindNull, KindRecord:
			if ok {
				t.Errorf("%v has an inline size", k)
			}
		default:
			if !ok || size == 0 {
				t.Errorf("%v has no inline size", k)
			}
		}
	}
	for k := range kindNames {
		if arrayElementKind(k) {
			if _, ok := inlineSize(k); !ok {
				t.Errorf("array element kind %v has no size", k)
			}
		}
		if vectorElementKind(k) {
			if _, ok := inlineSize(k); !ok {
				t.Errorf("vector element kind %v has no size", k)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		tag  Tag
		want Class
		err  errors.Kind
	}{
		{KindI4.Tag(), Class{Kind: KindI4}, ""},
		{KindI4.Tag() | FlagByRef, Class{Kind: KindI4, ByRef: true}, ""},
		{KindBSTR.Tag() | FlagArray | FlagByRef, Class{Kind: KindBSTR, ByRef: true, IsArray: true}, ""},
		{KindUI1.Tag() | FlagVector, Class{Kind: KindUI1, IsVector: true}, ""},
		{Tag(0x80), Class{}, errors.KindInvalidTag},
		{Tag(0xFFF), Class{}, errors.KindInvalidTag},
		{KindI4.Tag() | FlagReserved, Class{}, errors.KindInvalidTag},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			got, err := Classify(tt.tag)
			if tt.err != "" {
				if !errors.IsKind(err, tt.err) {
					t.Errorf("expected %s, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify mismatch (-want +got):\n%s", diff)
			}
			if got.Tag() != tt.tag {
				t.Errorf("Tag() = %v, want %v", got.Tag(), tt.tag)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := []Tag{
		KindVariant.Tag() | FlagByRef,
		KindVariant.Tag() | FlagArray,
		KindVariant.Tag() | FlagVector,
		KindI4.Tag() | FlagArray | FlagByRef,
		KindEmpty.Tag() | FlagByRef,
	}
	for _, tag := range valid {
		if _, err := Validate(tag); err != nil {
			t.Errorf("Validate(%v) failed: %v", tag, err)
		}
	}
	invalid := []Tag{
		KindVariant.Tag(),
		KindI4.Tag() | FlagVector | FlagArray,
		KindI4.Tag() | FlagVector | FlagByRef,
		KindEmpty.Tag() | FlagArray,
		KindNull.Tag() | FlagVector,
	}
	for _, tag := range invalid {
		if _, err := Validate(tag); !errors.IsKind(err, errors.KindInvalidTag) {
			t.Errorf("Validate(%v): expected invalid_tag, got %v", tag, err)
		}
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"zero", Value{}, true},
		{"reserved bits only", func() Value { var v Value; v.raw[4] = 1; return v }(), true},
		{"payload", scalar(KindEmpty, 1), false},
		{"by reference", NewByRef(KindEmpty.Tag(), 0), false},
		{"null", newValue(KindNull.Tag()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmpty(&tt.v); got != tt.want {
				t.Errorf("IsEmpty = %v, want %v", got, tt.want)
			}
		})
	}
}
