package variant

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/wippyai/variant-runtime/errors"
)

func TestVector_RoundTrip(t *testing.T) {
	c, _, heap := newTestConverter(t)
	when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		vec  *Array
	}{
		{"i4", NewVector(KindI4, []any{int32(1), int32(-2), int32(3)})},
		{"ui8", NewVector(KindUI8, []any{uint64(1) << 63})},
		{"bool", NewVector(KindBool, []any{true, false, true})},
		{"bstr", NewVector(KindBSTR, []any{"a", "", "ccc"})},
		{"lpwstr", NewVector(KindLPWSTR, []any{"wide", nil})},
		{"lpstr", NewVector(KindLPSTR, []any{"narrow"})},
		{"filetime", NewVector(KindFileTime, []any{when})},
		{"date", NewVector(KindDate, []any{when})},
		{"clsid", NewVector(KindCLSID, []any{uuid.MustParse("6b29fc40-ca47-1067-b31d-00dd010662da")})},
		{"cf", NewVector(KindCF, []any{ClipData{Format: -1, Data: []byte{9, 9}}, ClipData{Format: 2, Data: []byte{}}})},
		{"variant", NewVector(KindVariant, []any{int32(5), "s", Null{}})},
		{"error", NewVector(KindError, []any{SCode(1), SCode(-1)})},
		{"empty", NewVector(KindR8, []any{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := c.FromObject(tt.vec)
			if err != nil {
				t.Fatalf("FromObject failed: %v", err)
			}
			if !v.Tag().IsVector() {
				t.Errorf("tag %v lacks VT_VECTOR", v.Tag())
			}
			got, err := c.ToObject(&v)
			if err != nil {
				t.Fatalf("ToObject failed: %v", err)
			}
			if diff := cmp.Diff(tt.vec, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			c.Clear(&v)
		})
	}
	assertHeapClean(t, heap)
}

func TestVector_Objects(t *testing.T) {
	c, _, heap := newTestConverter(t)
	a, b := &stream{name: "a"}, &stream{name: "b"}

	v, err := c.FromObject(NewVector(KindUnknown, []any{a, nil, b}))
	if err != nil {
		t.Fatal(err)
	}
	if c.Objects().Len() != 2 {
		t.Errorf("objects = %d, want 2", c.Objects().Len())
	}
	got, err := c.ToObject(&v)
	if err != nil {
		t.Fatal(err)
	}
	elems := got.(*Array).Elements
	if elems[0] != a || elems[1] != nil || elems[2] != b {
		t.Errorf("decoded %v", elems)
	}
	c.Clear(&v)
	if c.Objects().Len() != 0 {
		t.Errorf("objects left after clear: %d", c.Objects().Len())
	}
	assertHeapClean(t, heap)
}

func TestVector_Errors(t *testing.T) {
	c, _, _ := newTestConverter(t)

	for _, k := range []Kind{KindRecord, KindBlob, KindDecimal, KindStream, KindVersionedStream} {
		v := retag(scalar(k, 0), k.Tag()|FlagVector)
		v.putU32(elemPtrOffset, 64)
		if _, err := c.ToObject(&v); !errors.IsKind(err, errors.KindUnsupportedVectorElementKind) {
			t.Errorf("%v: expected unsupported_vector_element_kind, got %v", k, err)
		}
		if _, err := c.FromObject(NewVector(k, nil)); !errors.IsKind(err, errors.KindUnsupportedVectorElementKind) {
			t.Errorf("%v: encode expected unsupported_vector_element_kind, got %v", k, err)
		}
	}

	null := retag(Value{}, KindI4.Tag()|FlagVector)
	null.putU32(countOffset, 3)
	if got, err := c.ToObject(&null); err != nil || got != nil {
		t.Errorf("null vector decoded %v, %v", got, err)
	}

	for _, tag := range []Tag{KindI4.Tag() | FlagVector | FlagByRef, KindI4.Tag() | FlagVector | FlagArray} {
		v := newValue(tag)
		if _, err := c.ToObject(&v); !errors.IsKind(err, errors.KindInvalidTag) {
			t.Errorf("%v: expected invalid_tag, got %v", tag, err)
		}
	}

	huge := retag(Value{}, KindI4.Tag()|FlagVector)
	huge.putU32(countOffset, DefaultMaxElements+1)
	huge.putU32(elemPtrOffset, 64)
	if _, err := c.ToObject(&huge); !errors.IsKind(err, errors.KindOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}

	short := retag(Value{}, KindI8.Tag()|FlagVector)
	short.putU32(countOffset, 100_000)
	short.putU32(elemPtrOffset, 64)
	if _, err := c.ToObject(&short); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("expected out_of_bounds, got %v", err)
	}
}
