package variant

import (
	"encoding/binary"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/memory"
	"github.com/wippyai/variant-runtime/safearray"
)

// buildI4Array lays out a safe array whose data buffer holds values in
// storage (column-major) order.
func buildI4Array(t *testing.T, mem *memory.Bytes, heap *memory.Heap, l safearray.Layout, values []int32) *safearray.Descriptor {
	t.Helper()
	d, err := safearray.Create(mem, heap, l)
	if err != nil {
		t.Fatalf("safearray.Create failed: %v", err)
	}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	if err := mem.Write(d.RawPointer(), buf); err != nil {
		t.Fatal(err)
	}
	return d
}

func arrayValue(k Kind, d *safearray.Descriptor) Value {
	return retag(scalar(k, uint64(d.Addr())), k.Tag()|FlagArray)
}

func TestArray_Transposition2x3(t *testing.T) {
	c, mem, heap := newTestConverter(t)
	d := buildI4Array(t, mem, heap, safearray.Layout{
		Bounds:      []safearray.Bound{{Count: 2}, {Count: 3}},
		ElementSize: 4,
		ElementKind: uint16(KindI4),
	}, []int32{1, 2, 3, 4, 5, 6})

	v := arrayValue(KindI4, d)
	got, err := c.ToObject(&v)
	if err != nil {
		t.Fatalf("ToObject failed: %v", err)
	}
	arr := got.(*Array)

	want := []any{
		[]any{int32(1), int32(3), int32(5)},
		[]any{int32(2), int32(4), int32(6)},
	}
	if diff := cmp.Diff(want, arr.Nested()); diff != "" {
		t.Errorf("transposition mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, arr.Lengths); diff != "" {
		t.Errorf("lengths mismatch (-want +got):\n%s", diff)
	}
	if e, ok := arr.At(1, 0); !ok || e != int32(2) {
		t.Errorf("At(1,0) = %v, %v", e, ok)
	}
	if _, ok := arr.At(2, 0); ok {
		t.Error("At(2,0) out of range accepted")
	}

	c.Clear(&v)
	assertHeapClean(t, heap)
}

func TestArray_NonZeroLowerBounds(t *testing.T) {
	c, mem, heap := newTestConverter(t)
	d := buildI4Array(t, mem, heap, safearray.Layout{
		Bounds:      []safearray.Bound{{Count: 2, Lower: -1}, {Count: 2, Lower: 10}},
		ElementSize: 4,
		ElementKind: uint16(KindI4),
	}, []int32{1, 2, 3, 4})

	v := arrayValue(KindI4, d)
	got, err := c.ToObject(&v)
	if err != nil {
		t.Fatal(err)
	}
	arr := got.(*Array)
	if diff := cmp.Diff([]int{-1, 10}, arr.LowerBounds); diff != "" {
		t.Errorf("lower bounds mismatch (-want +got):\n%s", diff)
	}
	for _, tc := range []struct {
		i, j int
		want int32
	}{
		{-1, 10, 1}, {0, 10, 2}, {-1, 11, 3}, {0, 11, 4},
	} {
		if e, ok := arr.At(tc.i, tc.j); !ok || e != tc.want {
			t.Errorf("At(%d,%d) = %v, want %d", tc.i, tc.j, e, tc.want)
		}
	}

	one := buildI4Array(t, mem, heap, safearray.Layout{
		Bounds:      []safearray.Bound{{Count: 3, Lower: 1}},
		ElementSize: 4,
		ElementKind: uint16(KindI4),
	}, []int32{7, 8, 9})
	v1 := arrayValue(KindI4, one)
	got, err = c.ToObject(&v1)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := got.(*Array).At(1); !ok || e != int32(7) {
		t.Errorf("At(1) = %v, %v", e, ok)
	}

	c.Clear(&v)
	c.Clear(&v1)
	assertHeapClean(t, heap)
}

func TestArray_FastPathMatchesGeneralPath(t *testing.T) {
	c, mem, heap := newTestConverter(t)
	values := []int32{10, -20, 30, -40, 50}
	d := buildI4Array(t, mem, heap, safearray.Layout{
		Bounds:      []safearray.Bound{{Count: uint32(len(values))}},
		ElementSize: 4,
		ElementKind: uint16(KindI4),
	}, values)

	data, err := mem.Read(d.RawPointer(), uint32(4*len(values)))
	if err != nil {
		t.Fatal(err)
	}
	fast := make([]any, len(values))
	if err := c.copyElements(KindI4, 4, data, fast, nil, 0); err != nil {
		t.Fatal(err)
	}
	general := make([]any, len(values))
	if err := c.transposeElements(KindI4, 4, data, d.RawBounds(), general, nil, 0); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fast, general); diff != "" {
		t.Errorf("fast and general paths differ (-fast +general):\n%s", diff)
	}
	_ = safearray.Destroy(heap, d)
	assertHeapClean(t, heap)
}

func TestArray_ElementCoercion(t *testing.T) {
	c, mem, heap := newTestConverter(t)

	tests := []struct {
		name     string
		declared Kind
		omit     bool
		size     uint32
		want     Kind
		err      errors.Kind
	}{
		{"INT as I4", KindInt, false, 4, KindI4, ""},
		{"I4 as INT", KindI4, false, 4, KindInt, ""},
		{"UINT as UI4", KindUint, false, 4, KindUI4, ""},
		{"UI4 as UINT", KindUI4, false, 4, KindUint, ""},
		{"UNKNOWN as DISPATCH", KindUnknown, false, 4, KindDispatch, ""},
		{"DISPATCH as UNKNOWN", KindDispatch, false, 4, KindUnknown, ""},
		{"R4 as I4", KindR4, false, 4, KindI4, errors.KindArrayTypeMismatch},
		{"I2 as I4", KindI2, false, 2, KindI4, errors.KindArrayTypeMismatch},
		{"undeclared size match", 0, true, 4, KindI4, ""},
		{"undeclared size mismatch", 0, true, 8, KindI4, errors.KindArrayTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := safearray.Create(mem, heap, safearray.Layout{
				Bounds:      []safearray.Bound{{Count: 1}},
				ElementSize: tt.size,
				ElementKind: uint16(tt.declared),
				OmitKind:    tt.omit,
			})
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = safearray.Destroy(heap, d) }()

			v := arrayValue(tt.want, d)
			_, err = c.ToObject(&v)
			if tt.err == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.IsKind(err, tt.err) {
				t.Errorf("expected %s, got %v", tt.err, err)
			}
		})
	}
	assertHeapClean(t, heap)
}

func TestArray_NullAndUnsupported(t *testing.T) {
	c, mem, heap := newTestConverter(t)

	null := retag(Value{}, KindI4.Tag()|FlagArray)
	if got, err := c.ToObject(&null); err != nil || got != nil {
		t.Errorf("null array decoded %v, %v", got, err)
	}

	d, err := safearray.Create(mem, heap, safearray.Layout{
		Bounds:      []safearray.Bound{{Count: 1}},
		ElementSize: 8,
		ElementKind: uint16(KindRecord),
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := arrayValue(KindRecord, d)
	if _, err := c.ToObject(&rec); !errors.IsKind(err, errors.KindRecordMarshalingUnsupported) {
		t.Errorf("expected record_marshaling_unsupported, got %v", err)
	}
	_ = safearray.Destroy(heap, d)

	lp := retag(scalar(KindLPWSTR, 64), KindLPWSTR.Tag()|FlagArray)
	if _, err := c.ToObject(&lp); !errors.IsKind(err, errors.KindUnsupportedKind) {
		t.Errorf("expected unsupported_kind, got %v", err)
	}

	// zero dimensions
	_ = mem.WriteU16(512, 0)
	bad := retag(scalar(KindI4, 512), KindI4.Tag()|FlagArray)
	if _, err := c.ToObject(&bad); !errors.IsKind(err, errors.KindInvalidDescriptor) {
		t.Errorf("expected invalid_descriptor, got %v", err)
	}
	assertHeapClean(t, heap)
}

func TestArray_ByRef(t *testing.T) {
	c, mem, heap := newTestConverter(t)
	arr := NewArray(KindR8, []int{3}, []any{1.0, 2.0, 3.0})
	v, err := c.FromObject(arr)
	if err != nil {
		t.Fatal(err)
	}
	_ = mem.WriteU32(128, v.pointer())

	ref := NewByRef(KindR8.Tag()|FlagArray, 128)
	got, err := c.ToObject(&ref)
	if err != nil {
		t.Fatalf("ToObject failed: %v", err)
	}
	if diff := cmp.Diff(arr, got); diff != "" {
		t.Errorf("by-ref array mismatch (-want +got):\n%s", diff)
	}

	nullRef := NewByRef(KindR8.Tag()|FlagArray, 0)
	if _, err := c.ToObject(&nullRef); !errors.IsKind(err, errors.KindNullByRefPointer) {
		t.Errorf("expected null_byref_pointer, got %v", err)
	}

	c.Clear(&ref)
	if heap.Stats().LiveBlocks == 0 {
		t.Error("clearing the reference released the array")
	}
	c.Clear(&v)
	assertHeapClean(t, heap)
}

func TestArray_RoundTrip(t *testing.T) {
	c, _, heap := newTestConverter(t)

	tests := []struct {
		name string
		arr  *Array
	}{
		{"3d ints", NewArray(KindI2, []int{2, 3, 2}, []any{
			int16(0), int16(1), int16(2), int16(3), int16(4), int16(5),
			int16(6), int16(7), int16(8), int16(9), int16(10), int16(11),
		})},
		{"strings", NewArray(KindBSTR, []int{3, 1}, []any{"x", "yy", "zzz"})},
		{"variants", NewArray(KindVariant, []int{2, 2}, []any{int32(1), "two", true, nil})},
		{"nested array in variant", NewArray(KindVariant, []int{1}, []any{
			NewArray(KindUI1, []int{2}, []any{uint8(1), uint8(2)}),
		})},
		{"bounded", &Array{Kind: KindI4, Lengths: []int{2}, LowerBounds: []int{5}, Elements: []any{int32(1), int32(2)}}},
		{"empty", NewArray(KindR4, []int{0}, []any{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := c.FromObject(tt.arr)
			if err != nil {
				t.Fatalf("FromObject failed: %v", err)
			}
			got, err := c.ToObject(&v)
			if err != nil {
				t.Fatalf("ToObject failed: %v", err)
			}
			if diff := cmp.Diff(tt.arr, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			c.Clear(&v)
			c.Clear(&v)
		})
	}
	assertHeapClean(t, heap)
}

func TestArray_ElementErrorPath(t *testing.T) {
	c, mem, heap := newTestConverter(t)
	d, err := safearray.Create(mem, heap, safearray.Layout{
		Bounds:      []safearray.Bound{{Count: 2}, {Count: 2}},
		ElementSize: 4,
		ElementKind: uint16(KindUnknown),
	})
	if err != nil {
		t.Fatal(err)
	}
	// element [1,1] holds a handle missing from the object table
	if err := d.WriteElement(mem, []byte{77, 0, 0, 0}, 1, 1); err != nil {
		t.Fatal(err)
	}
	v := arrayValue(KindUnknown, d)
	_, err = c.ToObject(&v)
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if diff := cmp.Diff([]string{"[1,1]"}, e.Path); diff != "" {
		t.Errorf("error path mismatch (-want +got):\n%s", diff)
	}
	_ = safearray.Destroy(heap, d)
}

func TestArray_EncodeErrors(t *testing.T) {
	c, _, heap := newTestConverter(t)

	tests := []struct {
		name string
		arr  *Array
		kind errors.Kind
	}{
		{"shape mismatch", NewArray(KindI4, []int{2, 2}, []any{int32(1)}), errors.KindInvalidData},
		{"no dimensions", NewArray(KindI4, nil, nil), errors.KindInvalidData},
		{"record", NewArray(KindRecord, []int{1}, []any{nil}), errors.KindRecordMarshalingUnsupported},
		{"unsupported element", NewArray(KindCLSID, []int{1}, []any{nil}), errors.KindUnsupportedKind},
		{"element type", NewArray(KindBSTR, []int{2}, []any{"ok", 5}), errors.KindUnsupportedHostType},
		{"element range", NewArray(KindI1, []int{1}, []any{300}), errors.KindUnsupportedHostType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.FromObject(tt.arr); !errors.IsKind(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
	// partial encodes release what they allocated
	assertHeapClean(t, heap)
}
