package variant

import (
	"context"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/variant-runtime/errors"
	"github.com/wippyai/variant-runtime/memory"
)

func newTestConverter(t *testing.T) (*Converter, *memory.Bytes, *memory.Heap) {
	t.Helper()
	mem := memory.NewBytes(64 * 1024)
	heap := memory.NewHeap(mem, 1024, mem.Size())
	c, err := NewConverter(Env{Memory: mem, Allocator: heap})
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	return c, mem, heap
}

// assertHeapClean fails when blocks are still live or a free was invalid.
func assertHeapClean(t *testing.T, heap *memory.Heap) {
	t.Helper()
	s := heap.Stats()
	if s.LiveBlocks != 0 || s.InvalidFrees != 0 {
		t.Errorf("heap not clean: %+v", s)
	}
}

var decimalComparer = cmp.Comparer(func(a, b *apd.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
})

func TestNewConverter_Validation(t *testing.T) {
	mem := memory.NewBytes(64)
	if _, err := NewConverter(Env{Allocator: memory.NewHeap(mem, 0, 64)}); !errors.IsKind(err, errors.KindNilPointer) {
		t.Errorf("expected nil_pointer for missing memory, got %v", err)
	}
	if _, err := NewConverter(Env{Memory: mem}); !errors.IsKind(err, errors.KindNilPointer) {
		t.Errorf("expected nil_pointer for missing allocator, got %v", err)
	}

	c, err := NewConverter(Env{Memory: mem, Allocator: memory.NewHeap(mem, 0, 64)})
	if err != nil {
		t.Fatal(err)
	}
	if c.Strings() == nil || c.Objects() == nil {
		t.Error("default collaborators not created")
	}
	if c.maxElems != DefaultMaxElements {
		t.Errorf("maxElems = %d", c.maxElems)
	}
	if c.Memory() != mem {
		t.Error("Memory() does not return the configured memory")
	}
}

func TestEndToEnd_Int(t *testing.T) {
	c, _, _ := newTestConverter(t)

	v, err := c.FromObject(42)
	if err != nil {
		t.Fatalf("FromObject failed: %v", err)
	}
	if v.Tag() != KindI4.Tag() {
		t.Errorf("tag = %v, want VT_I4", v.Tag())
	}
	want := []byte{3, 0, 0, 0, 0, 0, 0, 0, 42, 0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, v.Bytes()); diff != "" {
		t.Errorf("wire bytes mismatch (-want +got):\n%s", diff)
	}
	got, err := c.ToObject(&v)
	if err != nil {
		t.Fatalf("ToObject failed: %v", err)
	}
	if got != int32(42) {
		t.Errorf("decoded %v (%T), want int32 42", got, got)
	}
}

func TestEndToEnd_Bool(t *testing.T) {
	c, _, _ := newTestConverter(t)

	v, err := c.FromObject(true)
	if err != nil {
		t.Fatalf("FromObject failed: %v", err)
	}
	if v.Tag() != KindBool.Tag() {
		t.Errorf("tag = %v, want VT_BOOL", v.Tag())
	}
	if v.u64(payloadOffset) != 0xFFFF {
		t.Errorf("payload = %#x, want VARIANT_TRUE", v.u64(payloadOffset))
	}
	got, err := c.ToObject(&v)
	if err != nil {
		t.Fatalf("ToObject failed: %v", err)
	}
	if got != true {
		t.Errorf("decoded %v, want true", got)
	}
}

func TestLoadStoreAndDecodeAt(t *testing.T) {
	c, mem, heap := newTestConverter(t)

	v, err := c.FromObject("stored")
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Store(mem, 256); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	loaded, err := Load(mem, 256)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != v {
		t.Errorf("loaded %v, stored %v", loaded.String(), v.String())
	}
	got, err := c.DecodeAt(256)
	if err != nil {
		t.Fatalf("DecodeAt failed: %v", err)
	}
	if got != "stored" {
		t.Errorf("DecodeAt = %v", got)
	}

	if _, err := Load(mem, mem.Size()-8); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("expected out_of_bounds, got %v", err)
	}
	if _, err := FromBytes(make([]byte, 8)); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid_data for short record, got %v", err)
	}

	c.Clear(&loaded)
	assertHeapClean(t, heap)
}

// memoryWASM exports one page of memory as "memory".
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79,
	0x02, 0x00,
}

func TestConverter_GuestMemory(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mod, err := rt.Instantiate(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	mem := memory.WrapMemory(mod.ExportedMemory("memory"))
	heap := memory.NewHeap(mem, 1024, mem.Size())
	c, err := NewConverter(Env{Memory: mem, Allocator: heap})
	if err != nil {
		t.Fatal(err)
	}

	arr := NewArray(KindBSTR, []int{2, 2}, []any{"a", "b", "c", "d"})
	v, err := c.FromObject(arr)
	if err != nil {
		t.Fatalf("FromObject failed: %v", err)
	}
	if err := v.Store(mem, 64); err != nil {
		t.Fatal(err)
	}
	got, err := c.DecodeAt(64)
	if err != nil {
		t.Fatalf("DecodeAt failed: %v", err)
	}
	if diff := cmp.Diff(arr, got); diff != "" {
		t.Errorf("guest round trip mismatch (-want +got):\n%s", diff)
	}

	c.Clear(&v)
	assertHeapClean(t, heap)
}
