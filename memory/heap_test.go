package memory

import (
	"testing"

	"github.com/wippyai/variant-runtime/errors"
)

func TestHeap_AllocAlignmentAndZeroing(t *testing.T) {
	mem := NewBytes(1024)
	for i := range mem.Data() {
		mem.Data()[i] = 0xAA
	}
	heap := NewHeap(mem, 0, 1024)

	p1, err := heap.Alloc(3, 1)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if p1 == 0 {
		t.Fatal("heap handed out the null address")
	}

	p2, err := heap.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if p2%8 != 0 {
		t.Errorf("pointer %d not 8-aligned", p2)
	}
	data, _ := mem.Read(p2, 16)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: 0x%x", i, b)
		}
	}

	st := heap.Stats()
	if st.LiveBlocks != 2 || st.LiveBytes != 19 {
		t.Errorf("stats = %+v", st)
	}
}

func TestHeap_FreeReuse(t *testing.T) {
	mem := NewBytes(256)
	heap := NewHeap(mem, 16, 256)

	a, _ := heap.Alloc(32, 4)
	b, _ := heap.Alloc(32, 4)
	heap.Free(a)

	c, err := heap.Alloc(16, 4)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if c != a {
		t.Errorf("expected first-fit reuse of %d, got %d", a, c)
	}

	heap.Free(b)
	heap.Free(c)
	if st := heap.Stats(); st.LiveBlocks != 0 || st.LiveBytes != 0 {
		t.Errorf("expected empty heap, got %+v", st)
	}

	// everything coalesced back into the bump region
	d, _ := heap.Alloc(200, 4)
	if d != 16 {
		t.Errorf("expected allocation at region start, got %d", d)
	}
}

func TestHeap_InvalidFrees(t *testing.T) {
	mem := NewBytes(128)
	heap := NewHeap(mem, 8, 128)

	p, _ := heap.Alloc(8, 8)
	heap.Free(p)
	heap.Free(p)
	heap.Free(77)
	heap.Free(0)

	st := heap.Stats()
	if st.Frees != 1 {
		t.Errorf("Frees = %d, want 1", st.Frees)
	}
	if st.InvalidFrees != 2 {
		t.Errorf("InvalidFrees = %d, want 2", st.InvalidFrees)
	}
}

func TestHeap_Exhaustion(t *testing.T) {
	mem := NewBytes(64)
	heap := NewHeap(mem, 8, 64)

	if _, err := heap.Alloc(100, 1); !errors.IsKind(err, errors.KindAllocation) {
		t.Errorf("expected allocation error, got %v", err)
	}
	if _, err := heap.Alloc(4, 3); !errors.IsKind(err, errors.KindInvalidData) {
		t.Errorf("expected invalid alignment error, got %v", err)
	}
}

func TestHeap_SizeOfAndReset(t *testing.T) {
	mem := NewBytes(64)
	heap := NewHeap(mem, 8, 64)

	p, _ := heap.Alloc(12, 4)
	if size, ok := heap.SizeOf(p); !ok || size != 12 {
		t.Errorf("SizeOf = %d, %v", size, ok)
	}
	heap.Reset()
	if _, ok := heap.SizeOf(p); ok {
		t.Error("block survived Reset")
	}
	if st := heap.Stats(); st != (HeapStats{}) {
		t.Errorf("stats not reset: %+v", st)
	}
}

func TestHeap_SetFill(t *testing.T) {
	mem := NewBytes(256)
	heap := NewHeap(mem, 0, 256)
	heap.SetFill(0xAA)

	p, err := heap.Alloc(8, 4)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	data, _ := mem.Read(p, 8)
	for i, b := range data {
		if b != 0xAA {
			t.Fatalf("byte %d = 0x%x, want 0xaa", i, b)
		}
	}

	heap.SetFill(0)
	p, err = heap.Alloc(8, 4)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	data, _ = mem.Read(p, 8)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = 0x%x after fill reset", i, b)
		}
	}
}
