package memory

import (
	"bytes"
	"sort"
	"sync"

	"go.uber.org/zap"

	variantruntime "github.com/wippyai/variant-runtime"
	"github.com/wippyai/variant-runtime/errors"
)

// Heap is a first-fit allocator over the region [base, limit) of a Memory.
// Blocks are zeroed on allocation unless a fill byte is set.
type Heap struct {
	mem   variantruntime.Memory
	live  map[uint32]uint32
	free  []block
	base  uint32
	next  uint32
	limit uint32
	stats HeapStats
	mu    sync.Mutex
	fill  byte
}

// HeapStats reports allocator activity.
type HeapStats struct {
	Allocs       int
	Frees        int
	InvalidFrees int
	LiveBlocks   int
	LiveBytes    uint64
}

type block struct {
	ptr  uint32
	size uint32
}

// NewHeap creates a heap managing [base, limit) of mem. Address 0 is never
// handed out, so base 0 is bumped to the first aligned word.
func NewHeap(mem variantruntime.Memory, base, limit uint32) *Heap {
	if base == 0 {
		base = 8
	}
	return &Heap{
		mem:   mem,
		live:  make(map[uint32]uint32),
		base:  base,
		next:  base,
		limit: limit,
	}
}

// Alloc returns a block of size bytes aligned to align, zeroed or filled
// with the SetFill byte.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidData).
			Detail("alignment %d is not a power of two", align).
			Build()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ptr, ok := h.takeFree(size, align)
	if !ok {
		start := alignUp(uint64(h.next), uint64(align))
		end := start + uint64(size)
		if end > uint64(h.limit) {
			return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
		}
		ptr = uint32(start)
		h.next = uint32(end)
	}

	if err := h.mem.Write(ptr, bytes.Repeat([]byte{h.fill}, int(size))); err != nil {
		return 0, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "fill block")
	}

	h.live[ptr] = size
	h.stats.Allocs++
	h.stats.LiveBlocks++
	h.stats.LiveBytes += uint64(size)
	return ptr, nil
}

func (h *Heap) takeFree(size, align uint32) (uint32, bool) {
	for i, b := range h.free {
		if b.ptr&(align-1) != 0 || b.size < size {
			continue
		}
		if rest := b.size - size; rest > 0 {
			h.free[i] = block{ptr: b.ptr + size, size: rest}
		} else {
			h.free = append(h.free[:i], h.free[i+1:]...)
		}
		return b.ptr, true
	}
	return 0, false
}

// Free releases a block returned by Alloc. Unknown pointers, including
// blocks that were already freed, are counted and otherwise ignored.
func (h *Heap) Free(ptr uint32) {
	if ptr == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	size, ok := h.live[ptr]
	if !ok {
		h.stats.InvalidFrees++
		Logger().Warn("free of unknown block", zap.Uint32("ptr", ptr))
		return
	}
	delete(h.live, ptr)
	h.stats.Frees++
	h.stats.LiveBlocks--
	h.stats.LiveBytes -= uint64(size)
	h.release(block{ptr: ptr, size: size})
}

// release returns b to the free list, merging with adjacent free blocks and
// folding the tail back into the bump region.
func (h *Heap) release(b block) {
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].ptr > b.ptr })
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = b

	if i+1 < len(h.free) && h.free[i].ptr+h.free[i].size == h.free[i+1].ptr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].ptr+h.free[i-1].size == h.free[i].ptr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
		i--
	}
	if last := h.free[len(h.free)-1]; last.ptr+last.size == h.next {
		h.next = last.ptr
		h.free = h.free[:len(h.free)-1]
	}
}

// SizeOf returns the size of a live block.
func (h *Heap) SizeOf(ptr uint32) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	size, ok := h.live[ptr]
	return size, ok
}

// SetFill makes Alloc fill new blocks with b instead of zeroes, the way a
// scribbling debug malloc does. Code that relies on zeroed allocations
// then reads garbage. Zero restores the default.
func (h *Heap) SetFill(b byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fill = b
}

// Stats returns a snapshot of allocator counters.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Reset drops every block without touching memory.
func (h *Heap) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = make(map[uint32]uint32)
	h.free = h.free[:0]
	h.next = h.base
	h.stats = HeapStats{}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

var _ variantruntime.Allocator = (*Heap)(nil)
