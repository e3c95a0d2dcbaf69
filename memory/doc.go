// Package memory provides linear memories and an allocator for tagged values.
//
// This package is the only place that turns a 32-bit address into bytes.
// Everything above it works on bounds-checked slices returned by Read.
//
// # Memories
//
//	mem := memory.NewBytes(64 * 1024)       // Go heap backed
//	mem := memory.WrapMemory(mod.Memory())  // wazero guest memory
//
// Both implement variantruntime.Memory and variantruntime.MemorySizer.
//
// # Heap
//
// Heap implements variantruntime.Allocator over any memory region. It
// records the size of every live block so Free takes only a pointer, and
// counts frees of unknown or already-freed pointers instead of corrupting
// its free list:
//
//	heap := memory.NewHeap(mem, 0x1000, mem.Size())
//	p, _ := heap.Alloc(32, 8)
//	heap.Free(p)
//	heap.Free(p) // ignored, heap.Stats().InvalidFrees == 1
package memory
