// Package variantruntime converts legacy tagged-union values (VARIANT /
// PROPVARIANT style records) to Go values and back.
//
// A tagged value is a 16-byte record: a 16-bit type tag, six reserved
// bytes and an 8-byte payload whose interpretation depends solely on the
// tag. Strings, object handles, safe arrays and by-reference targets are
// reached through 32-bit pointers into a linear Memory.
//
// # Architecture Overview
//
//	variantruntime/      Root package with the Memory and Allocator interfaces
//	├── variant/         Tagged values: classification, decode, encode, clear
//	├── safearray/       Safe-array descriptor accessor and builders
//	├── interop/         String marshaling and refcounted object handles
//	├── memory/          Slice-backed and wazero-backed memories, heap allocator
//	├── errors/          Structured error types
//	└── cmd/vtdump/      Inspect tagged values inside a raw memory image
//
// # Quick Start
//
//	mem := memory.NewBytes(64 * 1024)
//	heap := memory.NewHeap(mem, 0x100, mem.Size())
//	conv := variant.NewConverter(variant.Env{Memory: mem, Allocator: heap})
//
//	v, err := conv.FromObject(int32(42))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Clear(&v)
//
//	out, err := conv.ToObject(&v)
//	fmt.Println(out) // 42
//
// # Thread Safety
//
// Converter holds no mutable state of its own; concurrent decodes of
// distinct values are safe as long as the Memory, Strings and Objects
// collaborators are. A single Value must not be mutated concurrently.
package variantruntime
