// Package interop implements the string and object primitives that tagged
// values point at.
//
// # Strings
//
// Strings lives on top of a Memory and an Allocator and understands the
// three string encodings a tagged value can reference:
//
//	BSTR    u32 byte length | UTF-16LE data | u16 NUL   (pointer addresses the data)
//	LPWSTR  UTF-16LE data | u16 NUL
//	LPSTR   Windows-1252 data | NUL
//
// # Objects
//
// Objects is a reference-counted handle table. Object handles stored in
// tagged values are indices into it. Handle 0 is reserved and means "no
// object". Insert starts an entry at one reference; the entry is dropped,
// and its Dropper called, when the last reference is released.
//
// Owned wraps a handle whose reference belongs to the holder. Releasing
// an Owned is the only place a tagged value gives a reference back.
package interop
