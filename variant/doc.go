// Package variant converts VARIANT / PROPVARIANT tagged values between
// linear memory and Go.
//
// A Value is the 16-byte wire record: a tag, three reserved words and an
// 8-byte payload union. The tag's low 12 bits select a Kind; FlagVector,
// FlagArray and FlagByRef modify it. Only the tag says how the payload is
// read, so every access goes through Classify first.
//
// # Decoding
//
// Converter.ToObject dispatches on the classified tag:
//
//	VT_VECTOR|k   counted inline vector   -> *Array (rank 1)
//	VT_ARRAY|k    safe-array handle       -> *Array (row-major)
//	VT_BYREF|k    pointer to a k          -> value of k, one dereference
//	k             payload                 -> Go scalar
//
// Safe-array data is column-major. Decoding walks the buffer in storage
// order and scatters elements to their row-major position, so a 2×3 buffer
// [1 2 3 4 5 6] becomes [[1 3 5] [2 4 6]].
//
// A VT_VARIANT|VT_BYREF target must not itself be by reference.
//
// # Ownership
//
// Values returned by FromObject and the New* constructors own their
// strings, buffers, safe arrays and object references. Converter.Clear
// releases them once and resets the value to EMPTY; by-reference values
// own nothing.
package variant
