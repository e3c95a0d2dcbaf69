// Package safearray reads and lays out safe-array descriptors in linear memory.
//
// A descriptor is 16 bytes followed by one 8-byte bound record per
// dimension:
//
//	Offset  Size  Field
//	──────────────────────────────
//	0       2     cDims
//	2       2     fFeatures
//	4       4     cbElements
//	8       4     cLocks
//	12      4     pvData
//	16      8·n   rgsabound[n] {cElements u32, lLbound i32}
//
// Bound records are stored in reverse: record 0 describes the last
// logical dimension. Descriptor exposes both orders; Bounds(dim) uses
// logical dimension numbering.
//
// When FeatureHaveVarType is set the element tag is stored as a u32 at
// descriptor address - 4. Descriptors produced by Create always reserve a
// 16-byte prefix for it.
//
// The data buffer is column-major: the first logical dimension varies
// fastest.
package safearray
