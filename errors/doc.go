// Package errors provides structured error types for the variant runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: element path, Go type and tag names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindArrayTypeMismatch).
//		Path("field", "[1,2]").
//		GoType("int32").
//		Tag("VT_R4").
//		Detail("declared element kind differs").
//		Build()
//
// Or use convenience constructors for the conversion failure taxonomy:
//
//	err := errors.InvalidTag(errors.PhaseClassify, 0x00ff)
//	err := errors.NullByRefPointer(path, "VT_I4")
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches on Kind alone, regardless of the phase that produced the error.
package errors
