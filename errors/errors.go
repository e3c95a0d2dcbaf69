package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseClassify Phase = "classify" // tag validation
	PhaseDecode   Phase = "decode"   // tagged value to Go
	PhaseEncode   Phase = "encode"   // Go to tagged value
	PhaseClear    Phase = "clear"    // resource release
	PhaseMemory   Phase = "memory"   // linear memory access
	PhaseLoad     Phase = "load"     // image loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidTag                   Kind = "invalid_tag"
	KindInvalidNestedReference       Kind = "invalid_nested_reference"
	KindUnsupportedByRefKind         Kind = "unsupported_byref_kind"
	KindNullByRefPointer             Kind = "null_byref_pointer"
	KindUnsupportedKind              Kind = "unsupported_kind"
	KindUnsupportedHostType          Kind = "unsupported_host_type"
	KindArrayTypeMismatch            Kind = "array_type_mismatch"
	KindRecordMarshalingUnsupported  Kind = "record_marshaling_unsupported"
	KindUnsupportedVectorElementKind Kind = "unsupported_vector_element_kind"
	KindInvalidDescriptor            Kind = "invalid_descriptor"

	KindOutOfBounds Kind = "out_of_bounds"
	KindInvalidData Kind = "invalid_data"
	KindOverflow    Kind = "overflow"
	KindAllocation  Kind = "allocation"
	KindNilPointer  Kind = "nil_pointer"
	KindNotFound    Kind = "not_found"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Tag    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Tag != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Tag != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", tag ")
			b.WriteString(e.Tag)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("tag ")
			b.WriteString(e.Tag)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Tag != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Tag sets the tag name
func (b *Builder) Tag(t string) *Builder {
	b.err.Tag = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Conversion failure taxonomy

// InvalidTag creates an illegal tag error
func InvalidTag(phase Phase, tag uint16, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidTag,
		Detail: fmt.Sprintf("tag 0x%04x: %s", tag, detail),
		Value:  tag,
	}
}

// InvalidNestedReference creates an error for a by-reference value whose target is itself by-reference
func InvalidNestedReference(path []string, innerTag string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidNestedReference,
		Path:   path,
		Tag:    innerTag,
		Detail: "by-reference VT_VARIANT target must not be by-reference",
	}
}

// UnsupportedByRefKind creates an error for a kind that has no by-reference form
func UnsupportedByRefKind(path []string, tag string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnsupportedByRefKind,
		Path:   path,
		Tag:    tag,
		Detail: "kind is only supported by value",
	}
}

// NullByRefPointer creates an error for a by-reference value with a null target
func NullByRefPointer(path []string, tag string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindNullByRefPointer,
		Path:   path,
		Tag:    tag,
		Detail: "by-reference pointer is null",
	}
}

// UnsupportedKind creates an error for a kind this runtime does not convert
func UnsupportedKind(phase Phase, path []string, tag string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindUnsupportedKind,
		Path:  path,
		Tag:   tag,
	}
}

// UnsupportedHostType creates an error for a Go value with no tagged representation
func UnsupportedHostType(goType string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindUnsupportedHostType,
		GoType: goType,
	}
}

// ArrayTypeMismatch creates an error for a safe array whose elements differ from the requested kind
func ArrayTypeMismatch(path []string, requested, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindArrayTypeMismatch,
		Path:   path,
		Tag:    requested,
		Detail: detail,
	}
}

// RecordMarshalingUnsupported creates an error for record (user-defined type) elements
func RecordMarshalingUnsupported(path []string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindRecordMarshalingUnsupported,
		Path:   path,
		Tag:    "VT_RECORD",
		Detail: "record marshaling is not implemented",
	}
}

// UnsupportedVectorElementKind creates an error for a vector of an unsupported element kind
func UnsupportedVectorElementKind(path []string, elemTag string) *Error {
	return &Error{
		Phase: PhaseDecode,
		Kind:  KindUnsupportedVectorElementKind,
		Path:  path,
		Tag:   elemTag,
	}
}

// InvalidDescriptor creates an error for a malformed safe-array descriptor
func InvalidDescriptor(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidDescriptor,
		Path:   path,
		Detail: detail,
	}
}

// Supporting constructors

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// MemoryOutOfBounds creates an error for an access outside linear memory
func MemoryOutOfBounds(offset, length uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		Detail: what + " is nil",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Tag:    target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, key any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %v not found", what, key),
		Value:  key,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath returns err with path prepended when err is an *Error; other errors
// are wrapped as invalid data so the element location is never lost.
func WithPath(err error, path ...string) error {
	if err == nil || len(path) == 0 {
		return err
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Path = append(append([]string{}, path...), e.Path...)
		return &cp
	}
	return &Error{
		Phase: PhaseDecode,
		Kind:  KindInvalidData,
		Path:  path,
		Cause: err,
	}
}
