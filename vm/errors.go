package vm

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed error taxonomy an interpretation can fail with.
// The interpreter never recovers from these itself; the first one unwinds
// every frame and is handed back to the embedder.
type ErrorKind uint8

const (
	// InvalidArgument covers malformed payloads, cast across incompatible
	// shapes, bad widths for shift/compare, and non-indexable bases.
	InvalidArgument ErrorKind = iota
	// Internal covers stack underflow, PC out of range, a jump target that
	// isn't a jump-dest, an out-of-bounds match-arm slot, or a missing
	// bytecode cache/instantiation type-info.
	Internal
	// Failure covers a user-visible assertion failure or explicit fail!.
	Failure
	// Unavailable covers recv on an empty channel; it is the only kind an
	// embedder is expected to recover from, by rescheduling the process.
	Unavailable
	// Unimplemented covers a builtin present in the closed set but not yet
	// wired into the dispatch table.
	Unimplemented
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid-argument"
	case Internal:
		return "internal"
	case Failure:
		return "failure"
	case Unavailable:
		return "unavailable"
	case Unimplemented:
		return "unimplemented"
	default:
		return "unknown-error-kind"
	}
}

// Error is the single error type the interpreter raises. Span is populated
// only for Failure errors arising from a source-attributed fail!/assertion.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *Span
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a *Error, along
// with ok=true. Embedders use this to distinguish recoverable Unavailable
// errors from every other kind.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func invalidArgumentf(format string, args ...interface{}) error {
	return &Error{Kind: InvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func internalf(format string, args ...interface{}) error {
	return &Error{Kind: Internal, Message: fmt.Sprintf(format, args...)}
}

func unimplementedf(format string, args ...interface{}) error {
	return &Error{Kind: Unimplemented, Message: fmt.Sprintf(format, args...)}
}

func unavailablef(format string, args ...interface{}) error {
	return &Error{Kind: Unavailable, Message: fmt.Sprintf(format, args...)}
}

func failuref(span *Span, format string, args ...interface{}) error {
	return &Error{Kind: Failure, Message: fmt.Sprintf(format, args...), Span: span}
}
