// Package errs defines the semantic error taxonomy shared by the download
// engine and its supporting packages.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an error by the layer that produced it, independent of
// the underlying Go error type.
type Kind int

const (
	// KindUnknown is the zero value; KindOf returns it for plain errors that
	// never passed through New/Wrap.
	KindUnknown Kind = iota
	KindInvalidState
	KindNotFound
	KindNetwork
	KindStorage
	KindIo
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalidState:
		return "invalid state"
	case KindNotFound:
		return "not found"
	case KindNetwork:
		return "network"
	case KindStorage:
		return "storage"
	case KindIo:
		return "io"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error wraps a Kind and an optional underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err, walking the Unwrap chain. Errors that
// never passed through New/Wrap report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether the first *Error in err's chain (the one KindOf reports)
// has the given Kind; *Errors wrapped further down are not consulted.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
