// Package errs defines the error taxonomy shared by every backend operation.
//
// Each failure carries exactly one kind. Callers classify with errors.Is
// against the sentinel values, and the translation layer maps kinds onto
// numeric codes with Code.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrIO              = errors.New("io error")
	ErrUnsupported     = errors.New("unsupported")
)

// Error is a tagged failure of an operation. Kind is one of the sentinels
// above; Err is the underlying cause if there is one.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func InvalidArgument(op string, format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

func NotFound(op string, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

func Unsupported(op string, format string, args ...any) error {
	return &Error{Kind: ErrUnsupported, Op: op, Err: fmt.Errorf(format, args...)}
}

// IO wraps an OS-level failure. A nil cause yields nil.
func IO(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: ErrIO, Op: op, Err: cause}
}

// KindOf returns the sentinel kind of err, or nil when err is untagged.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidArgument, ErrNotFound, ErrIO, ErrUnsupported} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName is the metric/log label for the kind of err.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrNotFound:
		return "not_found"
	case ErrIO:
		return "io"
	case ErrUnsupported:
		return "unsupported"
	}
	if err == nil {
		return ""
	}
	return "internal"
}
