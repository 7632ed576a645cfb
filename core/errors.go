package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// Kind classifies errors crossing a store or coordinator boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthenticated
	KindAccessDenied
	KindNotFound
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a classified error. Two Errors match with errors.Is when their kinds are equal,
// so wrapped store errors still compare equal to the sentinels below.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

var (
	ErrNotFound        = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict        = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrAccessDenied    = &Error{Kind: KindAccessDenied, Msg: "permission denied"}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Msg: "user not authenticated"}
	ErrTransient       = &Error{Kind: KindTransient, Msg: "service temporarily unavailable"}
)

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func NewNotFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func NewConflictError(msg string, err ...error) error {
	e := &Error{Kind: KindConflict, Msg: msg}
	if len(err) > 0 {
		e.Err = err[0]
	}
	return e
}

func NewTransientError(err error) error {
	return &Error{Kind: KindTransient, Msg: ErrTransient.Msg, Err: err}
}

// KindOf classifies any error. Validator errors count as validation errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var fldErrs validator.ValidationErrors
	if errors.As(err, &fldErrs) {
		return KindValidation
	}
	return KindUnknown
}

// UserMessage returns a message fit for display.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "Please correct the highlighted fields."
	case KindUnauthenticated:
		return "Please sign in again."
	case KindAccessDenied:
		return "You do not have access to this organization."
	case KindNotFound:
		return "This item no longer exists."
	case KindConflict:
		var cerr *Error
		if errors.As(err, &cerr) && cerr.Msg != "" && cerr.Msg != ErrConflict.Msg {
			return cerr.Msg
		}
		return "This change conflicts with existing records."
	case KindTransient:
		return "Something went wrong. Please try again."
	default:
		return "Something went wrong."
	}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
