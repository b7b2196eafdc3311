// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode defines supported error codes used across stages
// Values are stable for log/exit-code compatibility; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeConfig is for invalid or missing configuration
	ErrorCodeConfig

	// ErrorCodeMissingInput is for absent input datasets on disk
	ErrorCodeMissingInput

	// ErrorCodeMalformedRow is for rows that fail parsing or validation
	ErrorCodeMalformedRow

	// ErrorCodeExternalService is for upstream API failures
	ErrorCodeExternalService

	// ErrorCodeInsufficientData is for statistics skipped on too-small samples
	ErrorCodeInsufficientData

	// ErrorCodeDecode is for identifier/timestamp decode failures
	ErrorCodeDecode

	// ErrorCodeIO is for general filesystem errors
	ErrorCodeIO
)

// ExitCode turns an ErrorCode into a process exit status for stage binaries
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case ErrorCodeMissingInput:
		return 66
	case ErrorCodeExternalService:
		return 69
	case ErrorCodeConfig:
		return 78
	default:
		return 1
	}
}

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (offending column or option); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Sugar

// Configf returns a configuration error
func Configf(format string, a ...any) error { return Newf(ErrorCodeConfig, format, a...) }

// MalformedRowf returns a malformed row error
func MalformedRowf(format string, a ...any) error { return Newf(ErrorCodeMalformedRow, format, a...) }

// ExternalServicef returns an upstream API error
func ExternalServicef(format string, a ...any) error {
	return Newf(ErrorCodeExternalService, format, a...)
}

// InsufficientDataf returns a too-small-sample error
func InsufficientDataf(format string, a ...any) error {
	return Newf(ErrorCodeInsufficientData, format, a...)
}

// Decodef returns an identifier decode error
func Decodef(format string, a ...any) error { return Newf(ErrorCodeDecode, format, a...) }

// IOf returns a general filesystem error
func IOf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// Internalf returns a generic internal error
func Internalf(format string, a ...any) error { return Newf(ErrorCodeUnknown, format, a...) }

// MissingDataset returns a MissingInput error naming the expected path and
// how to retrieve the dataset. The fetch hint is shown verbatim to operators
func MissingDataset(path, fetchHint string) error {
	if fetchHint == "" {
		return Newf(ErrorCodeMissingInput, "missing input dataset: %s", path)
	}
	return Newf(ErrorCodeMissingInput, "missing input dataset: %s (retrieve with: %s)", path, fetchHint)
}
