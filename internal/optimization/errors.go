package optimization

import (
	"errors"
	"fmt"
)

// ErrorKind classifies optimization errors. Validation errors mean the
// request was malformed; computation errors mean a domain model was handed
// inputs it could not evaluate. An infeasible request is not an error at all:
// it is returned as a structured Result.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindComputation ErrorKind = "computation"
)

// Error is an optimization error carrying its kind and the operation and
// component it came from.
type Error struct {
	Kind      ErrorKind
	Message   string
	Op        string
	Component string
	Err       error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	switch {
	case e.Component != "" && e.Op != "":
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	case e.Component != "":
		prefix = e.Component
	case e.Op != "":
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewValidationError reports a malformed or out-of-domain request field.
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewComputationError reports an objective or constraint model failure.
func NewComputationError(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindComputation,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapComputation wraps an internal model error with computation context.
// If err is nil, WrapComputation returns nil.
func WrapComputation(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    KindComputation,
		Message: message,
		Err:     err,
	}
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}

// IsComputation reports whether err is (or wraps) a computation error.
func IsComputation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindComputation
}
