package core

import "github.com/pkg/errors"

// FieldError describes a problem with one input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for input rejected before it reaches storage or the provider.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// NewFieldError builds a ValidationError about a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{
		Err:    errors.Errorf("%s: %s", field, msg),
		Fields: []FieldError{{Field: field, Error: msg}},
	}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

// IsValidation reports whether err, or its cause, is a *ValidationError.
func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// shutdown asks the API server to stop gracefully when it reaches the error handler.
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
