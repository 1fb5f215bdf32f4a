package headercodec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedField is returned when a header value does not match its grammar.
	ErrMalformedField = errors.New("headercodec: malformed field")

	// ErrMissingField is returned when a mandatory field is absent.
	ErrMissingField = errors.New("headercodec: missing field")
)

// FieldError reports which field failed and why. It unwraps to
// ErrMalformedField or ErrMissingField.
type FieldError struct {
	Field string
	Value string
	Err   error
	cause error
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Err, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *FieldError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

func malformed(field, value string, cause error) error {
	return &FieldError{Field: field, Value: value, Err: ErrMalformedField, cause: cause}
}

func missing(field string) error {
	return &FieldError{Field: field, Err: ErrMissingField}
}
