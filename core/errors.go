package core

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrNotFound             = errors.New("not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")

	// storage errors
	ErrSlotNotFound   = errors.New("slot not found")
	ErrStorageCorrupt = errors.New("stored value is corrupt")
	ErrConflict       = errors.New("record was modified concurrently, reload and try again")
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

// MissingFields returns a ValidationError wrapping ErrMissingRequiredField for each given field.
func MissingFields(fields ...string) error {
	flds := make([]FieldError, 0, len(fields))
	for _, f := range fields {
		flds = append(flds, FieldError{Field: f, Error: requiredText})
	}
	return NewValidationError(ErrMissingRequiredField, flds...)
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) == 0 {
			return ""
		}
		msgs := make([]string, 0, len(err.Fields))
		for _, f := range err.Fields {
			msgs = append(msgs, f.Field+": "+f.Error)
		}
		return strings.Join(msgs, "; ")
	}
	if len(err.Fields) == 0 {
		return err.Err.Error()
	}
	names := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		names = append(names, f.Field)
	}
	return err.Err.Error() + ": " + strings.Join(names, ", ")
}

func (err ValidationError) Unwrap() error { return err.Err }

// IsValidation reports whether err (or its cause) is a *ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
