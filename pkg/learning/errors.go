package learning

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when vector or label shapes do not match the model
	ErrMalformedInput = errors.New("malformed input")

	// ErrOutOfDomain is returned when a value or label is not part of an established domain
	ErrOutOfDomain = errors.New("value out of domain")

	// ErrEmptyModel is returned when classifying before any observation was learned
	ErrEmptyModel = errors.New("model has no observations")

	// ErrUnknownAttribute is returned by accessors given an attribute the model does not have
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// ClassAttribute is the attribute name reported by DomainError for an unknown label
const ClassAttribute = "class"

// DomainError describes a single out-of-domain value
type DomainError struct {
	Attribute string
	Value     any
	Row       int
}

func (e *DomainError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s value %v: %v", e.Attribute, e.Value, ErrOutOfDomain)
	}
	return fmt.Sprintf("row %d: %s value %v: %v", e.Row, e.Attribute, e.Value, ErrOutOfDomain)
}

// Unwrap lets errors.Is match ErrOutOfDomain
func (e *DomainError) Unwrap() error {
	return ErrOutOfDomain
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
