// Package errors provides the typed error taxonomy used across the rate engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeReferenceData indicates a malformed or missing reference dataset.
	// Fatal to engine construction.
	TypeReferenceData Type = "REFERENCE_DATA_ERROR"

	// TypeZoneLookup indicates an internal zone resolution inconsistency.
	// Never surfaced to callers of the resolver.
	TypeZoneLookup Type = "ZONE_LOOKUP_ERROR"

	// TypeRateCalculation indicates no valid base rate exists for a shipment
	TypeRateCalculation Type = "RATE_CALCULATION_ERROR"

	// TypeCalculation indicates a generic per-shipment failure
	TypeCalculation Type = "CALCULATION_ERROR"

	// TypeInput indicates an input validation error
	TypeInput Type = "INPUT_ERROR"

	// TypeParsing indicates a parsing error
	TypeParsing Type = "PARSING_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal is reported for errors that carry no type
	TypeInternal Type = "INTERNAL_ERROR"

	// TypeNotFound indicates a resource not found error
	TypeNotFound Type = "NOT_FOUND"
)

// Error is a typed error. Context carries lookup keys (sheet, zip, path)
// for logging; it is not part of Error().
type Error struct {
	Type    Type           `json:"type"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether e itself has type t. Use IsType for chains.
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext sets a context key and returns e
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...any) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether any error in err's chain is a *Error of type t.
func IsType(err error, t Type) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost *Error in err's chain, or
// TypeInternal when err carries no typed error.
func TypeOf(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// ReferenceData creates a reference data error
func ReferenceData(message string, cause error) *Error {
	return Wrap(TypeReferenceData, message, cause)
}

// ZoneLookup creates a zone lookup error
func ZoneLookup(message string) *Error {
	return New(TypeZoneLookup, message)
}

// RateCalculation creates a rate calculation error
func RateCalculation(message string) *Error {
	return New(TypeRateCalculation, message)
}

// Calculation creates a calculation error
func Calculation(message string, cause error) *Error {
	return Wrap(TypeCalculation, message, cause)
}

// Input creates an input error
func Input(message string) *Error {
	return New(TypeInput, message)
}

// Parsing creates a parsing error
func Parsing(message string, cause error) *Error {
	return Wrap(TypeParsing, message, cause)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// NotFound creates a not found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier)
}
