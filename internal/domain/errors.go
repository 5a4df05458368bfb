package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so wrapped
// errors still match the sentinels below via errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Domain error codes
const (
	ErrCodeConfig               = "CONFIG_ERROR"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeRetrievalUnavailable = "RETRIEVAL_UNAVAILABLE"
	ErrCodeRetrievalTimeout     = "RETRIEVAL_TIMEOUT"
	ErrCodeGenerationTimeout    = "GENERATION_TIMEOUT"
	ErrCodeGenerationFailure    = "GENERATION_FAILURE"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Startup errors
var (
	ErrConfig           = NewDomainError(ErrCodeConfig, "invalid configuration")
	ErrEmptyTermSet     = NewDomainError(ErrCodeConfig, "domain has an empty term set")
	ErrInvalidBudget    = NewDomainError(ErrCodeConfig, "invalid retrieval budget bounds")
	ErrMissingIndex     = NewDomainError(ErrCodeConfig, "no index configured for domain")
	ErrUnknownIndexKind = NewDomainError(ErrCodeConfig, "unknown index backend")
)

// Request errors
var (
	ErrInvalidRequest = NewDomainError(ErrCodeValidation, "invalid request")
)

// Pipeline errors
var (
	ErrRetrievalUnavailable = NewDomainError(ErrCodeRetrievalUnavailable, "no domain index could be queried")
	ErrRetrievalTimeout     = NewDomainError(ErrCodeRetrievalTimeout, "retrieval timed out")
	ErrGenerationTimeout    = NewDomainError(ErrCodeGenerationTimeout, "generation timed out")
	ErrGenerationFailure    = NewDomainError(ErrCodeGenerationFailure, "generation failed")
)
