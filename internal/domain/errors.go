package domain

import "fmt"

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

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidMessages   = NewDomainError(ErrCodeValidation, "invalid message list")
	ErrInvalidToolInput  = NewDomainError(ErrCodeValidation, "invalid tool arguments")
	ErrInvalidIngestLine = NewDomainError(ErrCodeValidation, "invalid corpus record")
)

// Not found errors
var (
	ErrToolNotFound = NewDomainError(ErrCodeNotFound, "tool not found")
)

// Upstream errors
var (
	ErrModerationUnavailable = NewDomainError(ErrCodeUpstream, "moderation classifier unavailable")
	ErrRetrievalFailed       = NewDomainError(ErrCodeUpstream, "vector index search failed")
	ErrModelStream           = NewDomainError(ErrCodeUpstream, "model stream failed")
	ErrWebSearchFailed       = NewDomainError(ErrCodeUpstream, "web search failed")
)

// Operation errors
var (
	ErrStreamingUnsupported = NewDomainError(ErrCodeInternalError, "response writer does not support streaming")
)
