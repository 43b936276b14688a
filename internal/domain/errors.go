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

// Is reports whether target is a DomainError with the same code and message,
// so wrapped copies of a sentinel still match it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
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

// Wrap attaches a cause to a copy of the sentinel.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, cause)
}

// AsDomainError extracts the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidOperation   = "INVALID_OPERATION"
	ErrCodeInvalidFileType    = "INVALID_FILE_TYPE"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeDimensionMismatch  = "DIMENSION_MISMATCH"
	ErrCodeSchemaMismatch     = "SCHEMA_MISMATCH"
	ErrCodeProcessingFailed   = "PROCESSING_FAILED"
	ErrCodeSynthesisFailed    = "SYNTHESIS_FAILED"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChunkConfig   = NewDomainError(ErrCodeValidation, "chunk size and overlap must be positive and overlap smaller than size")
	ErrLengthMismatch       = NewDomainError(ErrCodeValidation, "ids, vectors and payloads must have equal length")
	ErrInvalidEmail         = NewDomainError(ErrCodeValidation, "invalid email address")
	ErrEmptyMessage         = NewDomainError(ErrCodeValidation, "message is required")
)

// Input errors raised before ingestion
var (
	ErrInvalidFileType   = NewDomainError(ErrCodeInvalidFileType, "invalid file type")
	ErrFileTooLarge      = NewDomainError(ErrCodeFileTooLarge, "file size exceeds maximum limit")
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedFormat, "unsupported document format")
)

// Not found errors
var (
	ErrDocumentNotFound   = NewDomainError(ErrCodeNotFound, "Document not found or doesn't belong to you")
	ErrUserNotFound       = NewDomainError(ErrCodeNotFound, "User not found")
	ErrAPITokenNotFound   = NewDomainError(ErrCodeNotFound, "api token not found")
	ErrCleanupJobNotFound = NewDomainError(ErrCodeNotFound, "vector cleanup job not found")
)

// Already exists errors
var (
	ErrUserAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "User with this email already exists")
)

// Authorization errors
var (
	ErrAPITokenRevoked = NewDomainError(ErrCodeUnauthorized, "api token has been revoked")
	ErrInvalidAPIToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
	ErrUserInactive    = NewDomainError(ErrCodeUnauthorized, "user is inactive")
)

// Backend errors
var (
	ErrBackendUnavailable   = NewDomainError(ErrCodeBackendUnavailable, "backend unavailable")
	ErrDimensionMismatch    = NewDomainError(ErrCodeDimensionMismatch, "vector dimension does not match collection")
	ErrSchemaMismatch       = NewDomainError(ErrCodeSchemaMismatch, "collection exists with a different dimension")
	ErrProcessingFailed     = NewDomainError(ErrCodeProcessingFailed, "Failed to process document")
	ErrSynthesisFailed      = NewDomainError(ErrCodeSynthesisFailed, "Failed to generate an answer")
	ErrStorageNotConfigured = NewDomainError(ErrCodeBackendUnavailable, "blob storage not configured")
)
