package models

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeExtraction  ErrorType = "extraction"
	ErrorTypePipeline    ErrorType = "pipeline"
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeScraping    ErrorType = "scraping"
	ErrorTypeExternal    ErrorType = "external"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeInternal    ErrorType = "internal"
)

// AppError is the error currency of the pipeline. Every failure that crosses
// a service boundary is an AppError carrying a stable code and optional
// metadata for diagnosis.
type AppError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Metadata map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Type, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(errType ErrorType, code, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message}
}

// NewExtractionError marks a malformed or schema-violating model response for
// the given pass. The raw response fragment should be attached as metadata so
// failures can be diagnosed from logs alone.
func NewExtractionError(pass int, message string) *AppError {
	return newError(ErrorTypeExtraction, fmt.Sprintf("PASS%d_EXTRACTION_FAILED", pass), message).
		WithMetadata("pass", pass)
}

func NewPipelineError(pass int, message string) *AppError {
	return newError(ErrorTypePipeline, "PIPELINE_FAILED", message).
		WithMetadata("failed_pass", pass)
}

func NewPersistenceError(code, message string) *AppError {
	return newError(ErrorTypePersistence, code, message)
}

func NewScrapingError(code, message string) *AppError {
	return newError(ErrorTypeScraping, code, message)
}

func NewExternalError(code, message string) *AppError {
	return newError(ErrorTypeExternal, code, message)
}

func NewTimeoutError(code, message string) *AppError {
	return newError(ErrorTypeTimeout, code, message)
}

func NewValidationError(code, message string) *AppError {
	return newError(ErrorTypeValidation, code, message)
}

func NewInternalError(code, message string) *AppError {
	return newError(ErrorTypeInternal, code, message)
}

// IsErrorType reports whether err (or anything it wraps) is an AppError of
// the given type.
func IsErrorType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// FailedPass extracts the failing pass number from a pipeline or extraction
// error chain. Returns 0 when the chain carries no pass information.
func FailedPass(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return 0
	}
	for _, key := range []string{"failed_pass", "pass"} {
		if v, ok := appErr.Metadata[key]; ok {
			if pass, ok := v.(int); ok {
				return pass
			}
		}
	}
	if appErr.Cause != nil {
		return FailedPass(appErr.Cause)
	}
	return 0
}
