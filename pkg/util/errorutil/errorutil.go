package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to clients.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeWrongTokenPurpose = "WRONG_TOKEN_PURPOSE"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

// FieldError describes a single invalid or conflicting input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Fields     []FieldError
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, fields []FieldError) error {
	return &DomainError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Fields:     fields,
	}
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewWrongTokenPurpose reports a verified token that was issued for another purpose.
func NewWrongTokenPurpose(message string) error {
	return NewDomainError(CodeWrongTokenPurpose, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewConflict reports a uniqueness violation on field.
func NewConflict(field, message string) error {
	de := NewDomainError(CodeConflict, message, http.StatusConflict, nil)
	if field != "" {
		de.Fields = []FieldError{{Field: field, Message: message}}
	}
	return de
}

func NewRateLimitExceeded(message string) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeInternal,
			Message:    "request timed out",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
