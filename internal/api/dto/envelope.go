package dto

import (
	"net/http"

	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// Envelope is the uniform body of every response.
type Envelope struct {
	Code    int                    `json:"code"`
	Data    any                    `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
	Debug   string                 `json:"debug,omitempty"`
}

// OK wraps a successful payload.
func OK(data any) Envelope {
	return Envelope{Code: http.StatusOK, Data: data}
}

// Message wraps a successful response that only carries a message.
func Message(msg string) Envelope {
	return Envelope{Code: http.StatusOK, Message: msg}
}
