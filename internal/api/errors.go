// Package api provides error handling utilities for the REST API.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// APIError represents a structured API error.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common API error codes.
const (
	ErrCodeInvalidJSON   = "INVALID_JSON"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

var (
	ErrInvalidJSON = &APIError{
		HTTPStatus: http.StatusBadRequest,
		Code:       ErrCodeInvalidJSON,
		Message:    "Invalid JSON body",
	}
	ErrTimeout = &APIError{
		HTTPStatus: http.StatusGatewayTimeout,
		Code:       ErrCodeTimeout,
		Message:    "Request timed out",
	}
	ErrInternalError = &APIError{
		HTTPStatus: http.StatusInternalServerError,
		Code:       ErrCodeInternalError,
		Message:    "An unexpected error occurred",
	}
)

func NewValidationError(message string) *APIError {
	return &APIError{
		HTTPStatus: http.StatusBadRequest,
		Code:       ErrCodeValidation,
		Message:    message,
	}
}

func NewNotFoundError(message string) *APIError {
	return &APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Message:    message,
	}
}

// MapDomainError maps domain errors to API errors. Unknown errors become
// INTERNAL_ERROR.
func MapDomainError(err error) *APIError {
	if err == nil {
		return nil
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewValidationError(ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return ErrInternalError
	}
}

// WriteAPIError writes an API error response.
func (h *Handler) WriteAPIError(w http.ResponseWriter, err *APIError) {
	h.writeJSON(w, err.HTTPStatus, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    err.Code,
			Message: err.Message,
		},
	})
}

// HandleError maps err and writes the response. Unexpected errors are
// logged with the operation name. Returns false if err was nil.
func (h *Handler) HandleError(w http.ResponseWriter, err error, operation string) bool {
	if err == nil {
		return false
	}

	apiErr := MapDomainError(err)
	if apiErr.Code == ErrCodeInternalError || apiErr.Code == ErrCodeTimeout {
		h.logger.Error().Err(err).Str("operation", operation).Msg("request failed")
	}
	h.WriteAPIError(w, apiErr)
	return true
}
