// Package server provides the HTTP API for transcript runs, storage browsing,
// API key management and scheduled jobs.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/transcript-archiver/internal/scheduler"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidCredentials indicates the admin password did not match.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid password"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		verr   *ErrValidation
		fields validator.ValidationErrors
		creds  *ErrInvalidCredentials
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &fields):
		return http.StatusBadRequest
	case errors.As(err, &creds):
		return http.StatusUnauthorized
	case errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict
	}

	switch types.KindOf(err) {
	case types.KindNotFound, types.KindChannelNotFound:
		return http.StatusNotFound
	case types.KindConfiguration:
		return http.StatusBadRequest
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindUpstreamAPI:
		return http.StatusBadGateway
	case types.KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// extractValidationErrors turns validator errors into an ErrValidation for the first failing field.
func extractValidationErrors(err error) *ErrValidation {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		return &ErrValidation{Field: fe.Field(), Message: fe.Tag()}
	}
	return &ErrValidation{Message: "invalid request"}
}
