// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/remiblancher/qcrl/internal/api/dto"
	"github.com/remiblancher/qcrl/pkg/crl"
)

// Error codes for API responses.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeNotFound             = "NOT_FOUND"
	CodeMalformedCRL         = "MALFORMED_CRL"
	CodeIncompleteCRL        = "INCOMPLETE_CRL"
	CodeUnsupportedAlgorithm = "UNSUPPORTED_ALGORITHM"
	CodeInvalidKey           = "INVALID_KEY"
	CodeCanceled             = "REQUEST_CANCELED"
	CodeInternal             = "INTERNAL_ERROR"
)

var (
	// ErrInvalidRequest marks errors caused by the request content.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound marks lookups of unknown resources.
	ErrNotFound = errors.New("not found")
)

// InvalidRequest marks err as a client error.
func InvalidRequest(err error) error {
	return errors.Mark(err, ErrInvalidRequest)
}

// NotFound returns an error for an unknown resource.
func NotFound(resource, id string) error {
	return errors.Mark(errors.Newf("%s %s not found", resource, id), ErrNotFound)
}

// MapError maps an error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, &dto.APIError{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, &dto.APIError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, &dto.APIError{Code: CodeCanceled, Message: err.Error()}
	}

	kind := crl.KindOf(err)
	if kind == crl.KindUnknown && errors.Is(err, crl.ErrInvalidKey) {
		kind = crl.KindInvalidKey
	}
	details := map[string]string{"kind": kind.String()}
	var crlErr *crl.Error
	if errors.As(err, &crlErr) && crlErr.Op != "" {
		details["operation"] = crlErr.Op
	}
	switch kind {
	case crl.KindMalformedInput:
		return http.StatusBadRequest, &dto.APIError{Code: CodeMalformedCRL, Message: err.Error(), Details: details}
	case crl.KindIncompleteStructure:
		return http.StatusUnprocessableEntity, &dto.APIError{Code: CodeIncompleteCRL, Message: err.Error(), Details: details}
	case crl.KindUnsupportedAlgorithm:
		return http.StatusNotImplemented, &dto.APIError{Code: CodeUnsupportedAlgorithm, Message: err.Error(), Details: details}
	case crl.KindInvalidKey:
		return http.StatusUnprocessableEntity, &dto.APIError{Code: CodeInvalidKey, Message: err.Error(), Details: details}
	}

	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}
