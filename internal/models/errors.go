// Package models contains the data structures used throughout the application.
package models

import (
	"errors"
	"maps"
	"net/http"
	"os"
)

// Error kinds surfaced by the resolution and search pipeline. A DomainError
// carrying one of these as its Kind satisfies errors.Is against it.
var (
	// ErrMissingRequiredField is raised before any backend call when an identifier or query is blank.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrResolutionFailed means every extraction attempt was exhausted.
	ErrResolutionFailed = errors.New("audio resolution failed")

	// ErrNoPlayableURL means the backend answered but produced no usable media locator.
	ErrNoPlayableURL = errors.New("no playable audio url extracted")

	// ErrBackend wraps a transport or process failure reported by the extraction backend.
	ErrBackend = errors.New("extraction backend error")
)

// Other domain errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrFeatureDisabled    = errors.New("feature is disabled")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrInternalServer     = errors.New("internal server error")
)

// Stable kind names reported to callers next to the error message.
const (
	KindMissingInput     = "missing_input"
	KindResolutionFailed = "resolution_failed"
	KindNoPlayableURL    = "no_playable_url"
	KindBackend          = "backend_error"
	KindInvalidInput     = "invalid_input"
	KindNotFound         = "not_found"
	KindRateLimited      = "rate_limited"
	KindFeatureDisabled  = "feature_disabled"
	KindUnavailable      = "unavailable"
	KindInternal         = "internal"
)

// Dispatch error codes. Each dispatch operation reports exactly one of these on failure.
const (
	CodeMissingVideoID = "missing_video_id"
	CodeMissingQuery   = "missing_query"
	CodeExtractFailed  = "extract_failed"
	CodeSearchFailed   = "search_failed"
	CodeRelatedFailed  = "related_failed"
	CodeDownloadFailed = "download_failed"
	CodeSaavnFailed    = "saavn_failed"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeInvalidRequest = "invalid_request"
	CodeDisabled       = "feature_disabled"
	CodeInternal       = "internal_error"
)

// DomainError represents an error that occurs in the application domain.
type DomainError struct {
	// Kind is one of the sentinel errors above
	Kind error

	// Original is the underlying error
	Original error

	// Message is a human-readable error message
	Message string

	// Code is the HTTP status code
	Code int

	// Domain is the area of the application where the error occurred
	Domain string

	// Details contains additional context for the error
	Details map[string]any
}

// Error returns the error message
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original != nil {
		return e.Original.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unknown error"
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Original
}

// Is reports whether target is the kind of this error.
func (e *DomainError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewDomainError creates a new DomainError
func NewDomainError(kind, err error, message string, code int, domain string) *DomainError {
	if message == "" && err != nil {
		message = err.Error()
	}

	return &DomainError{
		Kind:     kind,
		Original: err,
		Message:  message,
		Code:     code,
		Domain:   domain,
		Details:  make(map[string]any),
	}
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	maps.Copy(e.Details, details)
	return e
}

// AddDetail adds a single detail to the error
func (e *DomainError) AddDetail(key string, value any) *DomainError {
	e.Details[key] = value
	return e
}

// NewMissingInputError reports a blank required field.
func NewMissingInputError(field string) *DomainError {
	return NewDomainError(ErrMissingRequiredField, nil, "missing required field: "+field, http.StatusBadRequest, "media").
		AddDetail("field", field)
}

// NewResolutionFailedError carries the last attempt's cause, not a synthetic message.
func NewResolutionFailedError(last error) *DomainError {
	msg := ErrResolutionFailed.Error()
	if last != nil {
		msg = last.Error()
	}
	return NewDomainError(ErrResolutionFailed, last, msg, http.StatusBadGateway, "media")
}

// NewNoPlayableURLError reports a backend success without a media locator.
func NewNoPlayableURLError() *DomainError {
	return NewDomainError(ErrNoPlayableURL, nil, "No playable audio URL extracted", http.StatusBadGateway, "media")
}

// NewBackendError wraps a backend failure unmodified.
func NewBackendError(err error) *DomainError {
	return NewDomainError(ErrBackend, err, "", http.StatusBadGateway, "extractor")
}

// NewValidationError creates a validation-related domain error
func NewValidationError(err error, message string) *DomainError {
	return NewDomainError(ErrInvalidInput, err, message, http.StatusBadRequest, "validation")
}

// NewNotFoundError creates a not-found domain error
func NewNotFoundError(what string) *DomainError {
	return NewDomainError(ErrNotFound, nil, what+" not found", http.StatusNotFound, "system")
}

// NewInternalError creates an internal server error
func NewInternalError(err error, message string) *DomainError {
	if message == "" {
		message = "An internal server error occurred"
	}
	return NewDomainError(ErrInternalServer, err, message, http.StatusInternalServerError, "system")
}

// KindOf returns the stable kind name of err.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingRequiredField):
		return KindMissingInput
	case errors.Is(err, ErrResolutionFailed):
		return KindResolutionFailed
	case errors.Is(err, ErrNoPlayableURL):
		return KindNoPlayableURL
	case errors.Is(err, ErrBackend):
		return KindBackend
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTooManyRequests):
		return KindRateLimited
	case errors.Is(err, ErrFeatureDisabled):
		return KindFeatureDisabled
	case errors.Is(err, ErrServiceUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// ErrorResponse represents the standard error response format for APIs
type ErrorResponse struct {
	// Success is always false for error responses
	Success bool `json:"success"`

	// Error contains information about the error
	Error ErrorBody `json:"error"`
}

// ErrorBody is the (code, kind, message) triple reported for every failure.
type ErrorBody struct {
	Code    string         `json:"code"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Domain  string         `json:"domain,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorResponse creates a new ErrorResponse for err under the given dispatch code.
func NewErrorResponse(code string, err error) ErrorResponse {
	response := ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code: code,
			Kind: KindOf(err),
		},
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		response.Error.Message = domainErr.Error()
		response.Error.Domain = domainErr.Domain
		if len(domainErr.Details) > 0 {
			response.Error.Details = domainErr.Details
		}
		return response
	}

	response.Error.Message = "An unexpected error occurred"
	if os.Getenv("APP_ENV") != "production" {
		response.Error.Details = map[string]any{
			"originalError": err.Error(),
		}
	}

	return response
}

// MapErrorToHTTPStatus maps common errors to HTTP status codes
func MapErrorToHTTPStatus(err error) int {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Code != 0 {
		return domainErr.Code
	}

	switch {
	case errors.Is(err, ErrMissingRequiredField),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests

	case errors.Is(err, ErrResolutionFailed),
		errors.Is(err, ErrNoPlayableURL),
		errors.Is(err, ErrBackend):
		return http.StatusBadGateway

	case errors.Is(err, ErrFeatureDisabled),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
