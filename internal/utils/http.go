// Package utils provides utility functions used throughout the application.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"slices"
	"strings"

	"hongeet.dev/backend/internal/models"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// APIResponse represents a standard API response.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// ValidationErrorItem represents a single validation error.
type ValidationErrorItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RespondWithJSON sends a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			GetLogger().Error("Failed to encode JSON response", err)
		}
	}
}

// RespondWithData wraps data in a successful APIResponse.
func RespondWithData(w http.ResponseWriter, statusCode int, data any) {
	RespondWithJSON(w, statusCode, APIResponse{Success: true, Data: data})
}

// RespondWithError sends a (code, kind, message) error response for err.
// The status is derived from the error kind.
func RespondWithError(w http.ResponseWriter, code string, err error) {
	RespondWithJSON(w, models.MapErrorToHTTPStatus(err), models.NewErrorResponse(code, err))
}

// RespondWithValidationError sends a validation error response.
func RespondWithValidationError(w http.ResponseWriter, err error) {
	var items []ValidationErrorItem
	if fields := FormatValidationErrors(err); len(fields) > 0 {
		for _, field := range slices.Sorted(maps.Keys(fields)) {
			items = append(items, ValidationErrorItem{Field: field, Message: fields[field]})
		}
	} else {
		items = append(items, ValidationErrorItem{Field: "general", Message: err.Error()})
	}

	RespondWithJSON(w, http.StatusBadRequest, APIResponse{
		Success: false,
		Error: map[string]any{
			"code":    models.CodeInvalidRequest,
			"kind":    models.KindInvalidInput,
			"message": "Validation failed",
			"errors":  items,
		},
	})
}

// DecodeJSONBody decodes a size-limited JSON request body into dst.
func DecodeJSONBody(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewValidationError(err, "request body is empty")
		}
		return models.NewValidationError(err, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// GetRequestIP gets the client IP address from the request
func GetRequestIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
