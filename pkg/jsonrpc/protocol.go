// Package jsonrpc provides JSON-RPC 2.0 functionality.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reserved JSON-RPC 2.0 error codes. Application codes live in -32000..-32099.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
	ErrServerError    = -32000
)

// Protocol errors
var (
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrInvalidVersion  = errors.New("invalid JSON-RPC version")
	ErrMissingMethod   = errors.New("missing method")
	ErrInvalidResponse = errors.New("invalid response")
)

// Request is a JSON-RPC 2.0 request. A request without an ID is a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      any             `json:"id"`
}

// Error is a JSON-RPC 2.0 error object. Data carries the stable operation
// code and error kind for application errors.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// NewError creates an error object; data is marshaled when non-nil.
func NewError(code int, message string, data any) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

// AsError converts any error into an error object. Protocol errors map to their
// reserved codes, anything else becomes an internal error.
func AsError(err error) *Error {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, ErrInvalidJSON):
		return &Error{Code: ErrParseError, Message: err.Error()}
	case errors.Is(err, ErrInvalidVersion), errors.Is(err, ErrMissingMethod):
		return &Error{Code: ErrInvalidRequest, Message: err.Error()}
	default:
		return &Error{Code: ErrInternalError, Message: err.Error()}
	}
}

// NewRequest creates a new JSON-RPC 2.0 request.
func NewRequest(method string, params any, id any) (*Request, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      id,
	}, nil
}

// NewNotification creates a new JSON-RPC 2.0 notification (a request without an ID).
func NewNotification(method string, params any) (*Request, error) {
	return NewRequest(method, params, nil)
}

// NewResponse creates a new JSON-RPC 2.0 response. A nil result is sent as null.
func NewResponse(id any, result any) (*Response, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	return &Response{
		JSONRPC: "2.0",
		Result:  resultJSON,
		ID:      id,
	}, nil
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   err,
		ID:      id,
	}
}

// ParseRequest parses a JSON-RPC 2.0 request from a JSON string.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if req.JSONRPC != "2.0" {
		return nil, ErrInvalidVersion
	}

	if req.Method == "" {
		return nil, ErrMissingMethod
	}

	return &req, nil
}

// ParseResponse parses a JSON-RPC 2.0 response from a JSON string.
func ParseResponse(data []byte) (*Response, error) {
	var res Response
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if res.JSONRPC != "2.0" {
		return nil, ErrInvalidVersion
	}

	if res.Error != nil && res.Result != nil {
		return nil, ErrInvalidResponse
	}

	return &res, nil
}

// IsNotification returns true if the request is a notification (no ID).
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// UnmarshalResult unmarshals the response result into the provided value.
func (r *Response) UnmarshalResult(v any) error {
	if r.Result == nil {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}
