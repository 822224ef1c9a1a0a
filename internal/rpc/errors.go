package rpc

import (
	"errors"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/pkg/jsonrpc"
)

// ErrorData is attached to every operation error.
type ErrorData struct {
	Code    string         `json:"code"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// operationError ties a domain error to the dispatch operation that produced it.
type operationError struct {
	op  models.Operation
	err error
}

func (e *operationError) Error() string { return e.err.Error() }
func (e *operationError) Unwrap() error { return e.err }

func failed(op models.Operation, err error) error {
	if err == nil {
		return nil
	}
	return &operationError{op: op, err: err}
}

// ToError converts a handler error into a JSON-RPC error object carrying the
// dispatch code and kind. Protocol errors pass through unchanged.
func ToError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	code := models.CodeInternal
	var opErr *operationError
	if errors.As(err, &opErr) {
		code = opErr.op.Code(opErr.err)
		err = opErr.err
	} else if errors.Is(err, models.ErrInvalidInput) {
		code = models.CodeInvalidRequest
	}

	data := ErrorData{Code: code, Kind: models.KindOf(err)}
	var domainErr *models.DomainError
	if errors.As(err, &domainErr) && len(domainErr.Details) > 0 {
		data.Details = domainErr.Details
	}

	return jsonrpc.NewError(rpcCode(err), err.Error(), data)
}

func rpcCode(err error) int {
	switch {
	case errors.Is(err, models.ErrMissingRequiredField),
		errors.Is(err, models.ErrInvalidInput):
		return jsonrpc.ErrInvalidParams
	case errors.Is(err, models.ErrTooManyRequests):
		return ErrCodeRateLimited
	case errors.Is(err, models.ErrServiceUnavailable),
		errors.Is(err, models.ErrFeatureDisabled):
		return ErrCodeUnavailable
	case errors.Is(err, models.ErrInternalServer):
		return jsonrpc.ErrInternalError
	default:
		return ErrCodeOperationFailed
	}
}
