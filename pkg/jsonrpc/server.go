// Package jsonrpc provides JSON-RPC 2.0 functionality.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
)

// defaultMaxBodyBytes caps HTTP request bodies.
const defaultMaxBodyBytes = 1 << 20

// Handler is a function that handles a JSON-RPC request.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// MiddlewareFunc is a function that wraps a Handler.
type MiddlewareFunc func(Handler) Handler

type methodKey struct{}

// MethodFromContext returns the method being dispatched, for use in middleware.
func MethodFromContext(ctx context.Context) string {
	method, _ := ctx.Value(methodKey{}).(string)
	return method
}

// Server is a transport independent JSON-RPC 2.0 dispatcher.
type Server struct {
	handlers     map[string]Handler
	middleware   []MiddlewareFunc
	errorMapper  func(error) *Error
	maxBodyBytes int64
	mutex        sync.RWMutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithErrorMapper sets how handler errors become error objects. The default is AsError.
func WithErrorMapper(fn func(error) *Error) ServerOption {
	return func(s *Server) {
		s.errorMapper = fn
	}
}

// WithMaxBodyBytes caps the size of HTTP request bodies.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// NewServer creates a new JSON-RPC 2.0 server.
func NewServer(options ...ServerOption) *Server {
	s := &Server{
		handlers:     make(map[string]Handler),
		errorMapper:  AsError,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// RegisterMethod registers a method handler.
func (s *Server) RegisterMethod(method string, handler Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handlers[method] = handler
}

// Register registers a typed handler. Params are decoded into P; absent params
// leave P at its zero value and undecodable params fail with ErrInvalidParams.
func Register[P, R any](s *Server, method string, fn func(ctx context.Context, params P) (R, error)) {
	s.RegisterMethod(method, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params P
		if len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, &Error{
					Code:    ErrInvalidParams,
					Message: fmt.Sprintf("Invalid params: %v", err),
				}
			}
		}
		return fn(ctx, params)
	})
}

// Methods returns the registered method names in sorted order.
func (s *Server) Methods() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Use adds middleware to the server.
func (s *Server) Use(middleware ...MiddlewareFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.middleware = append(s.middleware, middleware...)
}

// Handle processes one message, single or batch, and returns the encoded
// reply. It returns nil when nothing must be sent back (notifications only).
// Batch members are dispatched concurrently and answered in request order.
func (s *Server) Handle(ctx context.Context, data []byte) []byte {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return encode(NewErrorResponse(nil, &Error{Code: ErrParseError, Message: "Parse error"}))
	}

	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return encode(NewErrorResponse(nil, &Error{Code: ErrParseError, Message: "Parse error"}))
		}
		if len(items) == 0 {
			return encode(NewErrorResponse(nil, &Error{Code: ErrInvalidRequest, Message: "Invalid Request: empty batch"}))
		}

		responses := make([]*Response, len(items))
		var wg sync.WaitGroup
		for i, item := range items {
			wg.Add(1)
			go func(i int, item json.RawMessage) {
				defer wg.Done()
				responses[i] = s.handleMessage(ctx, item)
			}(i, item)
		}
		wg.Wait()

		out := make([]*Response, 0, len(responses))
		for _, res := range responses {
			if res != nil {
				out = append(out, res)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return encode(out)
	}

	res := s.handleMessage(ctx, data)
	if res == nil {
		return nil
	}
	return encode(res)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.maxBodyBytes {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	reply := s.Handle(r.Context(), body)
	if reply == nil {
		// No response for notifications
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply)
}

func (s *Server) handleMessage(ctx context.Context, data json.RawMessage) *Response {
	req, err := ParseRequest(data)
	if err != nil {
		rpcErr := AsError(err)
		// a well-formed batch member that is not a request object
		rpcErr.Code = ErrInvalidRequest
		return NewErrorResponse(nil, rpcErr)
	}

	s.mutex.RLock()
	handler, ok := s.handlers[req.Method]
	middleware := s.middleware
	s.mutex.RUnlock()

	if !ok {
		if req.IsNotification() {
			return nil
		}
		return NewErrorResponse(req.ID, &Error{
			Code:    ErrMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		})
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	result, err := handler(context.WithValue(ctx, methodKey{}, req.Method), req.Params)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return NewErrorResponse(req.ID, s.errorMapper(err))
	}

	res, err := NewResponse(req.ID, result)
	if err != nil {
		return NewErrorResponse(req.ID, &Error{
			Code:    ErrInternalError,
			Message: fmt.Sprintf("Error marshaling result: %v", err),
		})
	}
	return res
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(NewErrorResponse(nil, &Error{Code: ErrInternalError, Message: "Error encoding response"}))
	}
	return data
}
