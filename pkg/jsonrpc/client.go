package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sync/atomic"
)

// Client errors
var (
	// ErrClientClosed is returned when the client is closed.
	ErrClientClosed = errors.New("client closed")

	// ErrTimeout is returned when a request times out.
	ErrTimeout = errors.New("request timeout")

	// ErrCanceled is returned when a request is canceled.
	ErrCanceled = errors.New("request canceled")
)

// Client is a JSON-RPC 2.0 client over HTTP POST.
type Client struct {
	endpoint   string
	httpClient *http.Client
	headers    map[string]string
	nextID     atomic.Int64
	closed     atomic.Bool
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used to send requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		maps.Copy(c.headers, headers)
	}
}

// NewClient creates a new JSON-RPC 2.0 client.
func NewClient(endpoint string, options ...ClientOption) *Client {
	client := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// BatchCall is one call of a batch. Result, when non-nil, receives the decoded result.
type BatchCall struct {
	Method string
	Params any
	Result any
}

// BatchResponse is the outcome of one BatchCall.
type BatchResponse struct {
	Result any
	Error  *Error
}

// Call calls a remote method and decodes its result into result.
// A server-side failure is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	req, err := NewRequest(method, params, c.nextID.Add(1))
	if err != nil {
		return err
	}

	data, err := c.post(ctx, req)
	if err != nil {
		return err
	}

	res, err := ParseResponse(data)
	if err != nil {
		return err
	}
	if res.Error != nil {
		return res.Error
	}
	if result != nil {
		return res.UnmarshalResult(result)
	}
	return nil
}

// Notify sends a notification; the server sends nothing back.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	req, err := NewNotification(method, params)
	if err != nil {
		return err
	}

	_, err = c.post(ctx, req)
	return err
}

// BatchCall sends all calls in one request. Responses are matched to calls by id.
func (c *Client) BatchCall(ctx context.Context, calls []BatchCall) ([]BatchResponse, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	batch := make([]*Request, len(calls))
	index := make(map[string]int, len(calls))
	for i, call := range calls {
		id := c.nextID.Add(1)
		req, err := NewRequest(call.Method, call.Params, id)
		if err != nil {
			return nil, err
		}
		batch[i] = req
		index[idKey(id)] = i
	}

	data, err := c.post(ctx, batch)
	if err != nil {
		return nil, err
	}

	var responses []*Response
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	results := make([]BatchResponse, len(calls))
	for _, res := range responses {
		i, ok := index[idKey(res.ID)]
		if !ok {
			continue
		}
		if res.Error != nil {
			results[i] = BatchResponse{Error: res.Error}
			continue
		}
		result := calls[i].Result
		if result != nil {
			if err := res.UnmarshalResult(result); err != nil {
				results[i] = BatchResponse{Error: &Error{
					Code:    ErrInternalError,
					Message: fmt.Sprintf("Failed to unmarshal result: %v", err),
				}}
				continue
			}
		}
		results[i] = BatchResponse{Result: result}
	}

	return results, nil
}

// Close marks the client closed; later calls fail with ErrClientClosed.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	reqData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqData))
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if errors.Is(err, context.Canceled) {
			return nil, ErrCanceled
		}
		return nil, err
	}
	defer httpRes.Body.Close()

	resData, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, err
	}

	switch httpRes.StatusCode {
	case http.StatusOK:
		return resData, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("HTTP error: %d %s", httpRes.StatusCode, http.StatusText(httpRes.StatusCode))
	}
}

// idKey normalises ids so that an int64 sent matches the float64 decoded back.
func idKey(id any) string {
	switch v := id.(type) {
	case float64:
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprint(v)
	}
}
