// Package mediaproxy relays upstream media bytes to HTTP clients.
package mediaproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// Proxy errors
var (
	// ErrInvalidURL is returned when the locator is not an http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrFetchFailed is returned when fetching content from upstream fails.
	ErrFetchFailed = errors.New("failed to fetch content")

	// ErrNotFound is returned when upstream reports the content missing.
	ErrNotFound = errors.New("content not found")

	// ErrForbidden is returned when upstream refuses access, typically an expired locator.
	ErrForbidden = errors.New("access forbidden")
)

// relayedHeaders are copied from the upstream response to the client.
var relayedHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// forwardedHeaders are copied from the client request to upstream.
var forwardedHeaders = []string{"Range", "If-Range"}

// ResolveFunc produces a fresh locator for a key.
type ResolveFunc func(ctx context.Context) (Locator, error)

// MediaProxy streams upstream media, forwarding range requests.
type MediaProxy struct {
	httpClient *http.Client
	cache      *LocatorCache
	bufferSize int
	onBytes    func(n int64)
}

// MediaProxyOption is a function that configures a MediaProxy.
type MediaProxyOption func(*MediaProxy)

// WithHTTPClient sets the HTTP client used to fetch content.
func WithHTTPClient(httpClient *http.Client) MediaProxyOption {
	return func(p *MediaProxy) {
		p.httpClient = httpClient
	}
}

// WithCache sets the locator cache.
func WithCache(cache *LocatorCache) MediaProxyOption {
	return func(p *MediaProxy) {
		p.cache = cache
	}
}

// WithByteCounter registers a callback invoked with every chunk relayed to a client.
func WithByteCounter(fn func(n int64)) MediaProxyOption {
	return func(p *MediaProxy) {
		p.onBytes = fn
	}
}

// NewMediaProxy creates a new media proxy.
func NewMediaProxy(options ...MediaProxyOption) *MediaProxy {
	proxy := &MediaProxy{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
				MaxIdleConnsPerHost:   8,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		bufferSize: 64 << 10,
	}

	for _, option := range options {
		option(proxy)
	}

	return proxy
}

// Serve relays the media identified by key to w. A cached locator is tried
// first; when upstream rejects it the locator is dropped and resolved again once.
// Errors returned after the upstream response was accepted mean the body was cut
// short; the status line has already been written.
func (p *MediaProxy) Serve(w http.ResponseWriter, r *http.Request, key string, resolve ResolveFunc) error {
	if loc, ok := p.cache.Get(key); ok {
		res, err := p.fetch(r, loc)
		if err == nil {
			return p.relay(w, res)
		}
		p.cache.Delete(key)
		if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	loc, err := resolve(r.Context())
	if err != nil {
		return err
	}

	res, err := p.fetch(r, loc)
	if err != nil {
		return err
	}
	p.cache.Set(key, loc)
	return p.relay(w, res)
}

func (p *MediaProxy) fetch(r *http.Request, loc Locator) (*http.Response, error) {
	u, err := url.Parse(loc.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	keys := make([]string, 0, len(loc.Headers))
	for k := range loc.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		req.Header.Set(k, loc.Headers[k])
	}
	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	switch res.StatusCode {
	case http.StatusOK, http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		return res, nil
	case http.StatusNotFound, http.StatusGone:
		res.Body.Close()
		return nil, ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		res.Body.Close()
		return nil, ErrForbidden
	default:
		res.Body.Close()
		return nil, fmt.Errorf("%w: status code %d", ErrFetchFailed, res.StatusCode)
	}
}

func (p *MediaProxy) relay(w http.ResponseWriter, res *http.Response) error {
	defer res.Body.Close()

	for _, h := range relayedHeaders {
		if v := res.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if w.Header().Get("Accept-Ranges") == "" {
		w.Header().Set("Accept-Ranges", "bytes")
	}
	w.WriteHeader(res.StatusCode)

	buf := make([]byte, p.bufferSize)
	flusher, _ := w.(http.Flusher)
	for {
		n, readErr := res.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				// client went away
				return nil
			}
			if p.onBytes != nil {
				p.onBytes(int64(n))
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if errors.Is(readErr, context.Canceled) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrFetchFailed, readErr)
		}
	}
}
