package mediaproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "ua-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.ServeContent(w, r, "audio.m4a", time.Unix(0, 0), strings.NewReader(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMediaProxyServeRange(t *testing.T) {
	srv := upstream(t, "0123456789")

	var relayed atomic.Int64
	p := NewMediaProxy(WithByteCounter(func(n int64) { relayed.Add(n) }))

	req := httptest.NewRequest(http.MethodGet, "/api/media/stream/abc", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	err := p.Serve(rec, req, "abc", func(context.Context) (Locator, error) {
		return Locator{URL: srv.URL + "/audio", Headers: map[string]string{"User-Agent": "ua-1"}}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, int64(4), relayed.Load())
}

func TestMediaProxyCachesLocator(t *testing.T) {
	srv := upstream(t, "audio")
	p := NewMediaProxy(WithCache(NewLocatorCache(time.Minute, 4)))

	var resolves int
	resolve := func(context.Context) (Locator, error) {
		resolves++
		return Locator{URL: srv.URL, Headers: map[string]string{"User-Agent": "ua-1"}}, nil
	}

	for range 3 {
		rec := httptest.NewRecorder()
		require.NoError(t, p.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), "abc", resolve))
		assert.Equal(t, "audio", rec.Body.String())
	}
	assert.Equal(t, 1, resolves)
}

func TestMediaProxyRefreshesRejectedLocator(t *testing.T) {
	srv := upstream(t, "audio")
	cache := NewLocatorCache(time.Minute, 4)
	cache.Set("abc", Locator{URL: srv.URL, Headers: map[string]string{"User-Agent": "expired"}})
	p := NewMediaProxy(WithCache(cache))

	var resolves int
	rec := httptest.NewRecorder()
	err := p.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), "abc", func(context.Context) (Locator, error) {
		resolves++
		return Locator{URL: srv.URL, Headers: map[string]string{"User-Agent": "ua-1"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resolves)
	assert.Equal(t, "audio", rec.Body.String())

	loc, ok := cache.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "ua-1", loc.Headers["User-Agent"])
}

func TestMediaProxyErrors(t *testing.T) {
	srv := upstream(t, "audio")
	resolveErr := errors.New("resolution failed")

	tests := []struct {
		name    string
		resolve ResolveFunc
		want    error
	}{
		{
			name:    "resolver failure",
			resolve: func(context.Context) (Locator, error) { return Locator{}, resolveErr },
			want:    resolveErr,
		},
		{
			name:    "non http locator",
			resolve: func(context.Context) (Locator, error) { return Locator{URL: "file:///etc/passwd"}, nil },
			want:    ErrInvalidURL,
		},
		{
			name:    "upstream forbidden",
			resolve: func(context.Context) (Locator, error) { return Locator{URL: srv.URL}, nil },
			want:    ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMediaProxy(WithCache(NewLocatorCache(time.Minute, 4)))
			rec := httptest.NewRecorder()
			err := p.Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), "abc", tt.resolve)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, p.cache.Len())
		})
	}
}

func TestLocatorCache(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewLocatorCache(time.Minute, 2)
	c.now = func() time.Time { return now }

	c.Set("a", Locator{URL: "https://a"})
	now = now.Add(time.Second)
	c.Set("b", Locator{URL: "https://b"})
	now = now.Add(time.Second)
	c.Set("c", Locator{URL: "https://c"})

	_, ok := c.Get("a")
	assert.False(t, ok, "entry closest to expiry is evicted first")
	assert.Equal(t, 2, c.Len())

	now = now.Add(time.Minute)
	_, ok = c.Get("b")
	assert.False(t, ok, "expired")

	disabled := NewLocatorCache(0, 10)
	disabled.Set("a", Locator{URL: "https://a"})
	_, ok = disabled.Get("a")
	assert.False(t, ok)
}
