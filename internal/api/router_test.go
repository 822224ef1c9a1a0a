package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/rpc"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
)

type stubMedia struct{}

func (stubMedia) ExtractAudio(context.Context, string, map[string]string) (*models.ResolvedAudio, error) {
	return &models.ResolvedAudio{URL: "https://cdn.example/a"}, nil
}

func (stubMedia) ExtractAudioURL(context.Context, string, map[string]string) (string, error) {
	return "https://cdn.example/a", nil
}

func (stubMedia) Search(_ context.Context, query string, _ int) ([]models.Track, error) {
	return []models.Track{{ID: "yt:abc", Name: query}}, nil
}

func (stubMedia) Related(context.Context, string, int) ([]models.Track, error) {
	return nil, nil
}

func (stubMedia) SaavnSearch(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func newTestRouter(t *testing.T, opts RouterOptions) *Router {
	t.Helper()
	logger := utils.NewNopLogger()
	opts.Media = stubMedia{}
	opts.Health = system.NewHealthService(logger, system.HealthServiceConfig{Version: "test"})
	return NewRouter(opts, logger)
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestRouterRoutes(t *testing.T) {
	metrics := system.NewMetricsService(utils.NewNopLogger())
	methods := rpc.NewMethods(stubMedia{}, nil, rpc.Defaults{SearchTake: 30, RelatedTake: 10})
	rpcServer := rpc.NewServer(methods, rpc.Options{}, metrics, utils.NewNopLogger())
	t.Cleanup(rpcServer.Close)

	router := newTestRouter(t, RouterOptions{RPC: rpcServer, Metrics: metrics})

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"ping", http.MethodGet, "/ping", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"search", http.MethodGet, "/api/media/search?q=song", "", http.StatusOK},
		{"extract", http.MethodPost, "/api/media/extract", `{"videoId":"abc"}`, http.StatusOK},
		{"saavn", http.MethodGet, "/api/saavn/search?query=x", "", http.StatusOK},
		{"rpc", http.MethodPost, "/rpc", `{"jsonrpc":"2.0","method":"media.search","params":{"query":"x"},"id":1}`, http.StatusOK},
		{"stream unmounted", http.MethodGet, "/api/media/stream/abc", "", http.StatusNotFound},
		{"downloads unmounted", http.MethodGet, "/api/downloads", "", http.StatusNotFound},
		{"websocket unmounted", http.MethodGet, "/rpc/ws", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, serve(router, tt.method, tt.target, tt.body).Code)
		})
	}

	rec := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hongeet_http_requests_total`)
	assert.Contains(t, rec.Body.String(), `/api/media/search`)
}

func TestRouterRateLimit(t *testing.T) {
	router := newTestRouter(t, RouterOptions{Limiter: utils.NewRateLimiter(time.Minute, 2)})

	for range 2 {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/media/search?q=x", "").Code)
	}

	rec := serve(router, http.MethodGet, "/api/media/search?q=x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// health and ping are never limited
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ping", "").Code)
}
