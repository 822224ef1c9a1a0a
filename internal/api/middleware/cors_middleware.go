// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"hongeet.dev/backend/internal/utils"
)

// CORSConfig contains configuration for CORS middleware.
type CORSConfig struct {
	// AllowedOrigins holds exact origins, "*" for any, or a prefix ending in "*"
	// such as "http://localhost:*".
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// ExposedHeaders lets browser players read range and rate limit headers.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig returns a CORS configuration for the given origins; an
// empty list allows any origin.
func DefaultCORSConfig(origins []string) CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "Range"},
		ExposedHeaders: []string{
			"Content-Length", "Content-Range", "Accept-Ranges",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		MaxAge: 86400,
	}
}

// CORSMiddleware answers preflights and tags responses for browser callers.
// The dispatch surface carries no cookies, so credentials are never allowed.
type CORSMiddleware struct {
	config  CORSConfig
	methods string
	headers string
	exposed string
	logger  *utils.Logger
}

// NewCORSMiddleware creates a new CORS middleware.
func NewCORSMiddleware(config CORSConfig, logger *utils.Logger) *CORSMiddleware {
	return &CORSMiddleware{
		config:  config,
		methods: strings.Join(config.AllowedMethods, ", "),
		headers: strings.Join(config.AllowedHeaders, ", "),
		exposed: strings.Join(config.ExposedHeaders, ", "),
		logger:  logger.Named("cors_middleware"),
	}
}

// CORS is a middleware that handles CORS.
func (m *CORSMiddleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")

		if allowed := m.allowOrigin(origin); allowed != "" {
			h.Set("Access-Control-Allow-Origin", allowed)
		} else if origin != "" {
			m.logger.Debug("Origin not allowed", "origin", origin, "path", r.URL.Path)
		}
		if m.exposed != "" {
			h.Set("Access-Control-Expose-Headers", m.exposed)
		}

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if m.methods != "" {
			h.Set("Access-Control-Allow-Methods", m.methods)
		}
		if m.headers != "" {
			h.Set("Access-Control-Allow-Headers", m.headers)
		}
		if m.config.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (m *CORSMiddleware) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range m.config.AllowedOrigins {
		switch {
		case allowed == "*":
			return "*"
		case allowed == origin:
			return origin
		case strings.HasSuffix(allowed, "*") && strings.HasPrefix(origin, strings.TrimSuffix(allowed, "*")):
			return origin
		}
	}
	return ""
}
