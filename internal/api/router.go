// Package api provides the HTTP API for the application.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hongeet.dev/backend/internal/api/handlers"
	appMiddleware "hongeet.dev/backend/internal/api/middleware"
	"hongeet.dev/backend/internal/rpc"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/mediaproxy"
)

// Router is the main HTTP router for the API.
type Router struct {
	*chi.Mux
	logger *utils.Logger
}

// RouterOptions wires the services behind the routes. Nil optional services
// leave their routes unmounted.
type RouterOptions struct {
	Media  handlers.MediaService
	Health *system.HealthService

	// Downloads mounts /api/downloads and the download.* RPC methods when set.
	Downloads handlers.DownloadService

	// Proxy mounts /api/media/stream/{videoId} when set.
	Proxy *mediaproxy.MediaProxy

	// RPC mounts POST /rpc when set; WebSocket additionally mounts /rpc/ws.
	RPC       *rpc.Server
	WebSocket bool

	// Metrics records HTTP metrics and mounts /metrics when set.
	Metrics *system.MetricsService

	// Limiter rate limits /api and /rpc per client IP when set.
	Limiter appMiddleware.Limiter

	SearchTake     int
	RelatedTake    int
	AllowedOrigins []string
}

// NewRouter creates a new API router.
func NewRouter(opts RouterOptions, logger *utils.Logger) *Router {
	r := chi.NewRouter()
	apiLogger := logger.Named("api")

	// Create middleware
	recoveryMiddleware := appMiddleware.NewRecoveryMiddleware(apiLogger)
	loggerMiddleware := appMiddleware.NewLoggerMiddleware(apiLogger)
	corsMiddleware := appMiddleware.NewCORSMiddleware(appMiddleware.DefaultCORSConfig(opts.AllowedOrigins), apiLogger)

	limit := func(next http.Handler) http.Handler { return next }
	if opts.Limiter != nil {
		limit = appMiddleware.NewRateLimitMiddleware(opts.Limiter, apiLogger).Limit
	}

	// Create handlers
	mediaHandler := handlers.NewMediaHandler(opts.Media, handlers.MediaHandlerOptions{
		SearchTake:  opts.SearchTake,
		RelatedTake: opts.RelatedTake,
		Proxy:       opts.Proxy,
	}, apiLogger)
	healthHandler := handlers.NewHealthHandler(opts.Health, apiLogger)

	// Apply global middleware
	r.Use(recoveryMiddleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggerMiddleware.Logger)
	r.Use(corsMiddleware.CORS)
	if opts.Metrics != nil {
		r.Use(appMiddleware.Metrics(opts.Metrics))
	}
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/health", healthHandler.Check)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(limit)

		r.Route("/media", func(r chi.Router) {
			r.Post("/extract", mediaHandler.Extract)
			r.Post("/extract-url", mediaHandler.ExtractURL)
			r.Get("/search", mediaHandler.Search)
			r.Get("/related", mediaHandler.Related)
			if opts.Proxy != nil {
				r.Get("/stream/{videoId}", mediaHandler.Stream)
			}
		})

		r.Get("/saavn/search", mediaHandler.SaavnSearch)

		if opts.Downloads != nil {
			downloadHandler := handlers.NewDownloadHandler(opts.Downloads, apiLogger)
			r.Route("/downloads", func(r chi.Router) {
				r.Post("/", downloadHandler.Start)
				r.Get("/", downloadHandler.List)
				r.Get("/{id}", downloadHandler.Get)
			})
		}
	})

	if opts.RPC != nil {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/rpc", opts.RPC.ServeHTTP)
			if opts.WebSocket {
				r.Get("/rpc/ws", opts.RPC.ServeWS)
			}
		})
	}

	return &Router{
		Mux:    r,
		logger: apiLogger,
	}
}
