package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hongeet.dev/backend/internal/api"
	"hongeet.dev/backend/internal/api/handlers"
	appMiddleware "hongeet.dev/backend/internal/api/middleware"
	"hongeet.dev/backend/internal/config"
	"hongeet.dev/backend/internal/db/redis"
	"hongeet.dev/backend/internal/rpc"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/mediaproxy"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, JSON-RPC and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	logger.Info("Starting Hongeet server", "version", version, "environment", cfg.Environment)

	var metrics *system.MetricsService
	if cfg.Features.Metrics {
		metrics = system.NewMetricsService(logger)
	}

	a, err := newApp(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg, logger)
		if err != nil {
			// the in-memory limiter takes over; health reports redis as degraded
			logger.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	if cfg.Extractor.AutoUpdate {
		go func() {
			if _, err := a.ytdlp.Update(ctx); err != nil {
				logger.Warn("yt-dlp update failed", "error", err)
			}
		}()
	}

	// interface values stay nil when downloads are disabled
	var (
		rpcDownloads  rpc.DownloadAPI
		httpDownloads handlers.DownloadService
	)
	if a.downloads != nil {
		rpcDownloads = a.downloads
		httpDownloads = a.downloads
	}

	rpcServer := rpc.NewServer(
		rpc.NewMethods(a.media, rpcDownloads, rpc.Defaults{
			SearchTake:  cfg.Search.DefaultTake,
			RelatedTake: cfg.Search.RelatedTake,
		}),
		rpc.Options{
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		metrics,
		logger,
	)
	if a.downloads != nil {
		a.downloads.OnUpdate(rpcServer.PublishDownload)
	}

	var proxy *mediaproxy.MediaProxy
	if cfg.Features.StreamProxy {
		proxy = mediaproxy.NewMediaProxy(
			mediaproxy.WithCache(mediaproxy.NewLocatorCache(cfg.Stream.CacheTTL, cfg.Stream.CacheSize)),
			mediaproxy.WithByteCounter(metrics.AddProxyBytes),
		)
	}

	healthService := system.NewHealthService(logger, system.HealthServiceConfig{
		Version:     version,
		Environment: cfg.Environment,
	}, healthChecks(a, redisClient)...)
	healthService.Start(ctx)

	router := api.NewRouter(api.RouterOptions{
		Media:          a.media,
		Health:         healthService,
		Downloads:      httpDownloads,
		Proxy:          proxy,
		RPC:            rpcServer,
		WebSocket:      cfg.Features.WebSocket,
		Metrics:        metrics,
		Limiter:        rateLimiter(ctx, redisClient),
		SearchTake:     cfg.Search.DefaultTake,
		RelatedTake:    cfg.Search.RelatedTake,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		rpcServer.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}

func healthChecks(a *app, redisClient *redis.Client) []system.HealthCheck {
	checks := []system.HealthCheck{
		{
			Name:     "extractor",
			Critical: true,
			Probe:    a.ytdlp.Version,
		},
	}

	if cfg.Redis.Enabled {
		checks = append(checks, system.HealthCheck{
			Name: "redis",
			Probe: func(ctx context.Context) (string, error) {
				if redisClient == nil {
					return "", errors.New("not connected")
				}
				if err := redisClient.Ping(ctx); err != nil {
					return "", err
				}
				return "ok", nil
			},
		})
	}

	if a.downloads != nil {
		dir := a.downloads.Dir()
		checks = append(checks, system.HealthCheck{
			Name: "download_dir",
			Probe: func(context.Context) (string, error) {
				if err := config.CheckWritable(dir); err != nil {
					return "", err
				}
				return dir, nil
			},
		})
	}

	return checks
}

// rateLimiter returns nil when rate limiting is disabled.
func rateLimiter(ctx context.Context, redisClient *redis.Client) appMiddleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	if redisClient != nil {
		return redis.NewRateLimiter(redisClient, redis.RateLimit{
			Key:         "http",
			MaxRequests: cfg.RateLimit.Requests,
			Window:      cfg.RateLimit.Window,
		})
	}

	limiter := utils.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Requests)
	go limiter.CleanupLoop(ctx, time.Minute)
	return limiter
}
