package main

import (
	"context"
	"fmt"

	"hongeet.dev/backend/internal/config"
	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/services/download"
	"hongeet.dev/backend/internal/services/media"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/internal/worker"
)

// app holds the services shared by the server and the local CLI commands.
type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	metrics   *system.MetricsService
	ytdlp     *extractor.YtDlp
	media     *media.Service
	downloads *download.Service
}

// newApp wires the media pipeline from cfg. metrics may be nil.
func newApp(ctx context.Context, cfg *config.Config, metrics *system.MetricsService, logger *utils.Logger) (*app, error) {
	ytdlp := extractor.NewYtDlp(extractor.YtDlpOptions{
		Binary:         cfg.Extractor.Binary,
		ExtraPath:      cfg.Extractor.ExtraPath,
		ProcessTimeout: cfg.Extractor.ProcessTimeout,
		SpawnRate:      cfg.Extractor.SpawnRate,
		SpawnBurst:     cfg.Extractor.SpawnBurst,
	}, logger)

	source, err := candidateSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var saavn *media.SaavnClient
	if cfg.Features.Saavn {
		saavn = media.NewSaavnClient(media.SaavnOptions{
			BaseURL:        cfg.Saavn.BaseURL,
			ConnectTimeout: cfg.Saavn.ConnectTimeout,
			ReadTimeout:    cfg.Saavn.ReadTimeout,
		}, logger)
	}

	pool := worker.New(worker.Options{
		Name:         "media",
		Size:         cfg.Workers.MaxConcurrent,
		QueueTimeout: cfg.Workers.QueueTimeout,
	}, metrics, logger)
	logger.Debug("Media worker pool ready", "size", pool.Size())

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		ytdlp:   ytdlp,
		media: media.NewService(media.ServiceOptions{
			Backend: ytdlp,
			Source:  source,
			Saavn:   saavn,
			Pool:    pool,
			Metrics: metrics,
		}, logger),
	}

	if cfg.Features.Downloads {
		downloadPool := worker.New(worker.Options{
			Name: "download",
			Size: cfg.Download.MaxParallel,
		}, metrics, logger)

		a.downloads, err = download.NewService(download.Options{
			Dir:             cfg.Download.Dir,
			ProgressStep:    cfg.Download.ProgressStep,
			ResponseTimeout: cfg.Download.ResponseTimeout,
		}, a.media, downloadPool, metrics, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create download service: %w", err)
		}
	}

	return a, nil
}

// candidateSource returns nil for the default source, which searches through the extractor.
func candidateSource(ctx context.Context, cfg *config.Config, logger *utils.Logger) (media.CandidateSource, error) {
	switch cfg.Search.CandidateSource {
	case "", "ytdlp":
		return nil, nil
	case "youtube_api":
		source, err := media.NewYouTubeAPISource(ctx, cfg.YouTube.APIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create YouTube API source: %w", err)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unknown candidate source: %s", cfg.Search.CandidateSource)
	}
}
