// Package media provides audio resolution, music search and related-media ranking.
package media

import (
	"context"
	"strings"
	"time"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
)

const (
	// DefaultUserAgent is sent when neither the caller nor the backend supplied one.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	siteOrigin  = "https://www.youtube.com"
	siteReferer = "https://www.youtube.com/"
	watchURL    = "https://www.youtube.com/watch?v="

	// backend-level safety options applied to every invocation
	backendSocketTimeout    = 8 * time.Second
	backendRetries          = 1
	backendExtractorRetries = 1
)

// backendRequest returns a request carrying the fixed safety options.
func backendRequest(url string) extractor.Request {
	return extractor.Request{
		URL:              url,
		NoWarnings:       true,
		GeoBypass:        true,
		SocketTimeout:    backendSocketTimeout,
		Retries:          backendRetries,
		ExtractorRetries: backendExtractorRetries,
	}
}

// Resolver turns a content identifier into a playable https URL plus headers by
// walking the extraction fallback chain until one attempt succeeds.
type Resolver struct {
	backend extractor.Backend
	metrics *system.MetricsService
	logger  *utils.Logger
}

// NewResolver creates a new resolver.
func NewResolver(backend extractor.Backend, metrics *system.MetricsService, logger *utils.Logger) *Resolver {
	return &Resolver{
		backend: backend,
		metrics: metrics,
		logger:  logger.Named("resolver"),
	}
}

// Resolve runs the attempts in order. The first success wins and later attempts
// are never tried. When every attempt fails the error carries the last cause.
func (r *Resolver) Resolve(ctx context.Context, videoID string, rawAuth map[string]string) (*models.ResolvedAudio, error) {
	var (
		auth    models.HeaderBag
		lastErr error
	)

	for i, attempt := range PlanAttempts(videoID) {
		n := i + 1

		req := backendRequest(watchURL + videoID)
		req.NoPlaylist = true
		req.FormatSelector = attempt.FormatSelector
		req.ExtractorArgs = attempt.ExtractorArgs
		if attempt.UseAuthHeaders {
			if auth == nil {
				auth = authHeaders(rawAuth)
			}
			req.Headers = auth
		}

		start := time.Now()
		info, err := r.backend.Extract(ctx, req)
		r.metrics.ObserveBackendCall("extract", time.Since(start), err)

		var url string
		if err == nil {
			if url = secureURL(info); url == "" {
				err = models.NewNoPlayableURLError()
			}
		}
		if err != nil {
			lastErr = err
			r.metrics.IncResolveAttempt(n, false)
			r.logger.Warn("Extraction attempt failed",
				"videoId", videoID,
				"attempt", n,
				"format", attempt.FormatSelector,
				"auth", attempt.UseAuthHeaders,
				"error", err)
			continue
		}

		r.metrics.IncResolveAttempt(n, true)
		r.logger.Debug("Extraction attempt succeeded", "videoId", videoID, "attempt", n)

		return &models.ResolvedAudio{
			URL:     url,
			Headers: playbackHeaders(info.HTTPHeaders),
		}, nil
	}

	r.metrics.IncResolutionFailed()
	r.logger.Error("All extraction attempts failed", lastErr, "videoId", videoID)
	return nil, models.NewResolutionFailedError(lastErr)
}

// authHeaders normalizes caller headers and fills Referer and Origin when absent.
func authHeaders(raw map[string]string) models.HeaderBag {
	h := NormalizeHeaders(raw)
	h.SetDefault("Referer", siteReferer)
	h.SetDefault("Origin", siteOrigin)
	return h
}

// playbackHeaders keeps the backend headers and defaults the five the player needs.
func playbackHeaders(reported map[string]string) models.HeaderBag {
	h := make(models.HeaderBag, len(reported)+5)
	for k, v := range reported {
		h.Set(k, v)
	}
	h.SetDefault("User-Agent", DefaultUserAgent)
	h.SetDefault("Accept", "*/*")
	h.SetDefault("Accept-Language", "en-US,en;q=0.9")
	h.SetDefault("Referer", siteReferer)
	h.SetDefault("Origin", siteOrigin)
	return h
}

// secureURL returns the descriptor URL upgraded to https, or "" when it is
// blank or uses any other scheme.
func secureURL(info *extractor.MediaInfo) string {
	if info == nil {
		return ""
	}
	url := strings.TrimSpace(info.URL)
	switch {
	case url == "":
		return ""
	case hasSchemePrefix(url, "https://"):
		return url
	case hasSchemePrefix(url, "http://"):
		return "https://" + url[len("http://"):]
	default:
		return ""
	}
}

func hasSchemePrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
