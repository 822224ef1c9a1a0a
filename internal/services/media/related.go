package media

import (
	"context"
	"fmt"
	"time"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
)

// mixURL is the radio expansion of a video: the video followed by its auto-generated mix.
const mixURL = "https://www.youtube.com/watch?v=%s&list=RD%s"

// RelatedFetcher expands a content identifier into related candidates.
type RelatedFetcher struct {
	backend extractor.Backend
	metrics *system.MetricsService
	logger  *utils.Logger
}

// NewRelatedFetcher creates a new related-media fetcher.
func NewRelatedFetcher(backend extractor.Backend, metrics *system.MetricsService, logger *utils.Logger) *RelatedFetcher {
	return &RelatedFetcher{
		backend: backend,
		metrics: metrics,
		logger:  logger.Named("related"),
	}
}

// FetchRelated requests take+2 flattened mix entries. No entries is an empty
// result, not an error.
func (f *RelatedFetcher) FetchRelated(ctx context.Context, videoID string, take int) ([]models.RawCandidate, error) {
	req := backendRequest(fmt.Sprintf(mixURL, videoID, videoID))
	req.FlatPlaylist = true
	req.PlaylistEnd = take + 2
	req.ExtractorArgs = searchExtractorArgs

	start := time.Now()
	doc, err := f.backend.Dump(ctx, req)
	f.metrics.ObserveBackendCall("related", time.Since(start), err)
	if err != nil {
		f.logger.Warn("Related expansion failed", "videoId", videoID, "error", err)
		return nil, err
	}

	cands := candidatesFromDocument(doc)
	f.logger.Debug("Related expansion fetched", "videoId", videoID, "entries", len(cands))
	return cands, nil
}
