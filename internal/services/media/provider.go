package media

import (
	"context"
	"fmt"
	"time"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
)

// searchExtractorArgs skips the watch page and player configs for flat listings.
const searchExtractorArgs = "youtube:player_skip=webpage,configs"

// CandidateSource fetches raw search candidates for an already rewritten query.
type CandidateSource interface {
	// Search returns up to limit candidates in backend order.
	Search(ctx context.Context, query string, limit int) ([]models.RawCandidate, error)

	// Name identifies the source in logs and metrics.
	Name() string
}

// BackendSource searches through the extraction backend's ytsearch expansion.
type BackendSource struct {
	backend extractor.Backend
	metrics *system.MetricsService
}

// NewBackendSource creates a candidate source backed by the extraction backend.
func NewBackendSource(backend extractor.Backend, metrics *system.MetricsService) *BackendSource {
	return &BackendSource{backend: backend, metrics: metrics}
}

// Name implements CandidateSource.
func (s *BackendSource) Name() string { return "ytdlp" }

// Search implements CandidateSource. A document without entries is an empty result.
func (s *BackendSource) Search(ctx context.Context, query string, limit int) ([]models.RawCandidate, error) {
	req := backendRequest(fmt.Sprintf("ytsearch%d:%s", limit, query))
	req.NoPlaylist = true
	req.FlatPlaylist = true
	req.PlaylistEnd = limit
	req.ExtractorArgs = searchExtractorArgs

	start := time.Now()
	doc, err := s.backend.Dump(ctx, req)
	s.metrics.ObserveBackendCall("search", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return candidatesFromDocument(doc), nil
}

func candidatesFromDocument(doc *extractor.Document) []models.RawCandidate {
	if doc == nil || doc.Entries == nil {
		return []models.RawCandidate{}
	}
	out := make([]models.RawCandidate, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if e == nil {
			continue
		}
		out = append(out, CandidateFromEntry(e))
	}
	return out
}
