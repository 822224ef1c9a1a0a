package media

import (
	"context"

	"github.com/samber/lo"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
)

const (
	// MinTake and MaxTake bound the number of tracks a caller can request.
	MinTake = 1
	MaxTake = 50
)

// ClampTake bounds take to [MinTake, MaxTake].
func ClampTake(take int) int {
	return lo.Clamp(take, MinTake, MaxTake)
}

// fetchTake over-fetches so the filter has material to work with.
func fetchTake(take int) int {
	return lo.Clamp(take*2, take, MaxTake)
}

// SearchService classifies a query, fetches candidates and ranks them.
type SearchService struct {
	source  CandidateSource
	metrics *system.MetricsService
	logger  *utils.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(source CandidateSource, metrics *system.MetricsService, logger *utils.Logger) *SearchService {
	return &SearchService{
		source:  source,
		metrics: metrics,
		logger:  logger.Named("search_service"),
	}
}

// Search returns at most take music tracks for query, strict tier first.
func (s *SearchService) Search(ctx context.Context, query string, take int) ([]models.Track, error) {
	safeTake := ClampTake(take)
	limit := fetchTake(safeTake)
	cls := Classify(query)

	cands, err := s.source.Search(ctx, cls.RewrittenQuery, limit)
	if err != nil {
		s.logger.Error("Candidate search failed", err, "source", s.source.Name(), "query", query)
		return nil, err
	}

	strict, relaxed := PartitionCandidates(cands, query)
	tracks := MergeTiers(strict, relaxed, safeTake)

	s.metrics.IncSearch(cls.IsArtistQuery)
	s.metrics.AddRanked(models.TierStrict.String(), len(strict))
	s.metrics.AddRanked(models.TierRelaxed.String(), len(relaxed))

	s.logger.Debug("Search ranked",
		"query", query,
		"effectiveQuery", cls.RewrittenQuery,
		"artist", cls.IsArtistQuery,
		"candidates", len(cands),
		"strict", len(strict),
		"relaxed", len(relaxed),
		"returned", len(tracks))

	return tracks, nil
}
