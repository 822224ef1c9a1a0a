package media

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/internal/worker"
)

// Service is the facade behind every dispatch surface. Blank inputs are
// rejected before any backend call; everything else runs on the worker pool.
type Service struct {
	resolver *Resolver
	search   *SearchService
	related  *RelatedFetcher
	saavn    *SaavnClient
	pool     *worker.Pool
	metrics  *system.MetricsService
	logger   *utils.Logger
}

// ServiceOptions wires the collaborators of a Service.
type ServiceOptions struct {
	Backend extractor.Backend

	// Source overrides the search candidate source; nil searches through Backend.
	Source CandidateSource

	// Saavn is optional; a nil client disables Saavn search.
	Saavn *SaavnClient

	Pool    *worker.Pool
	Metrics *system.MetricsService
}

// NewService creates a new media service.
func NewService(opts ServiceOptions, logger *utils.Logger) *Service {
	source := opts.Source
	if source == nil {
		source = NewBackendSource(opts.Backend, opts.Metrics)
	}

	return &Service{
		resolver: NewResolver(opts.Backend, opts.Metrics, logger),
		search:   NewSearchService(source, opts.Metrics, logger),
		related:  NewRelatedFetcher(opts.Backend, opts.Metrics, logger),
		saavn:    opts.Saavn,
		pool:     opts.Pool,
		metrics:  opts.Metrics,
		logger:   logger.Named("media_service"),
	}
}

// ExtractAudio resolves an identifier to a playable URL plus headers.
func (s *Service) ExtractAudio(ctx context.Context, videoID string, authHeaders map[string]string) (*models.ResolvedAudio, error) {
	id := NormalizeIdentifier(videoID)
	if id == "" {
		return nil, s.done(models.OpExtractAudio, models.NewMissingInputError("videoId"))
	}

	audio, err := worker.Do(ctx, s.pool, func(ctx context.Context) (*models.ResolvedAudio, error) {
		return s.resolver.Resolve(ctx, id, authHeaders)
	})
	return audio, s.done(models.OpExtractAudio, err)
}

// ExtractAudioURL resolves an identifier and returns only the URL.
func (s *Service) ExtractAudioURL(ctx context.Context, videoID string, authHeaders map[string]string) (string, error) {
	audio, err := s.ExtractAudio(ctx, videoID, authHeaders)
	if err != nil {
		return "", err
	}
	if audio == nil || audio.URL == "" {
		return "", s.done(models.OpExtractAudioURL, models.NewNoPlayableURLError())
	}
	return audio.URL, nil
}

// Search returns up to take (clamped to [1, 50]) music tracks for query.
func (s *Service) Search(ctx context.Context, query string, take int) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, s.done(models.OpSearch, models.NewMissingInputError("query"))
	}

	tracks, err := worker.Do(ctx, s.pool, func(ctx context.Context) ([]models.Track, error) {
		return s.search.Search(ctx, query, ClampTake(take))
	})
	return tracks, s.done(models.OpSearch, err)
}

// Related returns up to take (clamped to [1, 50]) tracks from the identifier's mix.
func (s *Service) Related(ctx context.Context, videoID string, take int) ([]models.Track, error) {
	id := NormalizeIdentifier(videoID)
	if id == "" {
		return nil, s.done(models.OpRelated, models.NewMissingInputError("videoId"))
	}
	safeTake := ClampTake(take)

	tracks, err := worker.Do(ctx, s.pool, func(ctx context.Context) ([]models.Track, error) {
		cands, err := s.related.FetchRelated(ctx, id, safeTake)
		if err != nil {
			return nil, err
		}
		return RankRelated(cands, safeTake), nil
	})
	return tracks, s.done(models.OpRelated, err)
}

// SaavnSearch returns the raw Saavn search document for query.
func (s *Service) SaavnSearch(ctx context.Context, query string) (json.RawMessage, error) {
	if s.saavn == nil {
		return nil, s.done(models.OpSaavnSearch,
			models.NewDomainError(models.ErrFeatureDisabled, nil, "saavn search is disabled", 0, "media"))
	}
	if strings.TrimSpace(query) == "" {
		return nil, s.done(models.OpSaavnSearch, models.NewMissingInputError("query"))
	}

	body, err := worker.Do(ctx, s.pool, func(ctx context.Context) ([]byte, error) {
		return s.saavn.Search(ctx, query)
	})
	if err == nil && !json.Valid(body) {
		err = models.NewBackendError(errors.New("saavn returned invalid JSON"))
	}
	if err != nil {
		return nil, s.done(models.OpSaavnSearch, err)
	}
	s.done(models.OpSaavnSearch, nil)
	return json.RawMessage(body), nil
}

// done records the outcome of an operation and returns err unchanged.
func (s *Service) done(op models.Operation, err error) error {
	if err == nil {
		s.metrics.IncOperation(op.Name, "ok")
		return nil
	}
	kind := models.KindOf(err)
	s.metrics.IncOperation(op.Name, kind)
	if kind == models.KindMissingInput {
		s.logger.Debug("Rejected operation", "operation", op.Name, "error", err)
	} else if !errors.Is(err, context.Canceled) {
		s.logger.Warn("Operation failed", "operation", op.Name, "kind", kind, "error", err)
	}
	return err
}
