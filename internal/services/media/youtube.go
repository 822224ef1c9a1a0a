package media

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

// musicCategoryID is the YouTube "Music" video category.
const musicCategoryID = "10"

// YouTubeAPISource searches through the YouTube Data API v3. It yields the same
// raw candidates as the backend search, so ranking is unchanged.
type YouTubeAPISource struct {
	service *youtube.Service
	logger  *utils.Logger
}

// NewYouTubeAPISource creates a Data API candidate source.
func NewYouTubeAPISource(ctx context.Context, apiKey string, logger *utils.Logger, opts ...option.ClientOption) (*YouTubeAPISource, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &YouTubeAPISource{
		service: service,
		logger:  logger.Named("youtube_api"),
	}, nil
}

// Name implements CandidateSource.
func (s *YouTubeAPISource) Name() string { return "youtube_api" }

// Search implements CandidateSource. Durations come from one batched videos.list call.
func (s *YouTubeAPISource) Search(ctx context.Context, query string, limit int) ([]models.RawCandidate, error) {
	response, err := s.service.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(limit)).
		VideoCategoryId(musicCategoryID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, models.NewBackendError(fmt.Errorf("youtube search: %w", err))
	}

	cands := make([]models.RawCandidate, 0, len(response.Items))
	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id == nil || item.Id.Kind != "youtube#video" || item.Snippet == nil {
			continue
		}
		cands = append(cands, models.RawCandidate{
			ID:       strings.TrimSpace(item.Id.VideoId),
			Title:    strings.TrimSpace(html.UnescapeString(item.Snippet.Title)),
			Uploader: strings.TrimSpace(html.UnescapeString(item.Snippet.ChannelTitle)),
			Duration: -1,
		})
		ids = append(ids, item.Id.VideoId)
	}
	if len(ids) == 0 {
		return cands, nil
	}

	durations, err := s.durations(ctx, ids)
	if err != nil {
		// unknown durations still rank in relaxed mode
		s.logger.Warn("Failed to fetch video durations", "error", err, "count", len(ids))
		return cands, nil
	}
	for i := range cands {
		if d, ok := durations[cands[i].ID]; ok {
			cands[i].Duration = d
		}
	}
	return cands, nil
}

func (s *YouTubeAPISource) durations(ctx context.Context, ids []string) (map[string]int, error) {
	response, err := s.service.Videos.List([]string{"contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(response.Items))
	for _, v := range response.Items {
		if v.ContentDetails == nil {
			continue
		}
		d, err := parseDuration(v.ContentDetails.Duration)
		if err != nil || d <= 0 {
			continue
		}
		out[v.Id] = d
	}
	return out, nil
}

// parseDuration parses an ISO 8601 duration such as PT1H2M3S into seconds.
func parseDuration(isoDuration string) (int, error) {
	rest, ok := strings.CutPrefix(isoDuration, "P")
	if !ok {
		return 0, fmt.Errorf("invalid duration %q", isoDuration)
	}

	var total int
	if day, after, found := strings.Cut(rest, "D"); found {
		n, err := strconv.Atoi(day)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", isoDuration, err)
		}
		total += n * 86400
		rest = after
	}
	rest = strings.TrimPrefix(rest, "T")

	for _, unit := range []struct {
		suffix string
		secs   int
	}{{"H", 3600}, {"M", 60}, {"S", 1}} {
		value, after, found := strings.Cut(rest, unit.suffix)
		if !found {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", isoDuration, err)
		}
		total += n * unit.secs
		rest = after
	}

	return total, nil
}
