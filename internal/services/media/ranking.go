package media

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
)

// Mode selects how demanding candidate admission is.
type Mode int

const (
	// Relaxed tolerates unknown durations and skips query and channel checks.
	Relaxed Mode = iota
	// Strict requires known durations, query overlap and a music signal.
	Strict
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "relaxed"
}

const (
	minDurationExclusive = 59
	maxDuration          = 15 * 60
	maxStrictDuration    = 10 * 60
	signalBandMin        = 90
	signalBandMax        = 480

	thumbnailURL = "https://i.ytimg.com/vi/%s/hqdefault.jpg"
)

var (
	blockedTitleTokens = []string{
		"full movie", "episode", "podcast", "reaction", "review", "interview",
		"news", "trailer", "teaser", "shorts", "gameplay", "walkthrough",
		"tutorial", "how to", "lecture", "speech", "sermon", "comedy", "prank", "vlog",
	}

	nonMusicChannelTokens = []string{"news", "podcast", "tv", "interview"}

	musicSignals = []string{
		"official audio", "audio", "lyrics", "lyric", "music video",
		"visualizer", "remix", "cover", "ost", "soundtrack",
	}

	musicChannelMarkers = []string{"- topic", "vevo"}

	queryStopWords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "song": {}, "music": {}, "video": {}, "audio": {},
	}
)

// IsLikelyMusicResult applies the music-likelihood heuristics to one candidate.
// Strict mode rejects unknown durations outright.
func IsLikelyMusicResult(c models.RawCandidate, query string, mode Mode) bool {
	title := fold(c.Title)
	uploader := fold(c.Uploader)
	q := fold(query)
	strict := mode == Strict

	if containsAny(title, blockedTitleTokens) {
		return false
	}
	if strict && containsAny(uploader, nonMusicChannelTokens) {
		return false
	}

	d := c.Duration
	if d > 0 {
		if d <= minDurationExclusive || d > maxDuration {
			return false
		}
		if strict && d > maxStrictDuration && !strings.Contains(q, "live") && !strings.Contains(q, "mix") {
			return false
		}
	} else if strict {
		return false
	}

	if strict {
		tokens := queryTokens(q)
		if len(tokens) > 0 && !lo.SomeBy(tokens, func(t string) bool {
			return strings.Contains(title, t) || strings.Contains(uploader, t)
		}) {
			return false
		}
	}

	hasSignal := containsAny(title, musicSignals) || containsAny(uploader, musicChannelMarkers)
	if strict && !hasSignal && d > 0 && (d < signalBandMin || d > signalBandMax) {
		return false
	}

	return true
}

// queryTokens returns the meaningful words of an already folded query.
func queryTokens(q string) []string {
	return lo.Filter(strings.Fields(q), func(t string, _ int) bool {
		if utf8.RuneCountInString(t) < 3 {
			return false
		}
		_, stop := queryStopWords[t]
		return !stop
	})
}

// CandidateFromEntry converts a flattened backend entry.
func CandidateFromEntry(e *extractor.MediaInfo) models.RawCandidate {
	uploader := strings.TrimSpace(e.Uploader)
	if uploader == "" {
		uploader = strings.TrimSpace(e.Channel)
	}
	return models.RawCandidate{
		ID:       strings.TrimSpace(e.ID),
		Title:    strings.TrimSpace(e.Title),
		Uploader: uploader,
		Duration: e.DurationSeconds(),
	}
}

// ToTrack maps a candidate to a Track. Candidates without id or title, or with
// a reported duration outside (59, 900], are never mapped.
func ToTrack(c models.RawCandidate) (models.Track, bool) {
	if c.ID == "" || c.Title == "" {
		return models.Track{}, false
	}
	if c.Duration > 0 && (c.Duration <= minDurationExclusive || c.Duration > maxDuration) {
		return models.Track{}, false
	}

	track := models.Track{
		ID:        models.SourceYouTube + ":" + c.ID,
		Name:      c.Title,
		Author:    c.Uploader,
		Thumbnail: fmt.Sprintf(thumbnailURL, c.ID),
	}
	if c.Duration > 0 {
		d := c.Duration
		track.Duration = &d
	}
	return track, true
}

func admit(c models.RawCandidate, query string, mode Mode) (models.Track, bool) {
	track, ok := ToTrack(c)
	if !ok || !IsLikelyMusicResult(c, query, mode) {
		return models.Track{}, false
	}
	return track, true
}

// PartitionCandidates splits candidates into strict and relaxed tiers, each in
// backend order. Artist queries admit everything in relaxed mode and tier by
// channel match; other queries try strict admission first.
func PartitionCandidates(cands []models.RawCandidate, query string) (strict, relaxed []models.Track) {
	artist := IsLikelyArtistQuery(query)

	for _, c := range cands {
		if artist {
			track, ok := admit(c, query, Relaxed)
			if !ok {
				continue
			}
			if IsArtistChannelMatch(c.Uploader, query) {
				strict = append(strict, track)
			} else {
				relaxed = append(relaxed, track)
			}
			continue
		}

		if track, ok := admit(c, query, Strict); ok {
			strict = append(strict, track)
			continue
		}
		if track, ok := admit(c, query, Relaxed); ok {
			relaxed = append(relaxed, track)
		}
	}
	return strict, relaxed
}

// MergeTiers emits strict tracks then relaxed tracks, skipping ids already
// emitted, until take tracks are collected.
func MergeTiers(strict, relaxed []models.Track, take int) []models.Track {
	out := make([]models.Track, 0, max(take, 0))
	seen := make(map[string]struct{}, max(take, 0))

	for _, tier := range [][]models.Track{strict, relaxed} {
		for _, t := range tier {
			if len(out) >= take {
				return out
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// RankSearch turns raw search candidates into at most take tracks, strict tier first.
func RankSearch(cands []models.RawCandidate, query string, take int) []models.Track {
	strict, relaxed := PartitionCandidates(cands, query)
	return MergeTiers(strict, relaxed, take)
}

// RankRelated admits candidates in relaxed mode without a query and keeps
// backend order, truncated to take.
func RankRelated(cands []models.RawCandidate, take int) []models.Track {
	out := make([]models.Track, 0, max(take, 0))
	for _, c := range cands {
		if len(out) >= take {
			break
		}
		if track, ok := admit(c, "", Relaxed); ok {
			out = append(out, track)
		}
	}
	return out
}
