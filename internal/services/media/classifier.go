package media

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"hongeet.dev/backend/internal/models"
)

var (
	// artistExclusionHints disqualify a query from being an artist name.
	artistExclusionHints = []string{
		"song", "songs", "music", "lyrics", "lyric", "audio", "album", "track",
		"playlist", "mix", "remix", "cover", "ost", "soundtrack",
	}

	// musicHints mean the query already biases the backend toward music.
	musicHints = []string{
		"song", "music", "lyrics", "lyric", "audio", "album", "track",
		"remix", "cover", "ost", "soundtrack", "instrumental",
	}

	artistChannelMarkers = []string{"- topic", "vevo", "official"}

	artistNamePattern = regexp.MustCompile(`^[A-Za-z'&.\- ]+$`)
)

// Classify decides whether query names an artist and rewrites it to bias the
// backend toward music: artist queries get " topic", queries without a music
// hint get " song".
func Classify(query string) models.QueryClassification {
	q := strings.TrimSpace(query)
	if q == "" {
		return models.QueryClassification{RewrittenQuery: q}
	}

	if IsLikelyArtistQuery(q) {
		return models.QueryClassification{IsArtistQuery: true, RewrittenQuery: q + " topic"}
	}
	if containsAny(fold(q), musicHints) {
		return models.QueryClassification{RewrittenQuery: q}
	}
	return models.QueryClassification{RewrittenQuery: q + " song"}
}

// IsLikelyArtistQuery reports whether query looks like a person or band name:
// two to four words of letters and name punctuation, no digits, no music hints.
func IsLikelyArtistQuery(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	if containsAny(fold(q), artistExclusionHints) {
		return false
	}

	words := strings.Fields(q)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	if strings.IndexFunc(q, unicode.IsDigit) >= 0 {
		return false
	}

	// hints are folded, the name shape is checked on the text as typed
	return artistNamePattern.MatchString(q)
}

// IsArtistChannelMatch reports whether uploader looks like the channel of the
// artist named by query.
func IsArtistChannelMatch(uploader, query string) bool {
	u := fold(uploader)
	tokens := lo.Filter(strings.Fields(fold(query)), func(t string, _ int) bool {
		return utf8.RuneCountInString(t) >= 3
	})

	matches := lo.CountBy(tokens, func(t string) bool {
		return strings.Contains(u, t)
	})

	return matches >= 2 || (matches >= 1 && containsAny(u, artistChannelMarkers))
}
