package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
)

func cand(id, title, uploader string, duration int) models.RawCandidate {
	return models.RawCandidate{ID: id, Title: title, Uploader: uploader, Duration: duration}
}

func TestIsLikelyMusicResult(t *testing.T) {
	tests := []struct {
		name    string
		c       models.RawCandidate
		query   string
		strict  bool
		relaxed bool
	}{
		{
			name:  "official audio on topic channel at 600s",
			c:     cand("a", "Song Title - Official Audio", "Artist - Topic", 600),
			query: "song title",
			// 600 is not above the strict 10 minute cap
			strict: true, relaxed: true,
		},
		{
			name:   "too short",
			c:      cand("a", "Song Title - Official Audio", "Artist - Topic", 30),
			strict: false, relaxed: false,
		},
		{
			name:   "59 seconds is too short",
			c:      cand("a", "Tune", "Someone", 59),
			strict: false, relaxed: false,
		},
		{
			name:   "60 seconds passes relaxed",
			c:      cand("a", "Tune", "Someone", 60),
			strict: false, relaxed: true,
		},
		{
			name:   "longer than 15 minutes",
			c:      cand("a", "Album Stream (Official Audio)", "Artist - Topic", 901),
			strict: false, relaxed: false,
		},
		{
			name:   "unknown duration",
			c:      cand("a", "Believer", "Imagine Dragons - Topic", -1),
			query:  "believer",
			strict: false, relaxed: true,
		},
		{
			name:   "blocked title token",
			c:      cand("a", "Believer (REACTION)", "Imagine Dragons - Topic", 200),
			strict: false, relaxed: false,
		},
		{
			name:   "stylised blocked title token",
			c:      cand("a", "Ｂｅｌｉｅｖｅｒ ｒｅａｃｔｉｏｎ", "Someone", 200),
			strict: false, relaxed: false,
		},
		{
			name:   "non-music channel",
			c:      cand("a", "Believer (Official Audio)", "Music News TV", 200),
			query:  "believer",
			strict: false, relaxed: true,
		},
		{
			name:   "strict cap above 10 minutes",
			c:      cand("a", "Believer Live (Official Audio)", "Imagine Dragons - Topic", 650),
			query:  "believer",
			strict: false, relaxed: true,
		},
		{
			name:   "live query lifts the strict cap",
			c:      cand("a", "Believer Live (Official Audio)", "Imagine Dragons - Topic", 650),
			query:  "believer live",
			strict: true, relaxed: true,
		},
		{
			name:   "mix query lifts the strict cap",
			c:      cand("a", "Workout Mix (Official Audio)", "Mixes - Topic", 700),
			query:  "workout mix",
			strict: true, relaxed: true,
		},
		{
			name:   "query token missing from title and uploader",
			c:      cand("a", "Believer (Official Audio)", "Imagine Dragons - Topic", 200),
			query:  "thunder",
			strict: false, relaxed: true,
		},
		{
			name:   "stop words do not count as tokens",
			c:      cand("a", "Believer (Official Audio)", "Imagine Dragons - Topic", 200),
			query:  "the song music video",
			strict: true, relaxed: true,
		},
		{
			name:   "no signal outside the band",
			c:      cand("a", "Believer", "Someone", 500),
			query:  "believer",
			strict: false, relaxed: true,
		},
		{
			name:   "no signal inside the band",
			c:      cand("a", "Believer", "Someone", 300),
			query:  "believer",
			strict: true, relaxed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.strict, IsLikelyMusicResult(tt.c, tt.query, Strict), "strict")
			assert.Equal(t, tt.relaxed, IsLikelyMusicResult(tt.c, tt.query, Relaxed), "relaxed")
		})
	}
}

func TestToTrack(t *testing.T) {
	track, ok := ToTrack(cand("dQw4w9WgXcQ", "Never Gonna Give You Up", "Rick Astley", 212))
	require.True(t, ok)
	require.NotNil(t, track.Duration)
	assert.Equal(t, models.Track{
		ID:        "yt:dQw4w9WgXcQ",
		Name:      "Never Gonna Give You Up",
		Duration:  track.Duration,
		Author:    "Rick Astley",
		Thumbnail: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
	}, track)
	assert.Equal(t, 212, *track.Duration)

	track, ok = ToTrack(cand("x", "Unknown length", "", -1))
	require.True(t, ok)
	assert.Nil(t, track.Duration)

	track, ok = ToTrack(cand("x", "Zero length", "", 0))
	require.True(t, ok)
	assert.Nil(t, track.Duration)

	_, ok = ToTrack(cand("", "No id", "", 200))
	assert.False(t, ok)
	_, ok = ToTrack(cand("x", "", "", 200))
	assert.False(t, ok)
	_, ok = ToTrack(cand("x", "Short", "", 45))
	assert.False(t, ok)
}

func TestCandidateFromEntry(t *testing.T) {
	c := CandidateFromEntry(&extractor.MediaInfo{
		ID:       " abc ",
		Title:    "  Title  ",
		Uploader: "  ",
		Channel:  " Channel Name ",
		Duration: dur(212.7),
	})
	assert.Equal(t, cand("abc", "Title", "Channel Name", 212), c)

	c = CandidateFromEntry(&extractor.MediaInfo{ID: "abc", Title: "t", Uploader: "Up", Channel: "Ch"})
	assert.Equal(t, "Up", c.Uploader)
	assert.Equal(t, -1, c.Duration)
}

func TestRankSearchStrictBeforeRelaxed(t *testing.T) {
	query := "believer lyrics"
	cands := []models.RawCandidate{
		cand("r1", "Believer", "Random Uploads", 700),
		cand("s1", "Believer (Lyrics)", "Lyric Vibes", 204),
		cand("r2", "Believer", "Someone", -1),
		cand("s2", "Imagine Dragons - Believer (Official Audio)", "Imagine Dragons - Topic", 204),
	}

	tracks := RankSearch(cands, query, 10)
	ids := trackIDs(tracks)
	assert.Equal(t, []string{"yt:s1", "yt:s2", "yt:r1", "yt:r2"}, ids)
}

func TestRankSearchDeduplicates(t *testing.T) {
	cands := []models.RawCandidate{
		cand("a", "Believer (Official Audio)", "Imagine Dragons - Topic", 204),
		cand("a", "Believer (Official Audio)", "Imagine Dragons - Topic", 204),
		cand("b", "Believer", "Someone", -1),
		cand("a", "Believer", "Someone", -1),
		cand("b", "Believer", "Someone", -1),
	}

	tracks := RankSearch(cands, "believer audio", 10)
	assert.Equal(t, []string{"yt:a", "yt:b"}, trackIDs(tracks))
}

func TestRankSearchTruncates(t *testing.T) {
	var cands []models.RawCandidate
	for _, id := range []string{"a", "b", "c", "d"} {
		cands = append(cands, cand(id, "Believer (Official Audio)", "Imagine Dragons - Topic", 204))
	}

	assert.Len(t, RankSearch(cands, "believer", 2), 2)
	assert.Empty(t, RankSearch(cands, "believer", 0))
}

func TestRankRelated(t *testing.T) {
	cands := []models.RawCandidate{
		cand("a", "Song A", "Someone", -1),
		cand("b", "Official Trailer", "Studio", 150),
		cand("c", "Song C", "Music News", 200),
		cand("d", "Song D", "Someone", 1000),
		cand("e", "Song E", "Someone", 240),
	}

	assert.Equal(t, []string{"yt:a", "yt:c", "yt:e"}, trackIDs(RankRelated(cands, 10)))
	assert.Equal(t, []string{"yt:a", "yt:c"}, trackIDs(RankRelated(cands, 2)))
}

func trackIDs(tracks []models.Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}
