package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

func newTestResolver(b *stubBackend) *Resolver {
	return NewResolver(b, nil, utils.NewNopLogger())
}

func TestResolveFirstSuccessWins(t *testing.T) {
	b := &stubBackend{extract: func(call int, _ extractor.Request) (*extractor.MediaInfo, error) {
		return &extractor.MediaInfo{URL: fmt.Sprintf("https://cdn.example/%d", call)}, nil
	}}

	audio, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/1", audio.URL)
	assert.Len(t, b.extractCalls, 1)
}

func TestResolveFallsBackInOrder(t *testing.T) {
	b := &stubBackend{extract: func(call int, _ extractor.Request) (*extractor.MediaInfo, error) {
		if call < 3 {
			return nil, fmt.Errorf("attempt %d blocked", call)
		}
		return &extractor.MediaInfo{URL: fmt.Sprintf("https://cdn.example/%d", call)}, nil
	}}

	audio, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/3", audio.URL)
	require.Len(t, b.extractCalls, 3, "attempt 4 is never tried")

	plan := PlanAttempts("abc123")
	for i, req := range b.extractCalls {
		assert.Equal(t, plan[i].FormatSelector, req.FormatSelector)
		assert.Equal(t, plan[i].ExtractorArgs, req.ExtractorArgs)
	}
}

func TestResolveSafetyOptions(t *testing.T) {
	b := &stubBackend{extract: func(int, extractor.Request) (*extractor.MediaInfo, error) {
		return &extractor.MediaInfo{URL: "https://cdn.example/a"}, nil
	}}

	_, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
	require.NoError(t, err)

	req := b.extractCalls[0]
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", req.URL)
	assert.True(t, req.NoPlaylist)
	assert.True(t, req.NoWarnings)
	assert.True(t, req.GeoBypass)
	assert.Equal(t, 8*time.Second, req.SocketTimeout)
	assert.Equal(t, 1, req.Retries)
	assert.Equal(t, 1, req.ExtractorRetries)
	assert.False(t, req.FlatPlaylist)
}

func TestResolveAuthHeadersPerAttempt(t *testing.T) {
	b := &stubBackend{extract: func(call int, _ extractor.Request) (*extractor.MediaInfo, error) {
		if call < 4 {
			return nil, errors.New("nope")
		}
		return &extractor.MediaInfo{URL: "https://cdn.example/a"}, nil
	}}

	raw := map[string]string{"cookie": " SID=1 ", "authorization": "Bearer x"}
	_, err := newTestResolver(b).Resolve(context.Background(), "abc123", raw)
	require.NoError(t, err)
	require.Len(t, b.extractCalls, 4)

	assert.Empty(t, b.extractCalls[0].Headers, "first attempt carries no auth headers")
	for _, req := range b.extractCalls[1:] {
		assert.Equal(t, models.HeaderBag{
			"Cookie":  "SID=1",
			"Referer": "https://www.youtube.com/",
			"Origin":  "https://www.youtube.com",
		}, req.Headers)
	}
}

func TestResolveUpgradesInsecureScheme(t *testing.T) {
	b := &stubBackend{extract: func(int, extractor.Request) (*extractor.MediaInfo, error) {
		return &extractor.MediaInfo{URL: "http://rr1.googlevideo.com/videoplayback?x=1"}, nil
	}}

	audio, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://rr1.googlevideo.com/videoplayback?x=1", audio.URL)
}

func TestResolveNeverReturnsInsecureURL(t *testing.T) {
	urls := []string{"", "   ", "ftp://host/a", "rtmp://host/a", "/relative"}
	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			b := &stubBackend{extract: func(int, extractor.Request) (*extractor.MediaInfo, error) {
				return &extractor.MediaInfo{URL: u}, nil
			}}

			audio, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
			assert.Nil(t, audio)
			require.ErrorIs(t, err, models.ErrResolutionFailed)
			assert.ErrorIs(t, err, models.ErrNoPlayableURL)
			assert.Len(t, b.extractCalls, 4)
		})
	}
}

func TestResolveExhaustionCarriesLastCause(t *testing.T) {
	last := errors.New("ERROR: [youtube] abc123: Sign in to confirm you're not a bot")
	b := &stubBackend{extract: func(call int, _ extractor.Request) (*extractor.MediaInfo, error) {
		if call == 4 {
			return nil, models.NewBackendError(last)
		}
		return nil, fmt.Errorf("attempt %d", call)
	}}

	_, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
	require.ErrorIs(t, err, models.ErrResolutionFailed)
	assert.ErrorIs(t, err, last)
	assert.ErrorIs(t, err, models.ErrBackend)
	assert.Equal(t, last.Error(), err.Error())
	assert.Equal(t, models.KindResolutionFailed, models.KindOf(err))
}

func TestResolveHeaderDefaults(t *testing.T) {
	t.Run("backend omits all", func(t *testing.T) {
		b := &stubBackend{extract: func(int, extractor.Request) (*extractor.MediaInfo, error) {
			return &extractor.MediaInfo{URL: "https://cdn.example/a"}, nil
		}}

		audio, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
		require.NoError(t, err)
		assert.Equal(t, models.HeaderBag{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.youtube.com/",
			"Origin":          "https://www.youtube.com",
		}, audio.Headers)
	})

	t.Run("backend supplies user agent", func(t *testing.T) {
		b := &stubBackend{extract: func(int, extractor.Request) (*extractor.MediaInfo, error) {
			return &extractor.MediaInfo{
				URL: "https://cdn.example/a",
				HTTPHeaders: map[string]string{
					"user-agent":     "com.google.android.youtube/19.09",
					"Sec-Fetch-Mode": "navigate",
					"Accept":         "  ",
				},
			}, nil
		}}

		audio, err := newTestResolver(b).Resolve(context.Background(), "abc123", nil)
		require.NoError(t, err)
		assert.Equal(t, "com.google.android.youtube/19.09", audio.Headers.Get("User-Agent"))
		assert.Equal(t, "navigate", audio.Headers["Sec-Fetch-Mode"])
		assert.Equal(t, "*/*", audio.Headers["Accept"], "blank backend values are defaulted")
		assert.Len(t, audio.Headers, 6)
		for k, v := range audio.Headers {
			assert.NotEmpty(t, strings.TrimSpace(k))
			assert.NotEmpty(t, strings.TrimSpace(v))
		}
	})
}
