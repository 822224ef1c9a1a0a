package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/internal/worker"
)

type stubResolver struct {
	audio *models.ResolvedAudio
	err   error
	calls []string
}

func (r *stubResolver) ExtractAudio(_ context.Context, videoID string, _ map[string]string) (*models.ResolvedAudio, error) {
	r.calls = append(r.calls, videoID)
	return r.audio, r.err
}

func newTestService(t *testing.T, resolver Resolver) *Service {
	t.Helper()
	logger := utils.NewNopLogger()
	pool := worker.New(worker.Options{Name: "downloads", Size: 2}, nil, logger)
	svc, err := NewService(Options{Dir: t.TempDir()}, resolver, pool, nil, logger)
	require.NoError(t, err)
	return svc
}

func waitFor(t *testing.T, svc *Service, id string) models.DownloadTask {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	return task
}

func assertNoPartFiles(t *testing.T, dir string) {
	t.Helper()
	parts, err := filepath.Glob(filepath.Join(dir, "*"+partSuffix))
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestEnqueueDownloadsFile(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 1<<20)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	svc := newTestService(t, nil)

	var mu sync.Mutex
	var progress []int
	svc.OnUpdate(func(task models.DownloadTask) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, task.Progress)
	})

	task, err := svc.Enqueue(context.Background(), `AC/DC: "Thunderstruck"`, &models.ResolvedAudio{
		URL:     srv.URL,
		Headers: models.HeaderBag{"User-Agent": "test-agent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "AC_DC_ _Thunderstruck_", task.Title)
	assert.Equal(t, filepath.Join(svc.Dir(), "AC_DC_ _Thunderstruck_.m4a"), task.Path)

	done := waitFor(t, svc, task.ID)
	assert.Equal(t, models.DownloadCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, int64(len(payload)), done.Bytes)
	assert.Equal(t, "test-agent", gotUA)

	data, err := os.ReadFile(task.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assertNoPartFiles(t, svc.Dir())

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	// throttled to one update per 2% plus the lifecycle transitions
	assert.LessOrEqual(t, len(progress), 56)
}

func TestEnqueueUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	svc := newTestService(t, nil)
	task, err := svc.Enqueue(context.Background(), "", &models.ResolvedAudio{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "audio", task.Title)

	done := waitFor(t, svc, task.ID)
	assert.Equal(t, models.DownloadFailed, done.Status)
	assert.Equal(t, "HTTP 403", done.Error)
	assert.NoFileExists(t, task.Path)
	assertNoPartFiles(t, svc.Dir())
}

func TestEnqueueSameTitleConcurrently(t *testing.T) {
	release := make(chan struct{})
	upstream := func(fill byte) *httptest.Server {
		payload := bytes.Repeat([]byte{fill}, 1<<20)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write(payload)
		}))
		t.Cleanup(srv.Close)
		return srv
	}
	srvA, srvB := upstream('a'), upstream('b')

	svc := newTestService(t, nil)
	first, err := svc.Enqueue(context.Background(), "Same", &models.ResolvedAudio{URL: srvA.URL})
	require.NoError(t, err)
	second, err := svc.Enqueue(context.Background(), "Same", &models.ResolvedAudio{URL: srvB.URL})
	require.NoError(t, err)
	close(release)

	assert.Equal(t, filepath.Join(svc.Dir(), "Same.m4a"), first.Path)
	assert.Equal(t, filepath.Join(svc.Dir(), "Same (2).m4a"), second.Path)

	for _, tt := range []struct {
		task *models.DownloadTask
		fill byte
	}{{first, 'a'}, {second, 'b'}} {
		done := waitFor(t, svc, tt.task.ID)
		require.Equal(t, models.DownloadCompleted, done.Status, done.Error)

		data, err := os.ReadFile(tt.task.Path)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{tt.fill}, 1<<20), data)
	}
	assertNoPartFiles(t, svc.Dir())

	// a finished task no longer holds its name
	third, err := svc.Enqueue(context.Background(), "Same", &models.ResolvedAudio{URL: srvA.URL})
	require.NoError(t, err)
	assert.Equal(t, first.Path, third.Path)
	waitFor(t, svc, third.ID)
}

func TestEnqueueQueuedHookRunsFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	svc := newTestService(t, nil)

	var mu sync.Mutex
	var events []string
	record := func(event string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	}
	svc.OnUpdate(func(task models.DownloadTask) { record(string(task.Status)) })

	var hooked models.DownloadTask
	ctx := WithQueuedHook(context.Background(), func(task models.DownloadTask) {
		hooked = task
		record("hook")
	})
	task, err := svc.Enqueue(ctx, "fast", &models.ResolvedAudio{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, task.ID, hooked.ID)

	done := waitFor(t, svc, task.ID)
	assert.Equal(t, models.DownloadFailed, done.Status)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, "hook", events[0])
	assert.Equal(t, string(models.DownloadFailed), events[len(events)-1])
}

func TestQueuedHookAbsent(t *testing.T) {
	assert.Nil(t, QueuedHook(context.Background()))
}

func TestEnqueueRejectsMissingURL(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Enqueue(context.Background(), "x", &models.ResolvedAudio{})
	assert.ErrorIs(t, err, models.ErrNoPlayableURL)
	assert.Empty(t, svc.List())
}

func TestStartResolvesThenQueues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	resolver := &stubResolver{audio: &models.ResolvedAudio{URL: srv.URL}}
	svc := newTestService(t, resolver)

	task, err := svc.Start(context.Background(), models.DownloadRequest{VideoID: " yt:abc123 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"yt:abc123"}, resolver.calls)
	assert.Equal(t, "abc123", task.Title)

	done := waitFor(t, svc, task.ID)
	assert.Equal(t, models.DownloadCompleted, done.Status)

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)
}

func TestStartErrors(t *testing.T) {
	resolver := &stubResolver{err: models.NewResolutionFailedError(nil)}
	svc := newTestService(t, resolver)

	_, err := svc.Start(context.Background(), models.DownloadRequest{VideoID: "  "})
	assert.ErrorIs(t, err, models.ErrMissingRequiredField)
	assert.Empty(t, resolver.calls)

	_, err = svc.Start(context.Background(), models.DownloadRequest{VideoID: "abc123"})
	assert.ErrorIs(t, err, models.ErrResolutionFailed)
	assert.Equal(t, models.CodeDownloadFailed, models.OpDownload.Code(err))
}

func TestGetAndWaitUnknown(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestNewServiceRequiresDir(t *testing.T) {
	_, err := NewService(Options{}, nil, nil, nil, utils.NewNopLogger())
	assert.Error(t, err)
}
