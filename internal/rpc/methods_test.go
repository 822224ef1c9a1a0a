package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/download"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/jsonrpc"
)

type fakeMedia struct {
	lastTake int
}

func (f *fakeMedia) ExtractAudio(_ context.Context, videoID string, headers map[string]string) (*models.ResolvedAudio, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, models.NewMissingInputError("videoId")
	}
	if videoID == "broken" {
		return nil, models.NewResolutionFailedError(errors.New("Video unavailable"))
	}
	return &models.ResolvedAudio{URL: "https://cdn.example/" + videoID, Headers: models.HeaderBag(headers)}, nil
}

func (f *fakeMedia) ExtractAudioURL(ctx context.Context, videoID string, headers map[string]string) (string, error) {
	audio, err := f.ExtractAudio(ctx, videoID, headers)
	if err != nil {
		return "", err
	}
	return audio.URL, nil
}

func (f *fakeMedia) Search(_ context.Context, query string, take int) ([]models.Track, error) {
	f.lastTake = take
	if strings.TrimSpace(query) == "" {
		return nil, models.NewMissingInputError("query")
	}
	return []models.Track{{ID: "yt:abc", Name: query}}, nil
}

func (f *fakeMedia) Related(_ context.Context, videoID string, take int) ([]models.Track, error) {
	f.lastTake = take
	return []models.Track{{ID: "yt:" + videoID + "-next"}}, nil
}

func (f *fakeMedia) SaavnSearch(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"success":true}`), nil
}

type fakeDownloads struct {
	tasks map[string]models.DownloadTask

	// run, when set, plays the task's updates before Start returns.
	run func(task models.DownloadTask)
}

func (f *fakeDownloads) Start(ctx context.Context, req models.DownloadRequest) (*models.DownloadTask, error) {
	if req.VideoID == "" {
		return nil, models.NewMissingInputError("videoId")
	}
	task := models.DownloadTask{ID: "task-" + req.VideoID, Title: req.Title, Status: models.DownloadQueued}
	f.tasks[task.ID] = task
	if hook := download.QueuedHook(ctx); hook != nil {
		hook(task)
	}
	if f.run != nil {
		f.run(task)
	}
	return &task, nil
}

func (f *fakeDownloads) Get(id string) (models.DownloadTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return models.DownloadTask{}, models.NewNotFoundError("download")
	}
	return task, nil
}

func (f *fakeDownloads) List() []models.DownloadTask {
	out := make([]models.DownloadTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out
}

func newTestServer(media *fakeMedia, downloads DownloadAPI) *Server {
	methods := NewMethods(media, downloads, Defaults{SearchTake: 30, RelatedTake: 10})
	return NewServer(methods, Options{}, nil, utils.NewNopLogger())
}

func call(t *testing.T, s *Server, body string) jsonrpc.Response {
	t.Helper()
	out := s.rpc.Handle(context.Background(), []byte(body))
	require.NotNil(t, out)
	var res jsonrpc.Response
	require.NoError(t, json.Unmarshal(out, &res))
	return res
}

func TestMethodsDispatch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantResult string
		wantRPC    int
		wantCode   string
		wantKind   string
	}{
		{
			name:       "extract audio",
			body:       `{"jsonrpc":"2.0","method":"media.extractAudio","params":{"videoId":"abc","authHeaders":{"Cookie":"a=1"}},"id":1}`,
			wantResult: `{"url":"https://cdn.example/abc","headers":{"Cookie":"a=1"}}`,
		},
		{
			name:       "extract url",
			body:       `{"jsonrpc":"2.0","method":"media.extractAudioUrl","params":{"videoId":"abc"},"id":1}`,
			wantResult: `{"url":"https://cdn.example/abc"}`,
		},
		{
			name:     "extract missing id",
			body:     `{"jsonrpc":"2.0","method":"media.extractAudio","params":{"videoId":"  "},"id":1}`,
			wantRPC:  jsonrpc.ErrInvalidParams,
			wantCode: models.CodeMissingVideoID,
			wantKind: models.KindMissingInput,
		},
		{
			name:     "extract failure",
			body:     `{"jsonrpc":"2.0","method":"media.extractAudioUrl","params":{"videoId":"broken"},"id":1}`,
			wantRPC:  ErrCodeOperationFailed,
			wantCode: models.CodeExtractFailed,
			wantKind: models.KindResolutionFailed,
		},
		{
			name:     "search missing query",
			body:     `{"jsonrpc":"2.0","method":"media.search","params":{},"id":1}`,
			wantRPC:  jsonrpc.ErrInvalidParams,
			wantCode: models.CodeMissingQuery,
			wantKind: models.KindMissingInput,
		},
		{
			name:       "saavn passthrough",
			body:       `{"jsonrpc":"2.0","method":"saavn.search","params":{"query":"arijit"},"id":1}`,
			wantResult: `{"success":true}`,
		},
		{
			name:     "saavn query too long",
			body:     `{"jsonrpc":"2.0","method":"saavn.search","params":{"query":"` + strings.Repeat("a", 301) + `"},"id":1}`,
			wantRPC:  jsonrpc.ErrInvalidParams,
			wantCode: models.CodeInvalidRequest,
			wantKind: models.KindInvalidInput,
		},
		{
			name:     "status without id",
			body:     `{"jsonrpc":"2.0","method":"download.status","params":{},"id":1}`,
			wantRPC:  jsonrpc.ErrInvalidParams,
			wantCode: models.CodeInvalidRequest,
			wantKind: models.KindInvalidInput,
		},
		{
			name:     "status of unknown task",
			body:     `{"jsonrpc":"2.0","method":"download.status","params":{"id":"nope"},"id":1}`,
			wantRPC:  ErrCodeOperationFailed,
			wantCode: models.CodeNotFound,
			wantKind: models.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeMedia{}, &fakeDownloads{tasks: map[string]models.DownloadTask{}})
			res := call(t, s, tt.body)

			if tt.wantRPC == 0 {
				require.Nil(t, res.Error)
				assert.JSONEq(t, tt.wantResult, string(res.Result))
				return
			}

			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantRPC, res.Error.Code)
			var data ErrorData
			require.NoError(t, json.Unmarshal(res.Error.Data, &data))
			assert.Equal(t, tt.wantCode, data.Code)
			assert.Equal(t, tt.wantKind, data.Kind)
		})
	}
}

func TestMethodsTakeDefaults(t *testing.T) {
	media := &fakeMedia{}
	s := newTestServer(media, nil)

	call(t, s, `{"jsonrpc":"2.0","method":"media.search","params":{"query":"x"},"id":1}`)
	assert.Equal(t, 30, media.lastTake)

	call(t, s, `{"jsonrpc":"2.0","method":"media.search","params":{"query":"x","take":0},"id":1}`)
	assert.Equal(t, 0, media.lastTake)

	call(t, s, `{"jsonrpc":"2.0","method":"media.related","params":{"videoId":"abc"},"id":1}`)
	assert.Equal(t, 10, media.lastTake)

	call(t, s, `{"jsonrpc":"2.0","method":"media.related","params":{"videoId":"abc","take":5},"id":1}`)
	assert.Equal(t, 5, media.lastTake)
}

func TestMethodsWithoutDownloads(t *testing.T) {
	s := newTestServer(&fakeMedia{}, nil)

	assert.NotContains(t, s.Methods(), MethodDownloadStart)
	res := call(t, s, `{"jsonrpc":"2.0","method":"download.start","params":{"videoId":"abc"},"id":1}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrMethodNotFound, res.Error.Code)
}

func TestMethodsDownloadLifecycle(t *testing.T) {
	s := newTestServer(&fakeMedia{}, &fakeDownloads{tasks: map[string]models.DownloadTask{}})

	res := call(t, s, `{"jsonrpc":"2.0","method":"download.start","params":{"videoId":"abc","title":"Song"},"id":1}`)
	require.Nil(t, res.Error)
	var task models.DownloadTask
	require.NoError(t, res.UnmarshalResult(&task))
	assert.Equal(t, "task-abc", task.ID)
	assert.Equal(t, models.DownloadQueued, task.Status)

	res = call(t, s, `{"jsonrpc":"2.0","method":"download.status","params":{"id":"task-abc"},"id":2}`)
	require.Nil(t, res.Error)

	res = call(t, s, `{"jsonrpc":"2.0","method":"download.list","id":3}`)
	require.Nil(t, res.Error)
	var tasks []models.DownloadTask
	require.NoError(t, res.UnmarshalResult(&tasks))
	assert.Len(t, tasks, 1)

	res = call(t, s, `{"jsonrpc":"2.0","method":"download.start","params":{"videoId":"abc","title":"`+strings.Repeat("t", 201)+`"},"id":4}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, jsonrpc.ErrInvalidParams, res.Error.Code)
}

func TestToError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantRPC  int
		wantCode string
	}{
		{"protocol error passes through", jsonrpc.NewError(jsonrpc.ErrInvalidParams, "bad", nil), jsonrpc.ErrInvalidParams, ""},
		{"rate limited", failed(models.OpSearch, models.NewDomainError(models.ErrTooManyRequests, nil, "slow down", 429, "system")), ErrCodeRateLimited, models.CodeRateLimited},
		{"unavailable", failed(models.OpSearch, models.NewDomainError(models.ErrServiceUnavailable, nil, "busy", 503, "system")), ErrCodeUnavailable, models.CodeSearchFailed},
		{"disabled", failed(models.OpSaavnSearch, models.NewDomainError(models.ErrFeatureDisabled, nil, "off", 503, "system")), ErrCodeUnavailable, models.CodeDisabled},
		{"bare validation", models.NewValidationError(nil, "bad"), jsonrpc.ErrInvalidParams, models.CodeInvalidRequest},
		{"bare internal", errors.New("boom"), ErrCodeOperationFailed, models.CodeInternal},
		{"internal", models.NewInternalError(nil, ""), jsonrpc.ErrInternalError, models.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpcErr := ToError(tt.err)
			assert.Equal(t, tt.wantRPC, rpcErr.Code)
			if tt.wantCode == "" {
				return
			}
			var data ErrorData
			require.NoError(t, json.Unmarshal(rpcErr.Data, &data))
			assert.Equal(t, tt.wantCode, data.Code)
		})
	}

	assert.Nil(t, failed(models.OpSearch, nil))
}
