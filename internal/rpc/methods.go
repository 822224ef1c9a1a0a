package rpc

import (
	"context"
	"encoding/json"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/download"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/jsonrpc"
)

// MediaAPI is the media surface exposed over RPC.
type MediaAPI interface {
	ExtractAudio(ctx context.Context, videoID string, authHeaders map[string]string) (*models.ResolvedAudio, error)
	ExtractAudioURL(ctx context.Context, videoID string, authHeaders map[string]string) (string, error)
	Search(ctx context.Context, query string, take int) ([]models.Track, error)
	Related(ctx context.Context, videoID string, take int) ([]models.Track, error)
	SaavnSearch(ctx context.Context, query string) (json.RawMessage, error)
}

// DownloadAPI is the download surface exposed over RPC. Start must call the
// download.QueuedHook found in ctx before the task can make progress.
type DownloadAPI interface {
	Start(ctx context.Context, req models.DownloadRequest) (*models.DownloadTask, error)
	Get(id string) (models.DownloadTask, error)
	List() []models.DownloadTask
}

// Defaults are applied when a request omits take.
type Defaults struct {
	SearchTake  int
	RelatedTake int
}

// subscriber receives notifications for a topic; implemented by WebSocket clients.
type subscriber interface {
	Subscribe(topic string)
}

type subscriberKey struct{}

func withSubscriber(ctx context.Context, s subscriber) context.Context {
	return context.WithValue(ctx, subscriberKey{}, s)
}

// Methods binds the services to JSON-RPC method names.
type Methods struct {
	media     MediaAPI
	downloads DownloadAPI
	defaults  Defaults
}

// NewMethods creates the method table. downloads may be nil when downloads are disabled.
func NewMethods(media MediaAPI, downloads DownloadAPI, defaults Defaults) *Methods {
	return &Methods{media: media, downloads: downloads, defaults: defaults}
}

// Register adds every method to s.
func (m *Methods) Register(s *jsonrpc.Server) {
	jsonrpc.Register(s, MethodMediaExtractAudio, m.extractAudio)
	jsonrpc.Register(s, MethodMediaExtractAudioURL, m.extractAudioURL)
	jsonrpc.Register(s, MethodMediaSearch, m.search)
	jsonrpc.Register(s, MethodMediaRelated, m.related)
	jsonrpc.Register(s, MethodSaavnSearch, m.saavnSearch)

	if m.downloads != nil {
		jsonrpc.Register(s, MethodDownloadStart, m.downloadStart)
		jsonrpc.Register(s, MethodDownloadStatus, m.downloadStatus)
		jsonrpc.Register(s, MethodDownloadList, m.downloadList)
	}
}

func (m *Methods) extractAudio(ctx context.Context, p models.ExtractRequest) (*models.ResolvedAudio, error) {
	audio, err := m.media.ExtractAudio(ctx, p.VideoID, p.AuthHeaders)
	if err != nil {
		return nil, failed(models.OpExtractAudio, err)
	}
	return audio, nil
}

func (m *Methods) extractAudioURL(ctx context.Context, p models.ExtractRequest) (*models.ExtractURLResponse, error) {
	url, err := m.media.ExtractAudioURL(ctx, p.VideoID, p.AuthHeaders)
	if err != nil {
		return nil, failed(models.OpExtractAudioURL, err)
	}
	return &models.ExtractURLResponse{URL: url}, nil
}

func (m *Methods) search(ctx context.Context, p models.SearchRequest) ([]models.Track, error) {
	tracks, err := m.media.Search(ctx, p.Query, models.TakeOrDefault(p.Take, m.defaults.SearchTake))
	if err != nil {
		return nil, failed(models.OpSearch, err)
	}
	return tracks, nil
}

func (m *Methods) related(ctx context.Context, p models.RelatedRequest) ([]models.Track, error) {
	tracks, err := m.media.Related(ctx, p.VideoID, models.TakeOrDefault(p.Take, m.defaults.RelatedTake))
	if err != nil {
		return nil, failed(models.OpRelated, err)
	}
	return tracks, nil
}

func (m *Methods) saavnSearch(ctx context.Context, p models.SaavnSearchRequest) (json.RawMessage, error) {
	if err := utils.Validate(p); err != nil {
		return nil, failed(models.OpSaavnSearch, models.NewValidationError(err, "invalid params: query is too long"))
	}
	body, err := m.media.SaavnSearch(ctx, p.Query)
	if err != nil {
		return nil, failed(models.OpSaavnSearch, err)
	}
	return body, nil
}

func (m *Methods) downloadStart(ctx context.Context, p models.DownloadRequest) (*models.DownloadTask, error) {
	if err := utils.Validate(p); err != nil {
		return nil, failed(models.OpDownload, models.NewValidationError(err, "invalid params: title is too long"))
	}
	// subscribe before the task runs so a fast failure still reaches the caller
	if sub, ok := ctx.Value(subscriberKey{}).(subscriber); ok {
		ctx = download.WithQueuedHook(ctx, func(task models.DownloadTask) {
			sub.Subscribe(task.ID)
		})
	}
	task, err := m.downloads.Start(ctx, p)
	if err != nil {
		return nil, failed(models.OpDownload, err)
	}
	return task, nil
}

func (m *Methods) downloadStatus(_ context.Context, p models.DownloadStatusRequest) (*models.DownloadTask, error) {
	if err := utils.Validate(p); err != nil {
		return nil, failed(models.OpDownload, models.NewValidationError(err, "invalid params: id is required"))
	}
	task, err := m.downloads.Get(p.ID)
	if err != nil {
		return nil, failed(models.OpDownload, err)
	}
	return &task, nil
}

func (m *Methods) downloadList(context.Context, struct{}) ([]models.DownloadTask, error) {
	return m.downloads.List(), nil
}
