// Package download saves resolved audio streams to local storage.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/internal/worker"
)

const (
	bufferSize          = 256 << 10
	defaultProgressStep = 2
	fileExtension       = ".m4a"
	partSuffix          = ".part"
)

type queuedHookKey struct{}

// WithQueuedHook returns a context that makes Start and Enqueue call fn with
// the new task before it is handed to the pool, so a caller can subscribe to
// its updates without missing any.
func WithQueuedHook(ctx context.Context, fn func(models.DownloadTask)) context.Context {
	return context.WithValue(ctx, queuedHookKey{}, fn)
}

// QueuedHook returns the hook set by WithQueuedHook, or nil.
func QueuedHook(ctx context.Context) func(models.DownloadTask) {
	fn, _ := ctx.Value(queuedHookKey{}).(func(models.DownloadTask))
	return fn
}

// Resolver turns an identifier into a playable stream.
type Resolver interface {
	ExtractAudio(ctx context.Context, videoID string, authHeaders map[string]string) (*models.ResolvedAudio, error)
}

// Options configures the download service.
type Options struct {
	// Dir is where finished files are written.
	Dir string

	// ProgressStep is the minimum progress advance, in percent, between updates.
	ProgressStep int

	// ResponseTimeout bounds the wait for upstream response headers.
	ResponseTimeout time.Duration
}

type entry struct {
	task models.DownloadTask
	done chan struct{}
}

// Service runs download tasks on a bounded pool and tracks their state.
type Service struct {
	dir      string
	step     int
	client   *http.Client
	resolver Resolver
	pool     *worker.Pool
	metrics  *system.MetricsService
	logger   *utils.Logger

	mu        sync.RWMutex
	tasks     map[string]*entry
	order     []string
	listeners []func(models.DownloadTask)
}

// NewService creates the download directory if needed and returns a service.
func NewService(opts Options, resolver Resolver, pool *worker.Pool, metrics *system.MetricsService, logger *utils.Logger) (*Service, error) {
	if opts.Dir == "" {
		return nil, errors.New("download directory is not configured")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = defaultProgressStep
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: 10 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = opts.ResponseTimeout

	return &Service{
		dir:      opts.Dir,
		step:     opts.ProgressStep,
		client:   &http.Client{Transport: transport},
		resolver: resolver,
		pool:     pool,
		metrics:  metrics,
		logger:   logger.Named("download_service"),
		tasks:    make(map[string]*entry),
	}, nil
}

// Dir returns the download directory.
func (s *Service) Dir() string {
	return s.dir
}

// OnUpdate registers fn to receive a snapshot after every state or progress change.
func (s *Service) OnUpdate(fn func(models.DownloadTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start resolves videoID and queues a download of the result.
func (s *Service) Start(ctx context.Context, req models.DownloadRequest) (*models.DownloadTask, error) {
	id := strings.TrimSpace(req.VideoID)
	if id == "" {
		return nil, models.NewMissingInputError("videoId")
	}
	if s.resolver == nil {
		return nil, models.NewInternalError(nil, "download resolver is not configured")
	}

	audio, err := s.resolver.ExtractAudio(ctx, id, req.AuthHeaders)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimPrefix(id, models.SourceYouTube+":")
	}
	return s.Enqueue(ctx, title, audio)
}

// Enqueue queues a transfer of audio to <dir>/<sanitized title>.m4a. While
// another unfinished task targets the same file, " (n)" is appended to the name.
func (s *Service) Enqueue(ctx context.Context, title string, audio *models.ResolvedAudio) (*models.DownloadTask, error) {
	if audio == nil || audio.URL == "" {
		return nil, models.NewNoPlayableURLError()
	}

	name := utils.SanitizeFilename(title)
	if name == "" {
		name = "audio"
	}

	now := time.Now()
	e := &entry{
		task: models.DownloadTask{
			ID:        uuid.NewString(),
			Title:     name,
			Status:    models.DownloadQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: make(chan struct{}),
	}

	s.mu.Lock()
	e.task.Path = s.reservePath(name)
	s.tasks[e.task.ID] = e
	s.order = append(s.order, e.task.ID)
	snapshot := e.task
	s.mu.Unlock()

	if hook := QueuedHook(ctx); hook != nil {
		hook(snapshot)
	}
	s.notify(snapshot)
	s.logger.Info("Download queued", "id", snapshot.ID, "path", snapshot.Path)

	headers := audio.Headers.Clone()
	url := audio.URL
	// the task outlives the request that queued it
	s.pool.Go(context.WithoutCancel(ctx), func(ctx context.Context) {
		s.run(ctx, snapshot.ID, snapshot.Path, url, headers)
	})

	return &snapshot, nil
}

// reservePath picks a target no unfinished task is writing to. Callers hold s.mu.
func (s *Service) reservePath(name string) string {
	inUse := make(map[string]bool)
	for _, e := range s.tasks {
		if !e.task.Status.Terminal() {
			inUse[e.task.Path] = true
		}
	}

	path := filepath.Join(s.dir, name+fileExtension)
	for n := 2; inUse[path]; n++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s (%d)%s", name, n, fileExtension))
	}
	return path
}

// Get returns a snapshot of the task.
func (s *Service) Get(id string) (models.DownloadTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tasks[id]
	if !ok {
		return models.DownloadTask{}, models.NewNotFoundError("download")
	}
	return e.task, nil
}

// List returns snapshots of all tasks in creation order.
func (s *Service) List() []models.DownloadTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DownloadTask, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].task)
	}
	return out
}

// Wait blocks until the task reaches a terminal status or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (models.DownloadTask, error) {
	s.mu.RLock()
	e, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return models.DownloadTask{}, models.NewNotFoundError("download")
	}

	select {
	case <-e.done:
		return s.Get(id)
	case <-ctx.Done():
		return models.DownloadTask{}, ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, id, path, url string, headers models.HeaderBag) {
	s.update(id, func(t *models.DownloadTask) {
		t.Status = models.DownloadRunning
	})

	err := s.transfer(ctx, id, path, url, headers)

	status := models.DownloadCompleted
	if err != nil {
		status = models.DownloadFailed
		s.logger.Error("Download failed", err, "id", id, "path", path)
	} else {
		s.logger.Info("Download completed", "id", id, "path", path)
	}
	s.metrics.IncDownload(string(status))

	s.update(id, func(t *models.DownloadTask) {
		t.Status = status
		if err != nil {
			t.Error = err.Error()
			return
		}
		t.Progress = 100
	})

	s.mu.RLock()
	close(s.tasks[id].done)
	s.mu.RUnlock()
}

func (s *Service) transfer(ctx context.Context, id, path, url string, headers models.HeaderBag) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid download url: %w", err)
	}
	for _, key := range headers.Keys() {
		req.Header.Set(key, headers[key])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	total := resp.ContentLength
	if total > 0 {
		s.update(id, func(t *models.DownloadTask) { t.Total = total })
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+partSuffix)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	part := f.Name()
	// CreateTemp uses 0600
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		_ = os.Remove(part)
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := s.copy(f, resp.Body, id, total)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return err
	}
	if total > 0 && written < total {
		_ = os.Remove(part)
		return fmt.Errorf("short download: %d of %d bytes", written, total)
	}

	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return err
	}
	return nil
}

// copy streams src into dst and reports progress each time it advances by the
// configured step.
func (s *Service) copy(dst io.Writer, src io.Reader, id string, total int64) (int64, error) {
	buf := make([]byte, bufferSize)
	var written int64
	last := 0

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("failed to write file: %w", err)
			}
			written += int64(n)
			s.metrics.AddDownloadBytes(int64(n))

			if total > 0 {
				progress := int(written * 100 / total)
				if progress >= last+s.step || progress >= 100 {
					last = progress
					bytes := written
					s.update(id, func(t *models.DownloadTask) {
						t.Progress = min(progress, 100)
						t.Bytes = bytes
					})
				}
			}
		}
		if readErr == io.EOF {
			s.update(id, func(t *models.DownloadTask) { t.Bytes = written })
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (s *Service) update(id string, fn func(*models.DownloadTask)) {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(&e.task)
	e.task.UpdatedAt = time.Now()
	snapshot := e.task
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Service) notify(task models.DownloadTask) {
	s.mu.RLock()
	listeners := append([]func(models.DownloadTask){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(task)
	}
}
