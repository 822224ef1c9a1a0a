package media

import (
	"context"
	"sync"

	"hongeet.dev/backend/internal/extractor"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/internal/worker"
)

// stubBackend records every request and answers from the configured funcs.
type stubBackend struct {
	mu sync.Mutex

	extract func(call int, req extractor.Request) (*extractor.MediaInfo, error)
	dump    func(req extractor.Request) (*extractor.Document, error)

	extractCalls []extractor.Request
	dumpCalls    []extractor.Request
}

func (b *stubBackend) Extract(_ context.Context, req extractor.Request) (*extractor.MediaInfo, error) {
	b.mu.Lock()
	b.extractCalls = append(b.extractCalls, req)
	n := len(b.extractCalls)
	b.mu.Unlock()
	return b.extract(n, req)
}

func (b *stubBackend) Dump(_ context.Context, req extractor.Request) (*extractor.Document, error) {
	b.mu.Lock()
	b.dumpCalls = append(b.dumpCalls, req)
	b.mu.Unlock()
	return b.dump(req)
}

func dur(seconds float64) *float64 { return &seconds }

func entry(id, title, uploader string, seconds float64) *extractor.MediaInfo {
	e := &extractor.MediaInfo{ID: id, Title: title, Uploader: uploader}
	if seconds >= 0 {
		e.Duration = dur(seconds)
	}
	return e
}

func newTestService(b *stubBackend) *Service {
	logger := utils.NewNopLogger()
	pool := worker.New(worker.Options{Name: "test", Size: 2}, nil, logger)
	return NewService(ServiceOptions{Backend: b, Pool: pool}, logger)
}
