// Package extractor defines the contract with the extraction backend and the
// yt-dlp process adapter that implements it.
package extractor

import (
	"context"
	"time"

	"hongeet.dev/backend/internal/models"
)

// Request is the option set passed to the backend for one invocation.
type Request struct {
	// URL is the watch, search or expansion URL.
	URL string

	FormatSelector string
	ExtractorArgs  string
	Headers        models.HeaderBag

	NoPlaylist       bool
	NoWarnings       bool
	GeoBypass        bool
	SocketTimeout    time.Duration
	Retries          int
	ExtractorRetries int

	// FlatPlaylist and PlaylistEnd apply to search and related expansions.
	FlatPlaylist bool
	PlaylistEnd  int

	// DumpSingleJSON asks for the whole result as one document with an entries list.
	DumpSingleJSON bool
}

// MediaInfo is a resolved media descriptor, or one flattened playlist entry.
type MediaInfo struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Uploader    string            `json:"uploader"`
	Channel     string            `json:"channel"`
	Duration    *float64          `json:"duration"`
	URL         string            `json:"url"`
	HTTPHeaders map[string]string `json:"http_headers"`
}

// DurationSeconds returns the duration truncated to whole seconds, or -1 when absent.
func (m *MediaInfo) DurationSeconds() int {
	if m == nil || m.Duration == nil {
		return -1
	}
	return int(*m.Duration)
}

// Document is a single-document dump. Entries is nil when the backend reported none.
type Document struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []*MediaInfo `json:"entries"`
}

// Backend is an extraction backend. Implementations must be safe for concurrent use.
type Backend interface {
	// Extract resolves a single media descriptor.
	Extract(ctx context.Context, req Request) (*MediaInfo, error)

	// Dump returns a single JSON document with an entries list.
	Dump(ctx context.Context, req Request) (*Document, error)
}
