// Package rpc exposes the media and download services over JSON-RPC 2.0,
// on plain HTTP POST and on WebSocket connections.
package rpc

// RPC method constants
const (
	// Media methods
	MethodMediaExtractAudio    = "media.extractAudio"
	MethodMediaExtractAudioURL = "media.extractAudioUrl"
	MethodMediaSearch          = "media.search"
	MethodMediaRelated         = "media.related"

	// Saavn methods
	MethodSaavnSearch = "saavn.search"

	// Download methods
	MethodDownloadStart  = "download.start"
	MethodDownloadStatus = "download.status"
	MethodDownloadList   = "download.list"
)

// RPC event constants, sent as notifications over WebSocket.
const (
	// EventDownloadProgress carries a DownloadTask snapshot to the connection that started it.
	EventDownloadProgress = "download.progress"
)

// Application error codes, in the implementation-defined server error range.
const (
	// ErrCodeOperationFailed is reported for every failed operation not covered below.
	ErrCodeOperationFailed = -32000

	// ErrCodeRateLimited is reported when the caller exceeded its rate limit.
	ErrCodeRateLimited = -32003

	// ErrCodeUnavailable is reported when the server is saturated or a feature is disabled.
	ErrCodeUnavailable = -32004
)
