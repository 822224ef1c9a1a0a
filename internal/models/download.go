package models

import "time"

// DownloadStatus is the lifecycle state of a download task.
type DownloadStatus string

const (
	DownloadQueued    DownloadStatus = "queued"
	DownloadRunning   DownloadStatus = "running"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// Terminal reports whether the status is final.
func (s DownloadStatus) Terminal() bool {
	return s == DownloadCompleted || s == DownloadFailed
}

// DownloadTask is a snapshot of one file transfer.
type DownloadTask struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Path      string         `json:"path"`
	Status    DownloadStatus `json:"status"`
	Progress  int            `json:"progress"`
	Bytes     int64          `json:"bytes"`
	Total     int64          `json:"total,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// DownloadRequest asks the service to resolve and save one track.
type DownloadRequest struct {
	VideoID     string         `json:"videoId"`
	Title       string         `json:"title" validate:"max=200"`
	AuthHeaders LooseStringMap `json:"authHeaders,omitempty"`
}

// DownloadStatusRequest looks up a task by id.
type DownloadStatusRequest struct {
	ID string `json:"id" validate:"required"`
}
