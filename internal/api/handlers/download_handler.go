package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

// DownloadService queues and tracks file transfers.
type DownloadService interface {
	Start(ctx context.Context, req models.DownloadRequest) (*models.DownloadTask, error)
	Get(id string) (models.DownloadTask, error)
	List() []models.DownloadTask
}

// DownloadHandler handles HTTP requests related to downloads.
type DownloadHandler struct {
	downloads DownloadService
	logger    *utils.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(downloads DownloadService, logger *utils.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloads: downloads,
		logger:    logger.Named("download_handler"),
	}
}

// Start resolves a track and queues its download.
func (h *DownloadHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, models.CodeInvalidRequest, err)
		return
	}
	if err := utils.Validate(req); err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}

	task, err := h.downloads.Start(r.Context(), req)
	if err != nil {
		utils.RespondWithError(w, models.OpDownload.Code(err), err)
		return
	}

	h.logger.Info("Download started", "id", task.ID, "videoId", req.VideoID)
	utils.RespondWithData(w, http.StatusAccepted, task)
}

// List returns every known task.
func (h *DownloadHandler) List(w http.ResponseWriter, _ *http.Request) {
	utils.RespondWithData(w, http.StatusOK, h.downloads.List())
}

// Get returns one task.
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.downloads.Get(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, models.OpDownload.Code(err), err)
		return
	}
	utils.RespondWithData(w, http.StatusOK, task)
}
