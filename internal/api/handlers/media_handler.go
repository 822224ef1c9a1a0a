// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/services/media"
	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/mediaproxy"
)

// MediaService is the media surface the handlers dispatch to.
type MediaService interface {
	ExtractAudio(ctx context.Context, videoID string, authHeaders map[string]string) (*models.ResolvedAudio, error)
	ExtractAudioURL(ctx context.Context, videoID string, authHeaders map[string]string) (string, error)
	Search(ctx context.Context, query string, take int) ([]models.Track, error)
	Related(ctx context.Context, videoID string, take int) ([]models.Track, error)
	SaavnSearch(ctx context.Context, query string) (json.RawMessage, error)
}

// MediaHandler handles HTTP requests related to media operations.
type MediaHandler struct {
	mediaService MediaService
	proxy        *mediaproxy.MediaProxy
	searchTake   int
	relatedTake  int
	logger       *utils.Logger
}

// MediaHandlerOptions configures a MediaHandler.
type MediaHandlerOptions struct {
	// SearchTake and RelatedTake apply when the request has no take parameter.
	SearchTake  int
	RelatedTake int

	// Proxy serves the stream endpoint; nil disables it.
	Proxy *mediaproxy.MediaProxy
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(mediaService MediaService, opts MediaHandlerOptions, logger *utils.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		proxy:        opts.Proxy,
		searchTake:   opts.SearchTake,
		relatedTake:  opts.RelatedTake,
		logger:       logger.Named("media_handler"),
	}
}

// Extract resolves an identifier to a URL plus playback headers.
func (h *MediaHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, models.CodeInvalidRequest, err)
		return
	}

	audio, err := h.mediaService.ExtractAudio(r.Context(), req.VideoID, req.AuthHeaders)
	if err != nil {
		utils.RespondWithError(w, models.OpExtractAudio.Code(err), err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, audio)
}

// ExtractURL resolves an identifier to a bare URL.
func (h *MediaHandler) ExtractURL(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, models.CodeInvalidRequest, err)
		return
	}

	url, err := h.mediaService.ExtractAudioURL(r.Context(), req.VideoID, req.AuthHeaders)
	if err != nil {
		utils.RespondWithError(w, models.OpExtractAudioURL.Code(err), err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.ExtractURLResponse{URL: url})
}

// Search handles requests to search for music tracks.
func (h *MediaHandler) Search(w http.ResponseWriter, r *http.Request) {
	take, err := parseTake(r, h.searchTake)
	if err != nil {
		utils.RespondWithError(w, models.CodeInvalidRequest, err)
		return
	}

	tracks, err := h.mediaService.Search(r.Context(), r.URL.Query().Get("q"), take)
	if err != nil {
		utils.RespondWithError(w, models.OpSearch.Code(err), err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, tracks)
}

// Related handles requests for tracks related to a video.
func (h *MediaHandler) Related(w http.ResponseWriter, r *http.Request) {
	take, err := parseTake(r, h.relatedTake)
	if err != nil {
		utils.RespondWithError(w, models.CodeInvalidRequest, err)
		return
	}

	tracks, err := h.mediaService.Related(r.Context(), r.URL.Query().Get("videoId"), take)
	if err != nil {
		utils.RespondWithError(w, models.OpRelated.Code(err), err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, tracks)
}

// Stream proxies the audio of a video, forwarding range requests.
func (h *MediaHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.proxy == nil {
		err := models.NewDomainError(models.ErrFeatureDisabled, nil, "stream proxy is disabled", http.StatusServiceUnavailable, "media")
		utils.RespondWithError(w, models.CodeDisabled, err)
		return
	}

	videoID := media.NormalizeIdentifier(chi.URLParam(r, "videoId"))
	if videoID == "" {
		utils.RespondWithError(w, models.OpStream.MissingCode, models.NewMissingInputError("videoId"))
		return
	}

	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	err := h.proxy.Serve(ww, r, videoID, func(ctx context.Context) (mediaproxy.Locator, error) {
		audio, err := h.mediaService.ExtractAudio(ctx, videoID, nil)
		if err != nil {
			return mediaproxy.Locator{}, err
		}
		return mediaproxy.Locator{URL: audio.URL, Headers: audio.Headers}, nil
	})
	if err == nil {
		return
	}

	if ww.Status() != 0 {
		// the status line is out; all that is left is to cut the body short
		h.logger.Debug("Stream interrupted", "videoId", videoID, "bytes", ww.BytesWritten(), "error", err.Error())
		return
	}

	if isProxyError(err) {
		err = models.NewBackendError(err)
	}
	h.logger.Warn("Stream failed", "videoId", videoID, "error", err.Error())
	utils.RespondWithError(w, models.OpStream.Code(err), err)
}

// SaavnSearch passes a Saavn song search through unmodified.
func (h *MediaHandler) SaavnSearch(w http.ResponseWriter, r *http.Request) {
	req := models.SaavnSearchRequest{Query: r.URL.Query().Get("query")}
	if err := utils.Validate(req); err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}

	body, err := h.mediaService.SaavnSearch(r.Context(), req.Query)
	if err != nil {
		utils.RespondWithError(w, models.OpSaavnSearch.Code(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseTake(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("take"))
	if raw == "" {
		return def, nil
	}
	take, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(err, "take must be an integer")
	}
	return take, nil
}

func isProxyError(err error) bool {
	return errors.Is(err, mediaproxy.ErrInvalidURL) ||
		errors.Is(err, mediaproxy.ErrFetchFailed) ||
		errors.Is(err, mediaproxy.ErrNotFound) ||
		errors.Is(err, mediaproxy.ErrForbidden)
}
