package handlers

import (
	"net/http"

	"hongeet.dev/backend/internal/services/system"
	"hongeet.dev/backend/internal/utils"
)

// HealthHandler handles HTTP requests related to system health.
type HealthHandler struct {
	healthSvc *system.HealthService
	logger    *utils.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(healthSvc *system.HealthService, logger *utils.Logger) *HealthHandler {
	return &HealthHandler{
		healthSvc: healthSvc,
		logger:    logger.Named("health_handler"),
	}
}

// Check reports the cached component states. Only an unhealthy system answers 503.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == system.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, statusCode, health)
}
