package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"photobooth-kiosk/internal/camera"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/store"
)

// HealthHandler reports liveness plus the state of the camera and record
// store. A store outage degrades the status but still answers 200, since
// the kiosk keeps running on defaults.
type HealthHandler struct {
	records store.RecordStore
	cameras *camera.Manager
}

func NewHealthHandler(records store.RecordStore, cameras *camera.Manager) *HealthHandler {
	return &HealthHandler{records: records, cameras: cameras}
}

func (h *HealthHandler) Check(c *gin.Context) {
	response := models.HealthResponse{Status: "ok"}

	if h.cameras != nil {
		response.Camera = "idle"
		if h.cameras.IsOpen() {
			response.Camera = "open"
		}
	}

	if h.records != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		response.Store = "ok"
		if _, err := h.records.GetPricing(ctx); err != nil {
			response.Status = "degraded"
			response.Store = err.Error()
		}
	}

	c.JSON(http.StatusOK, response)
}
