package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/services"
)

// DownloadHandler backs the page a guest opens from the delivery QR. It
// reads storage directly, so it keeps working after the kiosk resets.
type DownloadHandler struct {
	assets  *services.AssetService
	baseURL string
}

func NewDownloadHandler(assets *services.AssetService, baseURL string) *DownloadHandler {
	return &DownloadHandler{assets: assets, baseURL: baseURL}
}

func (h *DownloadHandler) Assets(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		badRequest(c, "invalid transaction id", err)
		return
	}

	assets, err := h.assets.SignedAssets(c.Request.Context(), txID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": txID.String(),
		"download_url":   delivery.DownloadURL(h.baseURL, txID),
		"assets":         assets,
	})
}

func (h *DownloadHandler) QR(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		badRequest(c, "invalid transaction id", err)
		return
	}
	writeQR(c, delivery.DownloadURL(h.baseURL, txID))
}
