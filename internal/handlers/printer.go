package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/middleware"
	"photobooth-kiosk/internal/models"
)

// PrinterHandler lets an operator pick the printer used for guest prints.
type PrinterHandler struct {
	config  *delivery.PrinterConfigStore
	printer delivery.Printer
}

func NewPrinterHandler(config *delivery.PrinterConfigStore, printer delivery.Printer) *PrinterHandler {
	return &PrinterHandler{config: config, printer: printer}
}

func (h *PrinterHandler) GetConfig(c *gin.Context) {
	cfg, err := h.config.Load()
	if err != nil {
		respondError(c, err)
		return
	}
	var resp models.PrinterConfigResponse
	if cfg.PrinterName != "" {
		resp.PrinterName = &cfg.PrinterName
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PrinterHandler) SaveConfig(c *gin.Context) {
	var req models.PrinterConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	if err := h.config.Save(delivery.PrinterConfig{PrinterName: req.PrinterName}); err != nil {
		respondError(c, err)
		return
	}
	log.Info().
		Str("printer", req.PrinterName).
		Str("operator_id", c.GetString(middleware.OperatorIDKey)).
		Msg("printer configuration saved")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PrinterHandler) List(c *gin.Context) {
	printers, err := h.printer.ListPrinters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if printers == nil {
		printers = []string{}
	}
	c.JSON(http.StatusOK, models.PrinterListResponse{Printers: printers})
}
