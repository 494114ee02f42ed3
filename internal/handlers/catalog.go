package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
)

// CatalogHandler serves the read-only choices shown on the kiosk screens.
type CatalogHandler struct {
	templates *services.TemplateService
	records   store.RecordStore
}

func NewCatalogHandler(templates *services.TemplateService, records store.RecordStore) *CatalogHandler {
	return &CatalogHandler{templates: templates, records: records}
}

// Templates lists active templates, optionally narrowed by ?type=2d|4r.
func (h *CatalogHandler) Templates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if pkg := models.PackageType(c.Query("type")); pkg != "" {
		filtered := templates[:0]
		for _, t := range templates {
			if t.Type == "" || t.Type == pkg {
				filtered = append(filtered, t)
			}
		}
		templates = filtered
	}
	if templates == nil {
		templates = []models.Template{}
	}
	c.JSON(http.StatusOK, models.TemplateListResponse{Templates: templates})
}

func (h *CatalogHandler) Filters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"filters": compositor.Catalog()})
}

func (h *CatalogHandler) PaymentMethods(c *gin.Context) {
	methods, err := h.records.ListPaymentMethods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PaymentMethodListResponse{Methods: methods})
}

func (h *CatalogHandler) Pricing(c *gin.Context) {
	pricing, err := h.records.GetPricing(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pricing)
}
