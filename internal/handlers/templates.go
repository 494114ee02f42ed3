package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/services"
)

const maxArtworkSize = 32 << 20

// TemplateAdminHandler accepts operator uploads of frame artwork.
type TemplateAdminHandler struct {
	templates *services.TemplateService
}

func NewTemplateAdminHandler(templates *services.TemplateService) *TemplateAdminHandler {
	return &TemplateAdminHandler{templates: templates}
}

// Create takes a multipart form: the artwork file, name, an optional type
// (2d or 4r) and an optional slots_config JSON array.
func (h *TemplateAdminHandler) Create(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxArtworkSize); err != nil {
		badRequest(c, "failed to parse multipart form", err)
		return
	}
	form := c.Request.MultipartForm
	if form == nil {
		badRequest(c, "failed to parse multipart form", nil)
		return
	}

	var header *multipart.FileHeader
	fieldNames := []string{"file", "image", "artwork", "frame"}
	for _, name := range fieldNames {
		if files := form.File[name]; len(files) > 0 {
			header = files[0]
			break
		}
	}
	if header == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no file uploaded",
			Message: fmt.Sprintf("please provide the artwork in one of these fields: %v", fieldNames),
		})
		return
	}
	if header.Size > maxArtworkSize {
		badRequest(c, "artwork too large", nil)
		return
	}

	var slots []models.Slot
	if raw := c.PostForm("slots_config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &slots); err != nil {
			badRequest(c, "invalid slots_config", err)
			return
		}
	}

	f, err := header.Open()
	if err != nil {
		badRequest(c, "failed to open file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "failed to read file", err)
		return
	}

	tpl, err := h.templates.Create(c.Request.Context(), services.NewTemplate{
		Name:     c.PostForm("name"),
		Type:     models.PackageType(c.PostForm("type")),
		Slots:    slots,
		FileName: header.Filename,
		Artwork:  data,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.TemplateUploadResponse{Template: *tpl})
}
