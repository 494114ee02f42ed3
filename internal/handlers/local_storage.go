package handlers

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/store"
)

// LocalStorageHandler serves objects written by store.LocalStorage when
// the kiosk runs without Supabase. Links are only honored with a valid
// token from SignedURL.
type LocalStorageHandler struct {
	storage *store.LocalStorage
}

func NewLocalStorageHandler(storage *store.LocalStorage) *LocalStorageHandler {
	return &LocalStorageHandler{storage: storage}
}

func (h *LocalStorageHandler) Get(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")
	if objectPath == "" {
		badRequest(c, "missing object path", nil)
		return
	}

	if err := h.storage.Verify(objectPath, c.Query("token")); err != nil {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "forbidden", Message: err.Error()})
		return
	}

	data, err := h.storage.Download(c.Request.Context(), objectPath)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(objectPath))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", `attachment; filename="`+path.Base(objectPath)+`"`)
	}
	c.Data(http.StatusOK, contentType, data)
}
