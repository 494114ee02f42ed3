package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/models"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrCameraUnavailable):
		return http.StatusServiceUnavailable, "camera unavailable"
	case errors.Is(err, delivery.ErrEmailDisabled):
		return http.StatusServiceUnavailable, "email delivery unavailable"
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidTemplate):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrCountdownBusy),
		errors.Is(err, models.ErrInvalidStateTransition):
		return http.StatusConflict, "action not allowed"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrUploadFailed):
		return http.StatusBadGateway, "upload failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c *gin.Context, err error) {
	status, label := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, models.ErrorResponse{Error: label, Message: err.Error()})
}

func badRequest(c *gin.Context, msg string, err error) {
	resp := models.ErrorResponse{Error: msg}
	if err != nil {
		resp.Message = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
