package handlers

import (
	"context"
	"image"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"photobooth-kiosk/internal/booth"
	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/models"
)

// BoothHandler exposes the kiosk controller. Every action answers with the
// resulting snapshot so the screen can re-render from one response.
type BoothHandler struct {
	ctrl *booth.Controller
}

func NewBoothHandler(ctrl *booth.Controller) *BoothHandler {
	return &BoothHandler{ctrl: ctrl}
}

func (h *BoothHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *BoothHandler) act(c *gin.Context, fn func(ctx context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *BoothHandler) Start(c *gin.Context) {
	h.act(c, h.ctrl.Start)
}

func (h *BoothHandler) SelectPackage(c *gin.Context) {
	var req models.SelectPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.SelectPackage(ctx, req.Package) })
}

func (h *BoothHandler) SelectPaymentMethod(c *gin.Context) {
	var req models.SelectPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.SelectPaymentMethod(ctx, req.Method) })
}

func (h *BoothHandler) SelectTemplate(c *gin.Context) {
	var req models.SelectTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.SelectTemplate(ctx, req.TemplateID) })
}

func (h *BoothHandler) SelectQuantity(c *gin.Context) {
	var req models.SelectQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.SelectQuantity(ctx, req.Quantity) })
}

func (h *BoothHandler) ConfirmPayment(c *gin.Context) {
	h.act(c, h.ctrl.ConfirmPayment)
}

func (h *BoothHandler) CancelPayment(c *gin.Context) {
	h.act(c, h.ctrl.CancelPayment)
}

func (h *BoothHandler) StartCapture(c *gin.Context) {
	h.act(c, h.ctrl.StartCapture)
}

func (h *BoothHandler) Retake(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "invalid capture index", err)
		return
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.Retake(ctx, index) })
}

func (h *BoothHandler) RetakeAll(c *gin.Context) {
	h.act(c, h.ctrl.RetakeAll)
}

func (h *BoothHandler) SelectFilter(c *gin.Context) {
	var req models.SelectFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.SelectFilter(ctx, req.FilterID) })
}

func (h *BoothHandler) Finalize(c *gin.Context) {
	h.act(c, h.ctrl.Finalize)
}

// SetEmail stores a draft address; SendEmail dispatches.
func (h *BoothHandler) SetEmail(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	h.ctrl.SetEmail(req.Email)
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *BoothHandler) SendEmail(c *gin.Context) {
	var req models.EmailRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body", err)
			return
		}
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.SendEmail(ctx, req.Email) })
}

func (h *BoothHandler) Print(c *gin.Context) {
	h.act(c, h.ctrl.Print)
}

func (h *BoothHandler) Finish(c *gin.Context) {
	h.act(c, h.ctrl.Finish)
}

func (h *BoothHandler) Back(c *gin.Context) {
	h.act(c, h.ctrl.Back)
}

func (h *BoothHandler) Reset(c *gin.Context) {
	var req models.ResetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body", err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	h.act(c, func(ctx context.Context) error { return h.ctrl.Reset(ctx, req.Reason) })
}

func (h *BoothHandler) Capture(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid capture index", err)
		return
	}
	img, err := h.ctrl.CaptureImage(index)
	if err != nil {
		respondError(c, err)
		return
	}
	writeJPEG(c, img, 90)
}

func (h *BoothHandler) Final(c *gin.Context) {
	img, err := h.ctrl.FinalImage()
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := compositor.EncodePNG(img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

// Preview serves the live frame with the chosen filter. The kiosk polls it.
func (h *BoothHandler) Preview(c *gin.Context) {
	img, err := h.ctrl.Preview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	writeJPEG(c, img, 75)
}

// PaymentQR renders the QR shown while a non-cash payment is pending.
func (h *BoothHandler) PaymentQR(c *gin.Context) {
	snap := h.ctrl.Snapshot()
	if snap.QRISValue == "" {
		respondError(c, models.ErrNotFound)
		return
	}
	writeQR(c, snap.QRISValue)
}

// DeliveryQR renders the download-page QR for the current transaction.
func (h *BoothHandler) DeliveryQR(c *gin.Context) {
	summary, err := h.ctrl.Summary()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", summary.QRCode)
}

func writeJPEG(c *gin.Context, img image.Image, quality int) {
	data, err := compositor.EncodeJPEG(img, quality)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}

func writeQR(c *gin.Context, content string) {
	png, err := delivery.QRCode(content, delivery.DefaultQRSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
