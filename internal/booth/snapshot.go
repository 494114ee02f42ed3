package booth

import (
	"time"

	"github.com/google/uuid"

	"photobooth-kiosk/internal/capture"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/geometry"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/services"
)

// CaptureView describes one slot for the kiosk screen.
type CaptureView struct {
	Index   int       `json:"index"`
	Taken   bool      `json:"taken"`
	HasClip bool      `json:"has_clip"`
	TakenAt time.Time `json:"taken_at,omitempty"`
}

// Snapshot is a consistent read of the kiosk state.
type Snapshot struct {
	Step           Step                   `json:"step"`
	Package        models.PackageType     `json:"package,omitempty"`
	PaymentMethod  string                 `json:"payment_method,omitempty"`
	TemplateID     string                 `json:"template_id,omitempty"`
	Quantity       int                    `json:"quantity,omitempty"`
	Total          int64                  `json:"total,omitempty"`
	PaymentStatus  models.PaymentStatus   `json:"payment_status,omitempty"`
	Filter         string                 `json:"filter,omitempty"`
	Pricing        models.Pricing         `json:"pricing"`
	OfferPackages  bool                   `json:"offer_packages"`
	PaymentMethods []models.PaymentMethod `json:"payment_methods,omitempty"`

	TransactionID *uuid.UUID       `json:"transaction_id,omitempty"`
	QRISValue     string           `json:"qris_value,omitempty"`
	Template      *models.Template `json:"template,omitempty"`
	Slots         []geometry.Rect  `json:"slots,omitempty"`

	CapturePhase   capture.Phase `json:"capture_phase"`
	ActiveSlot     int           `json:"active_slot"`
	Countdown      int           `json:"countdown"`
	CaptureRunning bool          `json:"capture_running"`
	Captures       []CaptureView `json:"captures"`
	Finalizing     bool          `json:"finalizing"`

	Assets   []services.AssetState `json:"assets,omitempty"`
	Delivery *delivery.Summary     `json:"delivery,omitempty"`
	Email    string                `json:"email,omitempty"`

	LastError   string `json:"last_error,omitempty"`
	CameraError string `json:"camera_error,omitempty"`

	SessionDeadline *time.Time `json:"session_deadline,omitempty"`
	FinishDeadline  *time.Time `json:"finish_deadline,omitempty"`
}

// QRISValue is the string encoded into the payment QR shown at the qris
// step.
func QRISValue(txID uuid.UUID) string {
	return "qris:" + txID.String()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	st := s.state
	snap := Snapshot{
		Step:           st.Step,
		Package:        st.Package,
		PaymentMethod:  st.PaymentMethod,
		TemplateID:     st.TemplateID,
		Quantity:       st.Quantity,
		Total:          st.Total,
		PaymentStatus:  st.PaymentStatus,
		Filter:         st.Filter,
		Pricing:        st.Pricing,
		OfferPackages:  st.OfferPackages,
		PaymentMethods: s.methods,
		Template:       s.template,
		Slots:          s.rects,
		Email:          s.email,
		LastError:      s.lastErr,
		CameraError:    s.cameraErr,
	}

	if s.tx != nil {
		id := s.tx.ID
		snap.TransactionID = &id
		if st.Step == StepQRIS {
			snap.QRISValue = QRISValue(id)
		}
	}

	snap.CapturePhase, snap.ActiveSlot = c.deps.Engine.Phase()
	snap.Countdown = int(s.countdown.Load())
	snap.CaptureRunning = c.deps.Engine.Running()
	snap.Finalizing = st.Finalizing
	snap.Captures = captureViews(c.deps.Engine.Captures(), s.template)

	if st.Step == StepDelivery || st.Step == StepFinish {
		snap.Assets = c.deps.Assets.States()
		if summary, err := c.summaryLocked(); err == nil {
			snap.Delivery = &summary
		}
	}

	if !s.sessionDeadline.IsZero() {
		d := s.sessionDeadline
		snap.SessionDeadline = &d
	}
	if !s.finishDeadline.IsZero() {
		d := s.finishDeadline
		snap.FinishDeadline = &d
	}
	return snap
}

func captureViews(caps []*capture.Capture, tpl *models.Template) []CaptureView {
	n := len(caps)
	if tpl != nil {
		n = max(n, geometry.SlotCount(tpl))
	}
	out := make([]CaptureView, n)
	for i := range out {
		out[i].Index = i
		if i >= len(caps) || caps[i] == nil || caps[i].Still == nil {
			continue
		}
		out[i].Taken = true
		out[i].HasClip = caps[i].Clip != nil
		out[i].TakenAt = caps[i].TakenAt
	}
	return out
}
