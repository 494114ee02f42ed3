package booth

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/models"
)

// Start leaves the attract screen. Pricing and payment methods are read
// once per customer; a store outage falls back to the defaults.
func (c *Controller) Start(ctx context.Context) error {
	pricing, err := c.deps.Records.GetPricing(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load pricing, using defaults")
		pricing = models.DefaultPricing()
	}
	methods, err := c.deps.Records.ListPaymentMethods(ctx)
	if err != nil || len(methods) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("failed to load payment methods, using defaults")
		}
		methods = models.DefaultPaymentMethods()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dispatchLocked(ctx, Start{Pricing: pricing}); err != nil {
		return err
	}
	c.sess.methods = methods
	return nil
}

func (c *Controller) SelectPackage(ctx context.Context, pkg models.PackageType) error {
	return c.Dispatch(ctx, SelectPackage{Package: pkg})
}

// SelectPaymentMethod accepts a method id or its display name.
func (c *Controller) SelectPaymentMethod(ctx context.Context, method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := findMethod(c.sess.methods, method)
	if !ok {
		return models.NewValidationError("payment_method", fmt.Sprintf("unknown payment method %q", method))
	}
	return c.dispatchLocked(ctx, SelectPaymentMethod{Method: m})
}

func findMethod(methods []models.PaymentMethod, key string) (models.PaymentMethod, bool) {
	if len(methods) == 0 {
		methods = models.DefaultPaymentMethods()
	}
	for _, m := range methods {
		if m.ID == key || strings.EqualFold(m.Name, key) {
			return m, true
		}
	}
	return models.PaymentMethod{}, false
}

func (c *Controller) SelectTemplate(ctx context.Context, id string) error {
	return c.Dispatch(ctx, SelectTemplate{TemplateID: id})
}

func (c *Controller) SelectQuantity(ctx context.Context, quantity int) error {
	return c.Dispatch(ctx, SelectQuantity{Quantity: quantity})
}

func (c *Controller) ConfirmPayment(ctx context.Context) error {
	return c.Dispatch(ctx, ConfirmPayment{})
}

func (c *Controller) CancelPayment(ctx context.Context) error {
	return c.Dispatch(ctx, CancelPayment{})
}

func (c *Controller) StartCapture(ctx context.Context) error {
	return c.Dispatch(ctx, StartCapture{})
}

func (c *Controller) Retake(ctx context.Context, index int) error {
	return c.Dispatch(ctx, Retake{Index: index})
}

func (c *Controller) RetakeAll(ctx context.Context) error {
	return c.Dispatch(ctx, RetakeAll{})
}

func (c *Controller) SelectFilter(ctx context.Context, id string) error {
	if _, err := compositor.Lookup(id); err != nil {
		return models.NewValidationError("filter", err.Error())
	}
	return c.Dispatch(ctx, SelectFilter{FilterID: id})
}

// Finalize starts the final composite upload and waits for it. The upload
// runs without the controller lock, so Reset and the session timer still
// work while it is in flight. Returning early because ctx ended does not
// stop the upload.
func (c *Controller) Finalize(ctx context.Context) error {
	c.mu.Lock()
	if err := c.dispatchLocked(ctx, Finalize{}); err != nil {
		c.mu.Unlock()
		return err
	}
	job, ended := c.sess.finalize, c.sess.ended
	c.mu.Unlock()

	if job == nil {
		return nil
	}
	select {
	case <-job.done:
		return job.err
	case <-ended:
		return fmt.Errorf("%w: session was reset", models.ErrInvalidAction)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetEmail remembers the address typed so far without sending anything.
func (c *Controller) SetEmail(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.email = strings.TrimSpace(address)
}

func (c *Controller) SendEmail(ctx context.Context, address string) error {
	return c.Dispatch(ctx, SendEmail{Address: address})
}

func (c *Controller) Print(ctx context.Context) error {
	return c.Dispatch(ctx, Print{})
}

func (c *Controller) Finish(ctx context.Context) error {
	return c.Dispatch(ctx, Finish{})
}

func (c *Controller) Back(ctx context.Context) error {
	return c.Dispatch(ctx, Back{})
}

// Reset abandons the current customer from any step.
func (c *Controller) Reset(ctx context.Context, reason string) error {
	return c.Dispatch(ctx, Reset{Reason: reason})
}

// CaptureImage returns the committed still for slot i.
func (c *Controller) CaptureImage(i int) (*image.RGBA, error) {
	caps := c.deps.Engine.Captures()
	if i < 0 || i >= len(caps) || caps[i] == nil || caps[i].Still == nil {
		return nil, fmt.Errorf("capture %d: %w", i, models.ErrNotFound)
	}
	return caps[i].Still, nil
}

// FinalImage returns the composited image once it has been uploaded.
func (c *Controller) FinalImage() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.final == nil {
		return nil, fmt.Errorf("final image: %w", models.ErrNotFound)
	}
	return c.sess.final, nil
}

// Preview returns the latest live frame with the selected filter applied.
func (c *Controller) Preview(ctx context.Context) (*image.RGBA, error) {
	c.mu.Lock()
	filterID := c.sess.state.Filter
	c.mu.Unlock()

	frame, err := c.deps.Engine.Preview(ctx)
	if err != nil {
		return nil, err
	}
	if filterID == "" {
		return frame, nil
	}
	f, err := compositor.Lookup(filterID)
	if err != nil || f.IsIdentity() {
		return frame, nil
	}
	out := image.NewRGBA(frame.Bounds())
	draw.Draw(out, out.Bounds(), frame, frame.Bounds().Min, draw.Src)
	f.Apply(out)
	return out, nil
}

// Summary returns the delivery view for the current transaction.
func (c *Controller) Summary() (delivery.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryLocked()
}
