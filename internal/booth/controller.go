package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/capture"
	"photobooth-kiosk/internal/compositor"
	"photobooth-kiosk/internal/delivery"
	"photobooth-kiosk/internal/geometry"
	"photobooth-kiosk/internal/media"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
)

const (
	DefaultFinishTimeout = 10 * time.Second
	DefaultUploadTimeout = 2 * time.Minute
)

// EventSink receives booth lifecycle events. Publishing is best-effort.
type EventSink interface {
	Publish(txID uuid.UUID, event string, payload map[string]any) error
}

type Deps struct {
	Records    store.RecordStore
	Templates  *services.TemplateService
	Engine     *capture.Engine
	Compositor *compositor.Compositor
	Assets     *services.AssetService
	Dispatcher *delivery.Dispatcher
	Events     EventSink
	Metrics    *metrics.Metrics
}

type Options struct {
	FinishTimeout time.Duration
	// SessionTimeout overrides the pricing session countdown when set.
	SessionTimeout time.Duration
	// UploadTimeout bounds compositing and uploading the final image.
	UploadTimeout time.Duration
}

// session is the per-customer state. Reset replaces it wholesale.
type session struct {
	epoch    uint64
	state    State
	methods  []models.PaymentMethod
	tx       *models.Transaction
	template *models.Template
	artwork  image.Image
	rects    []geometry.Rect
	final    *image.RGBA
	email    string

	lastErr   string
	cameraErr string

	sessionTimer    *time.Timer
	sessionDeadline time.Time
	finishTimer     *time.Timer
	finishDeadline  time.Time

	captureCancel context.CancelFunc
	captureDone   chan struct{}
	// countdown is the remaining beats of the slot being captured, written
	// by the capture goroutine without the controller lock.
	countdown atomic.Int32

	finalize *finalizeJob
	// ended is closed when Reset replaces this session.
	ended chan struct{}
}

// finalizeJob is one composite and upload of the final image.
type finalizeJob struct {
	done chan struct{}
	err  error
}

func (s *session) capturing() bool {
	if s.captureDone == nil {
		return false
	}
	select {
	case <-s.captureDone:
		return false
	default:
		return true
	}
}

// Controller serializes kiosk actions and performs the effects of each
// transition. Timers and capture runs feed back into it as actions.
type Controller struct {
	deps Deps
	opts Options

	mu          sync.Mutex
	sess        *session
	epoch       uint64
	resetReason string
}

func NewController(deps Deps, opts Options) *Controller {
	if opts.FinishTimeout <= 0 {
		opts.FinishTimeout = DefaultFinishTimeout
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	c := &Controller{deps: deps, opts: opts}
	c.sess = c.newSession()
	if deps.Engine != nil && deps.Assets != nil {
		deps.Engine.OnInvalidate(func(int) { deps.Assets.Invalidate() })
	}
	return c
}

func (c *Controller) newSession() *session {
	c.epoch++
	return &session{epoch: c.epoch, state: Initial(), ended: make(chan struct{})}
}

// Dispatch applies one action. Critical effect failures leave the previous
// state in place; other effect failures are returned after the state moves.
func (c *Controller) Dispatch(ctx context.Context, a Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ctx, a)
}

func (c *Controller) dispatchLocked(ctx context.Context, a Action) error {
	prev := c.sess.state
	next, effects, err := Transition(prev, a)
	if err != nil {
		log.Debug().Err(err).Str("action", a.Name()).Str("step", string(prev.Step)).Msg("action rejected")
		return err
	}

	switch a := a.(type) {
	case Reset:
		c.resetReason = a.Reason
	case Timeout:
		c.resetReason = "timeout:" + a.Timer
	case CancelPayment:
		c.resetReason = "payment_canceled"
	case Finish:
		c.resetReason = "finished"
	}

	var softErr error
	for _, e := range effects {
		if err := c.apply(ctx, prev, next, e); err != nil {
			if e.Critical() || e.Kind == EffectRunCapture || e.Kind == EffectRunRetake {
				log.Warn().Err(err).Str("action", a.Name()).Str("effect", string(e.Kind)).Msg("action aborted")
				if prev.Step != StepSession && next.Step == StepSession {
					c.releaseCamera()
				}
				c.sess.lastErr = err.Error()
				return err
			}
			log.Warn().Err(err).Str("action", a.Name()).Str("effect", string(e.Kind)).Msg("effect failed")
			if softErr == nil {
				softErr = err
			}
		}
	}

	c.sess.state = next
	if softErr == nil {
		c.sess.lastErr = ""
	} else {
		c.sess.lastErr = softErr.Error()
	}
	if prev.Step != next.Step {
		c.deps.Metrics.Step(string(prev.Step), string(next.Step))
		log.Info().Str("from", string(prev.Step)).Str("to", string(next.Step)).Str("action", a.Name()).Msg("step changed")
		c.publish("step_changed", map[string]any{"from": string(prev.Step), "to": string(next.Step)})
	}
	return softErr
}

func (c *Controller) apply(ctx context.Context, prev, next State, e Effect) error {
	s := c.sess
	switch e.Kind {
	case EffectAcquireCamera:
		if err := c.deps.Engine.StartCamera(ctx); err != nil {
			s.cameraErr = err.Error()
			return err
		}
		s.cameraErr = ""

	case EffectReleaseCamera:
		c.releaseCamera()

	case EffectStartSessionTimer:
		d := c.opts.SessionTimeout
		if d <= 0 {
			secs := next.Pricing.SessionCountdownSeconds
			if secs <= 0 {
				secs = models.DefaultSessionCountdown
			}
			d = time.Duration(secs) * time.Second
		}
		stopTimer(s.sessionTimer)
		s.sessionTimer = c.startTimer(s.epoch, "session", d)
		s.sessionDeadline = time.Now().Add(d)

	case EffectStartFinishTimer:
		stopTimer(s.finishTimer)
		s.finishTimer = c.startTimer(s.epoch, "finish", c.opts.FinishTimeout)
		s.finishDeadline = time.Now().Add(c.opts.FinishTimeout)

	case EffectStopTimers:
		stopTimer(s.sessionTimer)
		stopTimer(s.finishTimer)
		s.sessionTimer, s.finishTimer = nil, nil
		s.sessionDeadline, s.finishDeadline = time.Time{}, time.Time{}

	case EffectCancelCapture:
		c.cancelCapture()

	case EffectResetCaptures:
		c.cancelCapture()
		if !c.deps.Assets.VideoStarted() {
			media.RemoveClips(c.deps.Engine.Clips())
		}
		c.deps.Engine.Reset()
		s.final = nil

	case EffectResetAssets:
		c.deps.Assets.Invalidate()

	case EffectLoadTemplate:
		return c.loadTemplate(ctx, e.Value)

	case EffectPersistTransaction:
		return c.persistTransaction(ctx, next)

	case EffectMarkPaid:
		return c.markPaid(ctx)

	case EffectMarkCanceled:
		c.markCanceled(ctx)

	case EffectRunCapture:
		return c.runCapture(-1)

	case EffectRunRetake:
		if e.Index < 0 {
			return models.NewValidationError("index", "retake index must not be negative")
		}
		return c.runCapture(e.Index)

	case EffectUploadFinal:
		return c.startFinalUpload(next)

	case EffectStartAssetJobs:
		c.deps.Assets.StartBackgroundJobs(c.stills(), c.deps.Engine.Clips())

	case EffectSendEmail:
		return c.sendEmail(ctx, e.Value)

	case EffectPrint:
		if s.final == nil {
			return fmt.Errorf("%w: nothing to print", models.ErrInvalidAction)
		}
		printer := c.deps.Dispatcher.Printer()
		if printer == nil {
			return fmt.Errorf("%w: printing is not configured", models.ErrInvalidAction)
		}
		return printer.Print(ctx, s.final, max(1, next.Quantity))

	case EffectResetSession:
		c.resetSession()
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// startTimer arms a timer that dispatches Timeout unless the session it
// belongs to has been replaced.
func (c *Controller) startTimer(epoch uint64, name string, d time.Duration) *time.Timer {
	return time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sess.epoch != epoch {
			return
		}
		log.Info().Str("timer", name).Dur("after", d).Msg("kiosk timer expired, resetting")
		if err := c.dispatchLocked(context.Background(), Timeout{Timer: name}); err != nil {
			log.Error().Err(&models.TimeoutError{Timer: name}).AnErr("reset_error", err).Msg("timeout reset failed")
		}
	})
}

func (c *Controller) releaseCamera() {
	if err := c.deps.Engine.StopCamera(); err != nil {
		log.Warn().Err(err).Msg("failed to release camera")
	}
}

// cancelCapture stops the running capture and waits for it to unwind. The
// capture goroutine never takes the controller lock before closing done.
func (c *Controller) cancelCapture() {
	s := c.sess
	if s.captureCancel != nil {
		s.captureCancel()
	}
	c.deps.Engine.Cancel()
	if s.captureDone != nil {
		<-s.captureDone
	}
	s.captureCancel, s.captureDone = nil, nil
}

func (c *Controller) resetSession() {
	old := c.sess
	// A final upload in flight is left to finish; finalFinished drops its
	// result by epoch.
	old.finalize = nil
	close(old.ended)
	if !c.deps.Assets.VideoStarted() {
		media.RemoveClips(c.deps.Engine.Clips())
	}
	c.deps.Engine.Reset()
	c.deps.Assets.Begin(uuid.Nil)

	reason := c.resetReason
	if reason == "" {
		reason = "manual"
	}
	c.resetReason = ""
	c.deps.Metrics.Reset(reason)

	txID := uuid.Nil
	if old.tx != nil {
		txID = old.tx.ID
	}
	log.Info().Str("reason", reason).Str("transaction_id", txID.String()).Msg("kiosk reset")
	if txID != uuid.Nil {
		c.publishTx(txID, "reset", map[string]any{"reason": reason})
	}

	c.sess = c.newSession()
}

func (c *Controller) loadTemplate(ctx context.Context, id string) error {
	tpl, art, err := c.deps.Templates.Get(ctx, id)
	if err != nil {
		return err
	}
	rects, err := geometry.ResolveTemplate(tpl)
	if err != nil {
		log.Warn().Err(err).Str("template_id", id).Msg("template slots unusable, using a single full-frame slot")
	}
	c.sess.template, c.sess.artwork, c.sess.rects = tpl, art, rects
	return nil
}

// persistTransaction records a pending transaction. Cash is marked paid by
// the MarkPaid effect that follows, so the record always moves through a
// legal payment transition.
func (c *Controller) persistTransaction(ctx context.Context, next State) error {
	tx := models.NewTransaction(next.PaymentMethod, next.Package)
	tx.TotalPrice = next.Total
	tx.Quantity = next.Quantity
	if next.TemplateID != "" {
		tx.TemplateID.String, tx.TemplateID.Valid = next.TemplateID, true
	}
	if err := c.deps.Records.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	c.sess.tx = tx
	c.deps.Assets.Begin(tx.ID)
	log.Info().
		Str("transaction_id", tx.ID.String()).
		Str("payment_method", tx.PaymentMethod).
		Int64("total_price", tx.TotalPrice).
		Int("quantity", tx.Quantity).
		Msg("transaction created")
	c.publishTx(tx.ID, "transaction_created", map[string]any{
		"payment_method": tx.PaymentMethod, "status": string(tx.PaymentStatus), "total_price": tx.TotalPrice,
	})
	return nil
}

func (c *Controller) markPaid(ctx context.Context) error {
	tx := c.sess.tx
	if tx == nil {
		return fmt.Errorf("%w: no transaction to confirm", models.ErrInvalidAction)
	}
	if tx.IsPaid() {
		return nil
	}
	updated := tx.Clone()
	if err := updated.TransitionTo(models.PaymentPaid); err != nil {
		return err
	}
	if err := c.deps.Records.UpdateTransaction(ctx, updated); err != nil {
		return err
	}
	c.sess.tx = updated
	c.publishTx(tx.ID, "payment_confirmed", map[string]any{"payment_method": tx.PaymentMethod, "total_price": tx.TotalPrice})
	return nil
}

func (c *Controller) markCanceled(ctx context.Context) {
	tx := c.sess.tx
	c.sess.tx = nil
	if tx == nil || tx.PaymentStatus != models.PaymentPending {
		return
	}
	if err := tx.TransitionTo(models.PaymentCanceled); err != nil {
		log.Warn().Err(err).Msg("cannot cancel transaction")
		return
	}
	if err := c.deps.Records.UpdateTransaction(ctx, tx); err != nil {
		log.Warn().Err(err).Str("transaction_id", tx.ID.String()).Msg("failed to record canceled payment")
	}
	c.publishTx(tx.ID, "payment_canceled", nil)
}

// runCapture starts a full session (index < 0) or a single retake in the
// background. Completion is fed back as CapturesComplete.
func (c *Controller) runCapture(index int) error {
	s := c.sess
	if s.capturing() {
		return models.ErrCountdownBusy
	}
	if s.template == nil {
		return fmt.Errorf("%w: no template selected", models.ErrInvalidAction)
	}
	tpl := s.template
	n := geometry.SlotCount(tpl)
	if index >= n {
		return models.NewValidationError("index", fmt.Sprintf("retake index %d out of range [0,%d)", index, n))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.captureCancel, s.captureDone = cancel, done
	epoch := s.epoch
	engine := c.deps.Engine
	txID := uuid.Nil
	if s.tx != nil {
		txID = s.tx.ID
	}

	// Observer callbacks run on the capture goroutine and must not take
	// c.mu: cancelCapture holds it while waiting for done.
	obs := capture.Observer{
		OnTick: func(_, remaining int) {
			s.countdown.Store(int32(remaining))
		},
		OnCapture: func(cp capture.Capture) {
			c.publishTx(txID, "capture_committed", map[string]any{
				"index": cp.Index, "has_clip": cp.Clip != nil,
			})
		},
	}

	go func() {
		var err error
		if index < 0 {
			err = engine.RunSession(ctx, tpl, obs)
		} else {
			err = engine.Retake(ctx, tpl, index, obs)
		}
		s.countdown.Store(0)
		cancel()
		close(done)
		c.captureFinished(epoch, n, err)
	}()
	return nil
}

func (c *Controller) captureFinished(epoch uint64, slots int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.epoch != epoch || c.sess.state.Step != StepSession {
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn().Err(err).Msg("capture run failed")
		if errors.Is(err, models.ErrCameraUnavailable) {
			c.sess.cameraErr = err.Error()
		}
		c.sess.lastErr = err.Error()
		return
	}
	if !c.deps.Engine.Complete(slots) {
		return
	}
	if err := c.dispatchLocked(context.Background(), CapturesComplete{}); err != nil {
		log.Warn().Err(err).Msg("failed to leave capture step")
	}
}

// stills returns the committed stills indexed by slot.
func (c *Controller) stills() []image.Image {
	caps := c.deps.Engine.Captures()
	out := make([]image.Image, len(caps))
	for i, cp := range caps {
		if cp != nil && cp.Still != nil {
			out[i] = cp.Still
		}
	}
	return out
}

// startFinalUpload checks the inputs and composites and uploads the final
// image in the background. The outcome comes back as FinalReady or
// FinalFailed.
func (c *Controller) startFinalUpload(next State) error {
	s := c.sess
	if s.template == nil || s.tx == nil {
		return fmt.Errorf("%w: no template or transaction", models.ErrInvalidAction)
	}
	if s.finalize != nil {
		return fmt.Errorf("%w: final image is already uploading", models.ErrInvalidAction)
	}
	filter, err := compositor.Lookup(next.Filter)
	if err != nil {
		return models.NewValidationError("filter", err.Error())
	}

	rects := s.rects
	if len(rects) == 0 {
		rects = []geometry.Rect{geometry.FullFrame(s.template.Width, s.template.Height)}
	}
	in := compositor.Input{
		Stills:  c.stills(),
		Rects:   rects,
		Filter:  filter,
		Artwork: s.artwork,
		Width:   s.template.Width,
		Height:  s.template.Height,
	}
	tx := s.tx.Clone()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.UploadTimeout)
	job := &finalizeJob{done: make(chan struct{})}
	s.finalize = job
	epoch := s.epoch

	go func() {
		defer cancel()
		final, err := c.deps.Compositor.Composite(in)
		var url string
		if err == nil {
			url, err = c.deps.Assets.UploadFinal(ctx, final)
		}
		if err == nil {
			tx.PhotoURL.String, tx.PhotoURL.Valid = url, true
			if uerr := c.deps.Records.UpdateTransaction(ctx, tx); uerr != nil {
				log.Warn().Err(uerr).Str("transaction_id", tx.ID.String()).Msg("failed to record photo url")
				tx = nil
			}
		}
		c.finalFinished(epoch, job, final, tx, filter.ID, err)
	}()
	return nil
}

// finalFinished feeds the final upload outcome back into the session that
// started it. updated is nil when the photo url could not be recorded.
func (c *Controller) finalFinished(epoch uint64, job *finalizeJob, final *image.RGBA, updated *models.Transaction, filterID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(job.done)

	s := c.sess
	if s.epoch != epoch || s.finalize != job {
		job.err = fmt.Errorf("%w: session was reset", models.ErrInvalidAction)
		return
	}
	s.finalize = nil

	if err != nil {
		log.Warn().Err(err).Msg("final image upload failed")
		if derr := c.dispatchLocked(context.Background(), FinalFailed{}); derr != nil {
			log.Warn().Err(derr).Msg("failed to record final upload failure")
		}
		s.lastErr = err.Error()
		job.err = err
		return
	}

	s.final = final
	if updated != nil {
		s.tx = updated
	}
	if derr := c.dispatchLocked(context.Background(), FinalReady{}); derr != nil {
		job.err = derr
		return
	}
	c.publish("final_uploaded", map[string]any{"filter": filterID})
}

func (c *Controller) sendEmail(ctx context.Context, address string) error {
	s := c.sess
	if address == "" {
		address = s.email
	}
	address, err := delivery.ValidateEmail(address)
	if err != nil {
		return err
	}
	s.email = address

	summary, err := c.summaryLocked()
	if err != nil {
		return err
	}
	sender := c.deps.Dispatcher.Email()
	if sender == nil {
		return delivery.ErrEmailDisabled
	}
	err = sender.Send(ctx, delivery.Email{
		To:           address,
		PhotoURL:     summary.PhotoURL,
		AnimationURL: summary.AnimationURL,
		VideoURL:     summary.VideoURL,
		DownloadURL:  summary.DownloadURL,
	})
	if err != nil {
		c.deps.Metrics.Email("failed")
		return err
	}
	c.deps.Metrics.Email("sent")

	if s.tx != nil {
		updated := s.tx.Clone()
		updated.Email.String, updated.Email.Valid = address, true
		if err := c.deps.Records.UpdateTransaction(ctx, updated); err != nil {
			log.Warn().Err(err).Msg("failed to record email")
		} else {
			s.tx = updated
		}
	}
	return nil
}

func (c *Controller) summaryLocked() (delivery.Summary, error) {
	if c.sess.tx == nil {
		return delivery.Summary{}, fmt.Errorf("%w: no transaction", models.ErrInvalidAction)
	}
	return c.deps.Dispatcher.Summary(c.sess.tx.ID, c.deps.Assets.States())
}

func (c *Controller) publish(event string, payload map[string]any) {
	txID := uuid.Nil
	if c.sess.tx != nil {
		txID = c.sess.tx.ID
	}
	c.publishTx(txID, event, payload)
}

func (c *Controller) publishTx(txID uuid.UUID, event string, payload map[string]any) {
	if c.deps.Events == nil {
		return
	}
	sink := c.deps.Events
	go func() {
		if err := sink.Publish(txID, event, payload); err != nil {
			log.Debug().Err(err).Str("event", event).Msg("failed to publish booth event")
		}
	}()
}
