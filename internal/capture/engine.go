// Package capture runs the per-slot countdown, still and clip routine.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/camera"
	"photobooth-kiosk/internal/geometry"
	"photobooth-kiosk/internal/media"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/models"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseArmed        Phase = "armed"
	PhaseCountingDown Phase = "counting_down"
	PhaseCapturing    Phase = "capturing"
	PhaseReviewing    Phase = "reviewing"
)

// Capture is one committed slot result. Still is never filtered.
type Capture struct {
	Index   int
	Still   *image.RGBA
	Clip    *models.Clip
	TakenAt time.Time
}

type Options struct {
	Countdown   int
	Tick        time.Duration
	PostRoll    time.Duration
	RecordClips bool
}

func DefaultOptions() Options {
	return Options{
		Countdown:   3,
		Tick:        time.Second,
		PostRoll:    time.Second,
		RecordClips: true,
	}
}

// Observer receives progress while a session or retake runs. Either field
// may be nil.
type Observer struct {
	OnTick    func(index, remaining int)
	OnCapture func(c Capture)
}

// Engine owns the capture list and is the only component that touches the
// camera manager.
type Engine struct {
	cameras   *camera.Manager
	opts      Options
	countdown *Countdown
	metrics   *metrics.Metrics

	mu           sync.Mutex
	stream       camera.Stream
	captures     []*Capture
	phase        Phase
	active       int
	cancel       context.CancelFunc
	running      bool
	onInvalidate func(index int)
}

func NewEngine(cameras *camera.Manager, opts Options, m *metrics.Metrics) *Engine {
	if opts.Countdown <= 0 {
		opts.Countdown = DefaultOptions().Countdown
	}
	return &Engine{
		cameras:   cameras,
		opts:      opts,
		countdown: NewCountdown(opts.Tick),
		metrics:   m,
		phase:     PhaseIdle,
		active:    -1,
	}
}

// OnInvalidate registers a hook fired when a retake replaces a committed
// capture. It is used to drop the derived asset set.
func (e *Engine) OnInvalidate(fn func(index int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onInvalidate = fn
}

// StartCamera acquires the shared stream once; repeated calls are no-ops.
func (e *Engine) StartCamera(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		return nil
	}
	stream, err := e.cameras.Acquire(ctx)
	if err != nil {
		return err
	}
	e.stream = stream
	return nil
}

// StopCamera cancels any in-flight capture and releases the stream.
func (e *Engine) StopCamera() error {
	e.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return nil
	}
	e.stream = nil
	return e.cameras.Release()
}

// RunSession captures every slot of tpl in order into a fresh capture list.
// Slot i+1 never starts before slot i is committed. Clips of the previous
// list are deleted.
func (e *Engine) RunSession(ctx context.Context, tpl *models.Template, obs Observer) error {
	ratios := geometry.CropRatios(tpl)
	n := len(ratios)

	ctx, stream, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer e.finish()

	e.mu.Lock()
	old := e.captures
	e.captures = make([]*Capture, n)
	e.mu.Unlock()
	media.RemoveClips(clipsOf(old))

	for i := 0; i < n; i++ {
		c, err := e.captureSlot(ctx, stream, i, ratios[i], obs)
		if err != nil {
			return err
		}
		e.commit(c, obs)
	}
	return nil
}

// Retake re-runs the slot routine for index i only. The replaced clip is
// deleted once the new capture is committed.
func (e *Engine) Retake(ctx context.Context, tpl *models.Template, i int, obs Observer) error {
	ratios := geometry.CropRatios(tpl)
	n := len(ratios)
	if i < 0 || i >= n {
		return models.NewValidationError("index", fmt.Sprintf("retake index %d out of range [0,%d)", i, n))
	}

	ctx, stream, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer e.finish()

	c, err := e.captureSlot(ctx, stream, i, ratios[i], obs)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if len(e.captures) < n {
		grown := make([]*Capture, n)
		copy(grown, e.captures)
		e.captures = grown
	}
	replaced := e.captures[i]
	hook := e.onInvalidate
	e.mu.Unlock()

	e.commit(c, obs)
	if replaced != nil && replaced.Clip != nil {
		media.RemoveClips([]*models.Clip{replaced.Clip})
	}
	if hook != nil {
		hook(i)
	}
	return nil
}

// Preview returns the newest camera frame for the live view. It does not
// touch the capture list.
func (e *Engine) Preview(ctx context.Context) (*image.RGBA, error) {
	e.mu.Lock()
	stream := e.stream
	e.mu.Unlock()
	if stream == nil {
		return nil, &models.DeviceError{Op: "preview", Err: errors.New("camera not started")}
	}
	frame, err := stream.Latest(ctx)
	if err != nil {
		return nil, &models.DeviceError{Op: "preview", Err: err}
	}
	return frame.Image, nil
}

// Cancel interrupts a running countdown or recording.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset cancels any run and drops every capture.
func (e *Engine) Reset() {
	e.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captures = nil
	e.phase = PhaseIdle
	e.active = -1
}

// Captures returns committed captures in slot order. Missing slots are nil.
func (e *Engine) Captures() []*Capture {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Capture, len(e.captures))
	copy(out, e.captures)
	return out
}

// Stills returns the committed stills in slot order, skipping gaps.
func (e *Engine) Stills() []image.Image {
	var out []image.Image
	for _, c := range e.Captures() {
		if c != nil && c.Still != nil {
			out = append(out, c.Still)
		}
	}
	return out
}

// Clips returns the recorded clips in slot order, skipping failed ones.
func (e *Engine) Clips() []*models.Clip {
	return clipsOf(e.Captures())
}

func clipsOf(caps []*Capture) []*models.Clip {
	var out []*models.Clip
	for _, c := range caps {
		if c != nil && c.Clip != nil {
			out = append(out, c.Clip)
		}
	}
	return out
}

// Complete reports whether every one of n slots has a still.
func (e *Engine) Complete(n int) bool {
	caps := e.Captures()
	if n <= 0 || len(caps) < n {
		return false
	}
	for _, c := range caps[:n] {
		if c == nil || c.Still == nil {
			return false
		}
	}
	return true
}

// Phase returns the current phase and the slot it applies to.
func (e *Engine) Phase() (Phase, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase, e.active
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) begin(ctx context.Context) (context.Context, camera.Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, nil, models.ErrCountdownBusy
	}
	if e.stream == nil {
		return nil, nil, &models.DeviceError{Op: "capture", Err: errors.New("camera not started")}
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	return ctx, e.stream, nil
}

func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = nil
	e.running = false
}

func (e *Engine) setPhase(p Phase, index int) {
	e.mu.Lock()
	e.phase = p
	e.active = index
	e.mu.Unlock()
}

func (e *Engine) commit(c *Capture, obs Observer) {
	e.mu.Lock()
	if c.Index < len(e.captures) {
		e.captures[c.Index] = c
	}
	e.mu.Unlock()
	e.metrics.Capture("ok")
	if obs.OnCapture != nil {
		obs.OnCapture(*c)
	}
}

// captureSlot runs armed -> counting_down -> capturing -> reviewing for one
// slot. The clip recording brackets the countdown and the still.
func (e *Engine) captureSlot(ctx context.Context, stream camera.Stream, index int, ratio float64, obs Observer) (*Capture, error) {
	e.setPhase(PhaseArmed, index)

	var rec camera.Recording
	if e.opts.RecordClips {
		r, err := stream.Record(ctx, index)
		if err != nil {
			log.Warn().Err(err).Int("slot", index).Msg("clip recording unavailable, keeping still only")
		} else {
			rec = r
		}
	}
	stopRecording := func() *models.Clip {
		if rec == nil {
			return nil
		}
		clip, err := rec.Stop()
		rec = nil
		if err != nil {
			log.Warn().Err(err).Int("slot", index).Msg("clip recording failed")
			return nil
		}
		return clip
	}
	discardRecording := func() {
		if clip := stopRecording(); clip != nil {
			media.RemoveClips([]*models.Clip{clip})
		}
	}

	e.setPhase(PhaseCountingDown, index)
	err := e.countdown.Run(ctx, e.opts.Countdown, func(remaining int) {
		if obs.OnTick != nil {
			obs.OnTick(index, remaining)
		}
	})
	if err != nil {
		discardRecording()
		if errors.Is(err, context.Canceled) {
			e.metrics.CountdownCanceled()
		}
		e.setPhase(PhaseIdle, -1)
		return nil, err
	}

	e.setPhase(PhaseCapturing, index)
	frame, err := stream.Latest(ctx)
	if err != nil {
		discardRecording()
		e.metrics.Capture("failed")
		e.setPhase(PhaseIdle, -1)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.DeviceError{Op: "read frame", Err: err}
	}
	still := CaptureFrame(frame.Image, ratio)

	if rec != nil && e.opts.PostRoll > 0 {
		t := time.NewTimer(e.opts.PostRoll)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
	clip := stopRecording()
	if ctx.Err() != nil {
		if clip != nil {
			media.RemoveClips([]*models.Clip{clip})
		}
		e.setPhase(PhaseIdle, -1)
		return nil, ctx.Err()
	}

	e.setPhase(PhaseReviewing, index)
	log.Debug().Int("slot", index).Bool("clip", clip != nil).Msg("slot captured")
	return &Capture{Index: index, Still: still, Clip: clip, TakenAt: time.Now()}, nil
}
