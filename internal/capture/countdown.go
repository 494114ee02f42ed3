package capture

import (
	"context"
	"sync/atomic"
	"time"

	"photobooth-kiosk/internal/models"
)

// Countdown is a cancellable one-shot timer. Only one run may be in flight.
type Countdown struct {
	tick    time.Duration
	running atomic.Bool
}

func NewCountdown(tick time.Duration) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{tick: tick}
}

// Run calls onTick with n, n-1, ..., 1, waiting one tick after each, and
// returns nil when the count reaches zero. A concurrent call returns
// models.ErrCountdownBusy.
func (c *Countdown) Run(ctx context.Context, n int, onTick func(remaining int)) error {
	if !c.running.CompareAndSwap(false, true) {
		return models.ErrCountdownBusy
	}
	defer c.running.Store(false)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for remaining := n; remaining > 0; remaining-- {
		if onTick != nil {
			onTick(remaining)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if onTick != nil {
		onTick(0)
	}
	return nil
}

func (c *Countdown) Running() bool {
	return c.running.Load()
}
