package capture_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/capture"
	"photobooth-kiosk/internal/models"
)

func TestCountdown_TicksDownToZero(t *testing.T) {
	c := capture.NewCountdown(time.Millisecond)
	var ticks []int

	err := c.Run(context.Background(), 3, func(r int) { ticks = append(ticks, r) })

	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, ticks)
	assert.False(t, c.Running())
}

func TestCountdown_Cancel(t *testing.T) {
	c := capture.NewCountdown(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 5, nil) }()

	assert.Eventually(t, c.Running, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop after cancel")
	}
}

func TestCountdown_NoOverlap(t *testing.T) {
	c := capture.NewCountdown(20 * time.Millisecond)
	var wg sync.WaitGroup
	errs := make([]error, 2)

	started := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = c.Run(context.Background(), 2, func(r int) {
			if r == 2 {
				close(started)
			}
		})
	}()
	<-started
	errs[1] = c.Run(context.Background(), 1, nil)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], models.ErrCountdownBusy)
}
