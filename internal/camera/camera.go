// Package camera owns the kiosk's single video input.
package camera

import (
	"context"
	"image"
	"time"

	"photobooth-kiosk/internal/models"
)

// Frame is one decoded video frame. Frames are immutable once published.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

// Device opens a video stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera feed.
type Stream interface {
	// Latest returns the newest frame, waiting for the first one if needed.
	Latest(ctx context.Context) (*Frame, error)
	// Record starts a clip recording. Only one recording may be active.
	Record(ctx context.Context, index int) (Recording, error)
	Close() error
}

// Recording is an in-progress clip.
type Recording interface {
	Stop() (*models.Clip, error)
}
