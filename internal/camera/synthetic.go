package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"photobooth-kiosk/internal/models"
)

// SyntheticDevice produces generated frames. It backs demo mode and tests.
type SyntheticDevice struct {
	Width  int
	Height int
	// Color picks the fill for the n-th frame handed out by Latest.
	Color func(n int) color.Color
	// OpenErr, when set, is returned by Open.
	OpenErr error
	// RecordErr, when set, is returned by Record.
	RecordErr error
	// ClipDir, when set, makes every stopped recording write an empty
	// file there instead of returning an in-memory clip.
	ClipDir string

	opens atomic.Int32
	clips atomic.Int32
}

// SolidColor is a SyntheticDevice that always returns c.
func SolidColor(w, h int, c color.Color) *SyntheticDevice {
	return &SyntheticDevice{Width: w, Height: h, Color: func(int) color.Color { return c }}
}

func (d *SyntheticDevice) Open(ctx context.Context) (Stream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.opens.Add(1)
	return &syntheticStream{device: d}, nil
}

// Opens reports how many times the device was opened.
func (d *SyntheticDevice) Opens() int {
	return int(d.opens.Load())
}

type syntheticStream struct {
	device *SyntheticDevice

	mu        sync.Mutex
	n         int
	closed    bool
	recording bool
}

func (s *syntheticStream) Latest(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("stream closed")
	}

	c := color.Color(color.Gray{Y: 128})
	if s.device.Color != nil {
		c = s.device.Color(s.n)
	}
	s.n++

	img := image.NewRGBA(image.Rect(0, 0, s.device.Width, s.device.Height))
	r, g, b, a := c.RGBA()
	fill := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = fill.R
		img.Pix[i+1] = fill.G
		img.Pix[i+2] = fill.B
		img.Pix[i+3] = fill.A
	}
	return &Frame{Image: img, Seq: uint64(s.n), Timestamp: time.Now()}, nil
}

func (s *syntheticStream) Record(ctx context.Context, index int) (Recording, error) {
	if s.device.RecordErr != nil {
		return nil, s.device.RecordErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return nil, errors.New("recording already in progress")
	}
	s.recording = true
	return &syntheticRecording{stream: s, index: index, started: time.Now()}, nil
}

func (s *syntheticStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type syntheticRecording struct {
	stream  *syntheticStream
	index   int
	started time.Time
	once    sync.Once
}

func (r *syntheticRecording) Stop() (*models.Clip, error) {
	r.once.Do(func() {
		r.stream.mu.Lock()
		r.stream.recording = false
		r.stream.mu.Unlock()
	})
	path := fmt.Sprintf("synthetic://clip-%d.webm", r.index)
	if dir := r.stream.device.ClipDir; dir != "" {
		n := r.stream.device.clips.Add(1)
		path = filepath.Join(dir, fmt.Sprintf("clip-%d-%d.webm", r.index, n))
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, fmt.Errorf("write clip: %w", err)
		}
	}
	return &models.Clip{
		Index:     r.index,
		Path:      path,
		Duration:  time.Since(r.started),
		CreatedAt: time.Now(),
	}, nil
}
