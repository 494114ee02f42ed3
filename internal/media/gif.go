// Package media encodes the animated loop and merges capture clips.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"time"

	xdraw "golang.org/x/image/draw"

	"photobooth-kiosk/internal/models"
)

const DefaultGIFDelay = 500 * time.Millisecond

// EncodeGIF builds an infinitely looping animation from the raw stills.
// Every frame is sized to the first still.
func EncodeGIF(stills []image.Image, delay time.Duration) ([]byte, error) {
	var frames []image.Image
	for _, s := range stills {
		if s != nil {
			frames = append(frames, s)
		}
	}
	if len(frames) == 0 {
		return nil, &models.EncodeError{Asset: "animation", Err: models.ErrNoFrames}
	}
	if delay <= 0 {
		delay = DefaultGIFDelay
	}
	// gif delays are in hundredths of a second
	centis := int(delay / (10 * time.Millisecond))
	if centis < 1 {
		centis = 1
	}

	bounds := image.Rect(0, 0, frames[0].Bounds().Dx(), frames[0].Bounds().Dy())
	anim := &gif.GIF{LoopCount: 0}
	for _, src := range frames {
		var scaled image.Image = src
		if src.Bounds().Dx() != bounds.Dx() || src.Bounds().Dy() != bounds.Dy() {
			dst := image.NewRGBA(bounds)
			xdraw.CatmullRom.Scale(dst, bounds, src, src.Bounds(), xdraw.Src, nil)
			scaled = dst
		}
		frame := image.NewPaletted(bounds, palette.Plan9)
		xdraw.FloydSteinberg.Draw(frame, bounds, scaled, scaled.Bounds().Min)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, centis)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, &models.EncodeError{Asset: "animation", Err: fmt.Errorf("failed to encode gif: %w", err)}
	}
	return buf.Bytes(), nil
}
