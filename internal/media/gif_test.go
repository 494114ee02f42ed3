package media_test

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/media"
	"photobooth-kiosk/internal/models"
)


func rgba(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestEncodeGIF_FramesDelayAndLoop(t *testing.T) {
	stills := []image.Image{
		rgba(60, 80, color.RGBA{R: 255, A: 255}),
		rgba(60, 80, color.RGBA{G: 255, A: 255}),
		rgba(120, 160, color.RGBA{B: 255, A: 255}),
	}

	data, err := media.EncodeGIF(stills, 500*time.Millisecond)

	require.NoError(t, err)
	require.NotEmpty(t, data)
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 3)
	assert.Equal(t, []int{50, 50, 50}, decoded.Delay)
	assert.Equal(t, 0, decoded.LoopCount)
	for _, frame := range decoded.Image {
		assert.Equal(t, image.Rect(0, 0, 60, 80), frame.Bounds())
	}
}

func TestEncodeGIF_UsesWhateverIsAvailable(t *testing.T) {
	stills := []image.Image{nil, rgba(10, 10, color.RGBA{A: 255}), nil}

	data, err := media.EncodeGIF(stills, 0)

	require.NoError(t, err)
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 1)
	assert.Equal(t, []int{50}, decoded.Delay)
}

func TestEncodeGIF_NoStills(t *testing.T) {
	_, err := media.EncodeGIF(nil, time.Second)

	var encErr *models.EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.ErrorIs(t, err, models.ErrNoFrames)
	assert.ErrorIs(t, err, models.ErrEncodeFailed)
}
