package capture_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"photobooth-kiosk/internal/capture"
)

func TestCropRect(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
		ratio  float64
		want   image.Rectangle
	}{
		{"landscape to portrait", image.Rect(0, 0, 1280, 720), 3.0 / 4.0, image.Rect(370, 0, 910, 720)},
		{"portrait to square", image.Rect(0, 0, 600, 800), 1, image.Rect(0, 100, 600, 700)},
		{"same ratio", image.Rect(0, 0, 400, 300), 4.0 / 3.0, image.Rect(0, 0, 400, 300)},
		{"zero ratio uses 3:4", image.Rect(0, 0, 400, 400), 0, image.Rect(50, 0, 350, 400)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capture.CropRect(tt.bounds, tt.ratio))
		})
	}
}

func TestCaptureFrame_CopiesCenterUnfiltered(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 10, G: 20, B: 30, A: 255}
			if x < 10 || x >= 30 {
				c = color.RGBA{R: 255, A: 255}
			}
			src.SetRGBA(x, y, c)
		}
	}

	still := capture.CaptureFrame(src, 20.0/30.0)

	assert.Equal(t, image.Rect(0, 0, 20, 30), still.Bounds())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, still.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, still.RGBAAt(19, 29))
}
