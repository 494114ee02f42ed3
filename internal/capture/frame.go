package capture

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"photobooth-kiosk/internal/geometry"
)

// CropRect is the largest rect of the given aspect ratio centered in b.
func CropRect(b image.Rectangle, ratio float64) image.Rectangle {
	if ratio <= 0 {
		ratio = geometry.DefaultAspectRatio
	}
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return b
	}

	cropW, cropH := w, h
	if float64(w)/float64(h) > ratio {
		cropW = int(float64(h)*ratio + 0.5)
	} else {
		cropH = int(float64(w)/ratio + 0.5)
	}
	x0 := b.Min.X + (w-cropW)/2
	y0 := b.Min.Y + (h-cropH)/2
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}

// CaptureFrame center-crops src to ratio and copies it into a new still.
// No filter is ever applied here.
func CaptureFrame(src image.Image, ratio float64) *image.RGBA {
	crop := CropRect(src.Bounds(), ratio)
	still := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	xdraw.Copy(still, image.Point{}, src, crop, xdraw.Src, nil)
	return still
}
