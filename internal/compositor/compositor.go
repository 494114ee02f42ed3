// Package compositor renders captures into a template.
package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"

	"photobooth-kiosk/internal/geometry"
	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/models"
)

// Background fills the canvas behind the slots.
var Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}

type Input struct {
	Stills  []image.Image
	Rects   []geometry.Rect
	Filter  Filter
	Artwork image.Image
	// Width and Height are the template's native size. When zero the
	// artwork bounds are used.
	Width  int
	Height int
}

type Compositor struct {
	metrics *metrics.Metrics
}

func New(m *metrics.Metrics) *Compositor {
	return &Compositor{metrics: m}
}

// Composite draws each still into its slot with the filter, then the
// artwork on top, unfiltered.
func (c *Compositor) Composite(in Input) (*image.RGBA, error) {
	start := time.Now()
	defer c.metrics.ObserveComposite(start)
	return Composite(in)
}

// Composite is the stateless form of Compositor.Composite.
func Composite(in Input) (*image.RGBA, error) {
	w, h := in.Width, in.Height
	if (w <= 0 || h <= 0) && in.Artwork != nil {
		w, h = in.Artwork.Bounds().Dx(), in.Artwork.Bounds().Dy()
	}
	if w <= 0 || h <= 0 {
		return nil, models.NewValidationError("template", "template has no dimensions")
	}
	if len(in.Stills) == 0 {
		return nil, fmt.Errorf("composite: %w", models.ErrNoFrames)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: Background}, image.Point{}, xdraw.Src)

	for i, rect := range in.Rects {
		if i >= len(in.Stills) || in.Stills[i] == nil {
			continue
		}
		dst := rect.Pixels(w, h).Intersect(canvas.Bounds())
		if dst.Empty() {
			continue
		}
		slot := Cover(in.Stills[i], dst.Dx(), dst.Dy())
		in.Filter.Apply(slot)
		xdraw.Draw(canvas, dst, slot, image.Point{}, xdraw.Src)
	}

	if in.Artwork != nil {
		ab := in.Artwork.Bounds()
		if ab.Dx() == w && ab.Dy() == h {
			xdraw.Draw(canvas, canvas.Bounds(), in.Artwork, ab.Min, xdraw.Over)
		} else {
			xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), in.Artwork, ab, xdraw.Over, nil)
		}
	}

	return canvas, nil
}

// Cover scales src to fill w x h, cropping the overflow evenly.
func Cover(src image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	if sb.Empty() {
		return out
	}
	crop := coverCrop(sb, float64(w)/float64(h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, crop, xdraw.Src, nil)
	return out
}

func coverCrop(b image.Rectangle, ratio float64) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	cw, ch := sw, sh
	if float64(sw)/float64(sh) > ratio {
		cw = int(float64(sh)*ratio + 0.5)
	} else {
		ch = int(float64(sw)/ratio + 0.5)
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage reads png, jpeg or gif bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
