// Package geometry turns template slot definitions into render-independent
// percentage rectangles.
package geometry

import (
	"image"
	"math"

	"photobooth-kiosk/internal/models"
)

// DefaultAspectRatio is width/height of a portrait 3:4 photo.
const DefaultAspectRatio = 3.0 / 4.0

// Rect is a slot position expressed in percent of the template box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pixels converts the rect back into pixel space for a canvas of w x h.
func (r Rect) Pixels(w, h int) image.Rectangle {
	x0 := int(math.Round(r.X * float64(w) / 100))
	y0 := int(math.Round(r.Y * float64(h) / 100))
	x1 := int(math.Round((r.X + r.Width) * float64(w) / 100))
	y1 := int(math.Round((r.Y + r.Height) * float64(h) / 100))
	return image.Rect(x0, y0, x1, y1)
}

// AspectRatio is width/height, zero when the rect is empty.
func (r Rect) AspectRatio() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width / r.Height
}

// Resolve returns the slot as percentages of a templateW x templateH box.
// Populated percent fields are returned unchanged.
func Resolve(slot models.Slot, templateW, templateH int) Rect {
	if slot.HasPercent() {
		return Rect{
			X:      *slot.XPercent,
			Y:      *slot.YPercent,
			Width:  *slot.WidthPercent,
			Height: *slot.HeightPercent,
		}
	}
	if templateW <= 0 || templateH <= 0 {
		return Rect{}
	}
	w, h := float64(templateW), float64(templateH)
	return Rect{
		X:      slot.X / w * 100,
		Y:      slot.Y / h * 100,
		Width:  slot.Width / w * 100,
		Height: slot.Height / h * 100,
	}
}

// ResolveTemplate resolves every slot of tpl in order. A template with only
// the flat photo_* fields yields one slot. When nothing resolves, a single
// full-frame 3:4 slot is returned together with a *models.ValidationError;
// callers are expected to log it and continue with the fallback.
func ResolveTemplate(tpl *models.Template) ([]Rect, error) {
	if tpl == nil {
		return []Rect{FullFrame(0, 0)}, models.NewValidationError("template", "missing template")
	}

	slots := tpl.Slots
	if len(slots) == 0 && tpl.HasLegacySlot() {
		slots = []models.Slot{legacySlot(tpl)}
	}

	rects := make([]Rect, 0, len(slots))
	for _, slot := range slots {
		r := Resolve(slot, tpl.Width, tpl.Height)
		if r.Width <= 0 || r.Height <= 0 {
			continue
		}
		rects = append(rects, r)
	}

	if len(rects) == 0 {
		return []Rect{FullFrame(tpl.Width, tpl.Height)}, models.NewValidationError("slots_config",
			"template has no resolvable slots, using full frame")
	}
	return rects, nil
}

// SlotCount is the number of captures a template needs.
func SlotCount(tpl *models.Template) int {
	rects, _ := ResolveTemplate(tpl)
	return len(rects)
}

// FullFrame is the largest centered 3:4 rect inside a w x h template. With
// unknown dimensions the whole box is used.
func FullFrame(w, h int) Rect {
	if w <= 0 || h <= 0 {
		return Rect{X: 0, Y: 0, Width: 100, Height: 100}
	}
	templateRatio := float64(w) / float64(h)
	if templateRatio > DefaultAspectRatio {
		width := DefaultAspectRatio / templateRatio * 100
		return Rect{X: (100 - width) / 2, Y: 0, Width: width, Height: 100}
	}
	height := templateRatio / DefaultAspectRatio * 100
	return Rect{X: 0, Y: (100 - height) / 2, Width: 100, Height: height}
}

// AspectRatio is the crop ratio for capture index i, taken from the rect
// that capture lands in after ResolveTemplate. Out of range indexes get 3:4.
func AspectRatio(tpl *models.Template, i int) float64 {
	ratios := CropRatios(tpl)
	if i >= 0 && i < len(ratios) {
		return ratios[i]
	}
	return DefaultAspectRatio
}

// CropRatios returns one width/height ratio per resolved slot, in pixel
// space, so captures match the rects they are composited into.
func CropRatios(tpl *models.Template) []float64 {
	rects, _ := ResolveTemplate(tpl)
	ratios := make([]float64, len(rects))
	for i, r := range rects {
		ratios[i] = cropRatio(tpl, r)
	}
	return ratios
}

func cropRatio(tpl *models.Template, r Rect) float64 {
	if tpl == nil {
		return DefaultAspectRatio
	}
	if tpl.Width > 0 && tpl.Height > 0 {
		if ratio := r.AspectRatio() * float64(tpl.Width) / float64(tpl.Height); ratio > 0 {
			return ratio
		}
	}
	// Percent rects of a template with unknown size.
	if tpl.HasLegacySlot() {
		return *tpl.PhotoWidth / *tpl.PhotoHeight
	}
	return DefaultAspectRatio
}

func legacySlot(tpl *models.Template) models.Slot {
	s := models.Slot{ID: "legacy-0", Width: *tpl.PhotoWidth, Height: *tpl.PhotoHeight}
	if tpl.PhotoX != nil {
		s.X = *tpl.PhotoX
	}
	if tpl.PhotoY != nil {
		s.Y = *tpl.PhotoY
	}
	return s
}
