package models

import (
	"encoding/json"
	"time"
)

// Slot is a placement rectangle in template pixel space. The percent fields
// are optional and win over the pixel fields when all four are present.
type Slot struct {
	ID            string   `json:"id"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	Width         float64  `json:"width"`
	Height        float64  `json:"height"`
	XPercent      *float64 `json:"x_percent,omitempty"`
	YPercent      *float64 `json:"y_percent,omitempty"`
	WidthPercent  *float64 `json:"width_percent,omitempty"`
	HeightPercent *float64 `json:"height_percent,omitempty"`
}

func (s Slot) HasPercent() bool {
	return s.XPercent != nil && s.YPercent != nil && s.WidthPercent != nil && s.HeightPercent != nil
}

type Template struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	FilePath string      `json:"file_path"`
	URL      string      `json:"url,omitempty"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Type     PackageType `json:"type,omitempty"`
	IsActive bool        `json:"is_active"`
	Slots    []Slot      `json:"slots_config,omitempty"`

	// Flat single-slot fields kept by older templates.
	PhotoX      *float64 `json:"photo_x,omitempty"`
	PhotoY      *float64 `json:"photo_y,omitempty"`
	PhotoWidth  *float64 `json:"photo_width,omitempty"`
	PhotoHeight *float64 `json:"photo_height,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *Template) HasLegacySlot() bool {
	return t.PhotoWidth != nil && t.PhotoHeight != nil && *t.PhotoWidth > 0 && *t.PhotoHeight > 0
}

// DecodeSlots parses a slots_config column.
func DecodeSlots(raw []byte) ([]Slot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, NewValidationError("slots_config", err.Error())
	}
	return slots, nil
}
