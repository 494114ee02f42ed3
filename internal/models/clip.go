package models

import "time"

// Clip is a short recording bracketing one capture.
type Clip struct {
	Index     int
	Path      string
	Duration  time.Duration
	HasAudio  bool
	CreatedAt time.Time
}
