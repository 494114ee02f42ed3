package testutil

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"strings"
	"sync"
	"time"

	"photobooth-kiosk/internal/models"
)

// --- Object Storage Mock ---

// MockObjectStorage is an in-memory store.ObjectStorage. Set the Func fields
// to inject failures.
type MockObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads map[string]int

	UploadFunc    func(ctx context.Context, path string, data []byte, contentType string) error
	SignedURLFunc func(ctx context.Context, path string, ttlSeconds int) (string, error)
}

func NewMockObjectStorage() *MockObjectStorage {
	return &MockObjectStorage{
		objects: make(map[string][]byte),
		uploads: make(map[string]int),
	}
}

func (m *MockObjectStorage) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	m.mu.Lock()
	m.uploads[path]++
	m.mu.Unlock()
	if m.UploadFunc != nil {
		if err := m.UploadFunc(ctx, path, data, contentType); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), data...)
	return nil
}

func (m *MockObjectStorage) SignedURL(ctx context.Context, path string, ttlSeconds int) (string, error) {
	if m.SignedURLFunc != nil {
		return m.SignedURLFunc(ctx, path, ttlSeconds)
	}
	return fmt.Sprintf("https://storage.test/%s?ttl=%d", path, ttlSeconds), nil
}

func (m *MockObjectStorage) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.objects {
		if strings.HasPrefix(p, strings.TrimRight(prefix, "/")+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockObjectStorage) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", path, models.ErrNotFound)
	}
	return data, nil
}

// Object returns a stored object.
func (m *MockObjectStorage) Object(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	return data, ok
}

// UploadCalls counts attempts for path, failed ones included.
func (m *MockObjectStorage) UploadCalls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads[path]
}

// FailPaths makes uploads whose path ends with any suffix fail.
func (m *MockObjectStorage) FailPaths(suffixes ...string) {
	m.UploadFunc = func(ctx context.Context, path string, data []byte, contentType string) error {
		for _, s := range suffixes {
			if strings.HasSuffix(path, s) {
				return fmt.Errorf("storage unavailable for %s", path)
			}
		}
		return nil
	}
}

// --- Merger Mock ---

// MockMerger stands in for ffmpeg.
type MockMerger struct {
	mu    sync.Mutex
	calls int
	Delay time.Duration

	MergeFunc func(ctx context.Context, clips []*models.Clip) ([]byte, error)
}

func (m *MockMerger) Merge(ctx context.Context, clips []*models.Clip) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.MergeFunc != nil {
		return m.MergeFunc(ctx, clips)
	}
	return []byte(fmt.Sprintf("webm:%d", len(clips))), nil
}

func (m *MockMerger) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Images ---

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// Template returns an active template of the given size with slots given as
// pixel rectangles.
func Template(id string, w, h int, slots ...image.Rectangle) models.Template {
	tpl := models.Template{
		ID:       id,
		Name:     id,
		FilePath: id + ".png",
		Width:    w,
		Height:   h,
		IsActive: true,
	}
	for i, r := range slots {
		tpl.Slots = append(tpl.Slots, models.Slot{
			ID:     fmt.Sprintf("slot-%d", i+1),
			X:      float64(r.Min.X),
			Y:      float64(r.Min.Y),
			Width:  float64(r.Dx()),
			Height: float64(r.Dy()),
		})
	}
	return tpl
}

// Clips returns n synthetic clip records.
func Clips(n int) []*models.Clip {
	out := make([]*models.Clip, n)
	for i := range out {
		out[i] = &models.Clip{Index: i, Path: fmt.Sprintf("synthetic://clip-%d.webm", i), Duration: time.Second, CreatedAt: time.Now()}
	}
	return out
}
