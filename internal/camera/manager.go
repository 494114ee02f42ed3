package camera

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/models"
)

// Manager guards the camera stream so that at most one is ever open.
// Acquire and Release are reference counted.
type Manager struct {
	device  Device
	metrics *metrics.Metrics

	mu     sync.Mutex
	stream Stream
	refs   int
}

func NewManager(device Device, m *metrics.Metrics) *Manager {
	return &Manager{device: device, metrics: m}
}

// Acquire returns the shared stream, opening the device on first use.
// Failures are returned as *models.DeviceError and are not retried.
func (m *Manager) Acquire(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		m.refs++
		return m.stream, nil
	}
	if m.device == nil {
		return nil, &models.DeviceError{Op: "open", Err: errors.New("no camera device configured")}
	}

	stream, err := m.device.Open(ctx)
	if err != nil {
		return nil, &models.DeviceError{Op: "open", Err: err}
	}

	m.stream = stream
	m.refs = 1
	m.metrics.Camera(true)
	log.Info().Msg("camera stream opened")
	return stream, nil
}

// Release drops one reference and closes the stream when none remain.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	m.refs--
	if m.refs > 0 {
		return nil
	}
	return m.closeLocked()
}

// ForceRelease closes the stream regardless of outstanding references.
func (m *Manager) ForceRelease() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	return m.closeLocked()
}

func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

func (m *Manager) closeLocked() error {
	err := m.stream.Close()
	m.stream = nil
	m.refs = 0
	m.metrics.Camera(false)
	log.Info().Msg("camera stream closed")
	return err
}
