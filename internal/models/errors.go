package models

import (
	"errors"
	"fmt"
)

var (
	// Device errors
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrCountdownBusy     = errors.New("countdown already running")

	// Pipeline errors
	ErrEncodeFailed = errors.New("encode failed")
	ErrNoFrames     = errors.New("no frames to encode")
	ErrUploadFailed = errors.New("upload failed")

	// Session errors
	ErrTimeout                = errors.New("session timed out")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidAction          = errors.New("action not allowed in current step")

	// Validation errors
	ErrInvalidTemplate = errors.New("invalid template")
	ErrInvalidInput    = errors.New("invalid input")

	ErrNotFound = errors.New("not found")
)

// DeviceError reports a camera that could not be opened or read. It always
// matches ErrCameraUnavailable.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("camera %s: %v", e.Op, ErrCameraUnavailable)
}

func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCameraUnavailable}
	}
	return []error{ErrCameraUnavailable, e.Err}
}

// EncodeError reports a failed animation or video job.
type EncodeError struct {
	Asset string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Asset, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	return []error{ErrEncodeFailed, e.Err}
}

// UploadError reports an object storage write that failed after retries.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() []error {
	return []error{ErrUploadFailed, e.Err}
}

// TimeoutError reports an expired kiosk timer.
type TimeoutError struct {
	Timer string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timer expired", e.Timer)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ValidationError represents malformed input or template data
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
