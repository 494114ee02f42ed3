package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"photobooth-kiosk/internal/models"
)

var ErrEmailDisabled = errors.New("email delivery is not configured")

// Email is the payload posted to the mail relay.
type Email struct {
	To           string `json:"to"`
	PhotoURL     string `json:"photo_url"`
	AnimationURL string `json:"animation_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// ValidateEmail normalizes an address typed on the kiosk keyboard.
func ValidateEmail(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", models.NewValidationError("email", "email is required")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", models.NewValidationError("email", fmt.Sprintf("invalid email address %q", address))
	}
	return parsed.Address, nil
}

// HTTPEmailSender posts Email as JSON to a relay endpoint.
type HTTPEmailSender struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPEmailSender(endpoint, apiKey string) *HTTPEmailSender {
	return &HTTPEmailSender{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPEmailSender) Send(ctx context.Context, email Email) error {
	if s == nil || s.endpoint == "" {
		return ErrEmailDisabled
	}
	if email.PhotoURL == "" {
		return models.NewValidationError("photo_url", "photo is not uploaded yet")
	}

	jsonData, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to send email: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}
