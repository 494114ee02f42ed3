// Package delivery hands finished sessions to the guest: download links,
// QR codes, email and prints.
package delivery

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"photobooth-kiosk/internal/services"
	"photobooth-kiosk/internal/store"
)

const DefaultQRSize = 256

// DownloadURL is the stable page link encoded in the QR code. It outlives
// the signed URLs it resolves to.
func DownloadURL(baseURL string, txID uuid.UUID) string {
	return fmt.Sprintf("%s/download/%s", strings.TrimRight(baseURL, "/"), txID.String())
}

// QRCode renders content as a PNG of size x size pixels.
func QRCode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// Summary is what the delivery screen renders.
type Summary struct {
	TransactionID uuid.UUID             `json:"transaction_id"`
	DownloadURL   string                `json:"download_url"`
	PhotoURL      string                `json:"photo_url,omitempty"`
	AnimationURL  string                `json:"animation_url,omitempty"`
	VideoURL      string                `json:"video_url,omitempty"`
	Assets        []services.AssetState `json:"assets"`
	QRCode        []byte                `json:"qr_code,omitempty"`
}

// Available reports whether the asset can be offered. Anything that is not
// a successful upload shows as unavailable.
func (s Summary) Available(a store.Asset) bool {
	for _, st := range s.Assets {
		if st.Asset == a {
			return st.Available()
		}
	}
	return false
}

// Dispatcher builds delivery summaries and fans out to email and print.
type Dispatcher struct {
	baseURL string
	email   EmailSender
	printer Printer
	qrSize  int
}

func NewDispatcher(baseURL string, email EmailSender, printer Printer) *Dispatcher {
	return &Dispatcher{
		baseURL: baseURL,
		email:   email,
		printer: printer,
		qrSize:  DefaultQRSize,
	}
}

// Summary collects the asset set into URLs and a QR for the download page.
func (d *Dispatcher) Summary(txID uuid.UUID, assets []services.AssetState) (Summary, error) {
	s := Summary{
		TransactionID: txID,
		DownloadURL:   DownloadURL(d.baseURL, txID),
		Assets:        assets,
	}
	for _, st := range assets {
		if !st.Available() {
			continue
		}
		switch st.Asset {
		case store.AssetFinal:
			s.PhotoURL = st.URL
		case store.AssetAnimation:
			s.AnimationURL = st.URL
		case store.AssetVideo:
			s.VideoURL = st.URL
		}
	}

	png, err := QRCode(s.DownloadURL, d.qrSize)
	if err != nil {
		return s, err
	}
	s.QRCode = png
	return s, nil
}

func (d *Dispatcher) Email() EmailSender { return d.email }

func (d *Dispatcher) Printer() Printer { return d.printer }
