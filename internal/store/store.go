// Package store defines the record and object storage the kiosk depends on,
// plus the offline implementations used when Supabase is not configured.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"photobooth-kiosk/internal/models"
)

// RecordStore is point reads and writes over kiosk records.
type RecordStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	ListTemplates(ctx context.Context) ([]models.Template, error)
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetPricing(ctx context.Context) (models.Pricing, error)
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

// ObjectStorage is a bucket with time-limited retrieval links.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttlSeconds int) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, path string) ([]byte, error)
}

type Asset string

const (
	AssetFinal     Asset = "final"
	AssetAnimation Asset = "animation"
	AssetVideo     Asset = "video"
)

// Assets in delivery order.
var Assets = []Asset{AssetFinal, AssetAnimation, AssetVideo}

func (a Asset) FileName() string {
	switch a {
	case AssetFinal:
		return "final.png"
	case AssetAnimation:
		return "animation.gif"
	case AssetVideo:
		return "video.webm"
	}
	return string(a)
}

func (a Asset) ContentType() string {
	switch a {
	case AssetFinal:
		return "image/png"
	case AssetAnimation:
		return "image/gif"
	case AssetVideo:
		return "video/webm"
	}
	return "application/octet-stream"
}

// AssetFromFile maps a stored file name back to its asset.
func AssetFromFile(name string) (Asset, bool) {
	for _, a := range Assets {
		if a.FileName() == name {
			return a, true
		}
	}
	return "", false
}

// TransactionPrefix is the folder holding a transaction's assets.
func TransactionPrefix(id uuid.UUID) string {
	return fmt.Sprintf("transactions/%s", id.String())
}

// AssetPath is transactions/{id}/{final.png|animation.gif|video.webm}.
func AssetPath(id uuid.UUID, a Asset) string {
	return fmt.Sprintf("%s/%s", TransactionPrefix(id), a.FileName())
}
