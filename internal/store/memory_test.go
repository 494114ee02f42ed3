package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/models"
	"photobooth-kiosk/internal/store"
)

func TestMemoryStore_Transactions(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	tx := models.NewTransaction("QRIS", models.Package2D)

	require.NoError(t, s.CreateTransaction(ctx, tx))
	assert.Error(t, s.CreateTransaction(ctx, tx))

	require.NoError(t, tx.TransitionTo(models.PaymentPaid))
	require.NoError(t, s.UpdateTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)

	// returned records are copies
	got.Quantity = 99
	again, _ := s.GetTransaction(ctx, tx.ID)
	assert.Equal(t, 1, again.Quantity)

	_, err = s.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_TemplatesAndDefaults(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	s.PutTemplate(models.Template{ID: "on", IsActive: true})
	s.PutTemplate(models.Template{ID: "off", IsActive: false})

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "on", list[0].ID)

	_, err = s.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	pricing, err := s.GetPricing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), pricing.BasePrice)

	methods, err := s.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, methods[0].Name)
}

func TestAssetPath(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t, "transactions/11111111-2222-3333-4444-555555555555/final.png", store.AssetPath(id, store.AssetFinal))
	assert.Equal(t, "transactions/11111111-2222-3333-4444-555555555555/animation.gif", store.AssetPath(id, store.AssetAnimation))
	assert.Equal(t, "transactions/11111111-2222-3333-4444-555555555555/video.webm", store.AssetPath(id, store.AssetVideo))

	a, ok := store.AssetFromFile("video.webm")
	assert.True(t, ok)
	assert.Equal(t, store.AssetVideo, a)
}
