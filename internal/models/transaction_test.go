package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobooth-kiosk/internal/models"
)

func TestTransaction_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    models.PaymentStatus
		to      models.PaymentStatus
		wantErr bool
	}{
		{"pending to paid", models.PaymentPending, models.PaymentPaid, false},
		{"pending to canceled", models.PaymentPending, models.PaymentCanceled, false},
		{"paid to canceled", models.PaymentPaid, models.PaymentCanceled, true},
		{"paid to pending", models.PaymentPaid, models.PaymentPending, true},
		{"paid to paid", models.PaymentPaid, models.PaymentPaid, true},
		{"canceled to paid", models.PaymentCanceled, models.PaymentPaid, true},
		{"canceled to pending", models.PaymentCanceled, models.PaymentPending, true},
		{"pending to pending", models.PaymentPending, models.PaymentPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := models.NewTransaction("cash", models.Package4R)
			tx.PaymentStatus = tt.from
			updated := tx.UpdatedAt

			err := tx.TransitionTo(tt.to)

			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidStateTransition)
				assert.Equal(t, tt.from, tx.PaymentStatus)
				assert.Equal(t, updated, tx.UpdatedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, tx.PaymentStatus)
		})
	}
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.False(t, models.PaymentPending.IsTerminal())
	assert.True(t, models.PaymentPaid.IsTerminal())
	assert.True(t, models.PaymentCanceled.IsTerminal())
}

func TestNewTransaction_StartsPending(t *testing.T) {
	tx := models.NewTransaction("qris", models.Package2D)

	assert.Equal(t, models.PaymentPending, tx.PaymentStatus)
	assert.Equal(t, 1, tx.Quantity)
	assert.False(t, tx.IsPaid())
}
