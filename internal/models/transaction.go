package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentCanceled PaymentStatus = "canceled"
)

// paymentTransitions holds the only legal status moves. paid and canceled
// are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentCanceled},
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

type Transaction struct {
	ID            uuid.UUID
	TotalPrice    int64
	PaymentMethod string
	PaymentStatus PaymentStatus
	TemplateID    sql.NullString
	PackageType   PackageType
	Quantity      int
	PhotoURL      sql.NullString
	Email         sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTransaction creates a pending transaction for the given payment method.
func NewTransaction(method string, pkg PackageType) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:            uuid.New(),
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
		PackageType:   pkg,
		Quantity:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TransitionTo moves the payment status, rejecting anything other than
// pending -> paid or pending -> canceled.
func (t *Transaction) TransitionTo(target PaymentStatus) error {
	if !t.PaymentStatus.CanTransitionTo(target) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidStateTransition, t.PaymentStatus, target)
	}
	t.PaymentStatus = target
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Transaction) IsPaid() bool {
	return t.PaymentStatus == PaymentPaid
}

// Clone returns a copy safe to hand out of a lock.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
