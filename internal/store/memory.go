package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth-kiosk/internal/models"
)

// MemoryStore keeps records in process. It backs offline mode and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*models.Transaction
	templates    map[string]models.Template
	pricing      models.Pricing
	methods      []models.PaymentMethod
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[uuid.UUID]*models.Transaction),
		templates:    make(map[string]models.Template),
		pricing:      models.DefaultPricing(),
	}
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, models.ErrNotFound)
	}
	return tx.Clone(), nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, models.ErrNotFound)
	}
	c := tx.Clone()
	c.UpdatedAt = time.Now().UTC()
	s.transactions[tx.ID] = c
	return nil
}

func (s *MemoryStore) ListTemplates(ctx context.Context) ([]models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, models.ErrNotFound)
	}
	return &t, nil
}

func (s *MemoryStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return fmt.Errorf("template %s already exists", t.ID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.templates[t.ID] = *t
	return nil
}

func (s *MemoryStore) GetPricing(ctx context.Context) (models.Pricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pricing, nil
}

func (s *MemoryStore) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.methods) == 0 {
		return models.DefaultPaymentMethods(), nil
	}
	out := make([]models.PaymentMethod, len(s.methods))
	copy(out, s.methods)
	return out, nil
}

func (s *MemoryStore) PutTemplate(t models.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.templates[t.ID] = t
}

func (s *MemoryStore) SetPricing(p models.Pricing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricing = p
}

func (s *MemoryStore) SetPaymentMethods(methods []models.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = methods
}
