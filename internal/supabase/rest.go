package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"photobooth-kiosk/internal/models"
)

// RestStore implements store.RecordStore over PostgREST. It is used when the
// kiosk has Supabase credentials but no direct database connection.
type RestStore struct {
	client *supabase.Client
}

func NewRestStore(client *supabase.Client) *RestStore {
	return &RestStore{client: client}
}

type transactionRow struct {
	ID            uuid.UUID `json:"id"`
	TotalPrice    int64     `json:"total_price"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	TemplateID    *string   `json:"template_id"`
	PackageType   string    `json:"package_type"`
	Quantity      int       `json:"quantity"`
	PhotoURL      *string   `json:"photo_url"`
	Email         *string   `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toTransactionRow(tx *models.Transaction) transactionRow {
	row := transactionRow{
		ID:            tx.ID,
		TotalPrice:    tx.TotalPrice,
		PaymentMethod: tx.PaymentMethod,
		PaymentStatus: string(tx.PaymentStatus),
		PackageType:   string(tx.PackageType),
		Quantity:      tx.Quantity,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
	if tx.TemplateID.Valid {
		row.TemplateID = &tx.TemplateID.String
	}
	if tx.PhotoURL.Valid {
		row.PhotoURL = &tx.PhotoURL.String
	}
	if tx.Email.Valid {
		row.Email = &tx.Email.String
	}
	return row
}

func (r transactionRow) model() *models.Transaction {
	tx := &models.Transaction{
		ID:            r.ID,
		TotalPrice:    r.TotalPrice,
		PaymentMethod: r.PaymentMethod,
		PaymentStatus: models.PaymentStatus(r.PaymentStatus),
		PackageType:   models.PackageType(r.PackageType),
		Quantity:      r.Quantity,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.TemplateID != nil {
		tx.TemplateID.String, tx.TemplateID.Valid = *r.TemplateID, true
	}
	if r.PhotoURL != nil {
		tx.PhotoURL.String, tx.PhotoURL.Valid = *r.PhotoURL, true
	}
	if r.Email != nil {
		tx.Email.String, tx.Email.Valid = *r.Email, true
	}
	return tx
}

func (s *RestStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	var out []transactionRow
	_, err := s.client.From("transactions").
		Insert(toTransactionRow(tx), false, "", "representation", "").
		ExecuteTo(&out)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *RestStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var rows []transactionRow
	_, err := s.client.From("transactions").
		Select("*", "", false).
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, models.ErrNotFound)
	}
	return rows[0].model(), nil
}

func (s *RestStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	row := toTransactionRow(tx)
	row.UpdatedAt = time.Now().UTC()

	var out []transactionRow
	_, err := s.client.From("transactions").
		Update(row, "representation", "").
		Eq("id", tx.ID.String()).
		ExecuteTo(&out)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if len(out) == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, models.ErrNotFound)
	}
	return nil
}

type templateRow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	FilePath    string          `json:"file_path"`
	Width       *int            `json:"width"`
	Height      *int            `json:"height"`
	Type        *string         `json:"type"`
	IsActive    bool            `json:"is_active"`
	SlotsConfig json.RawMessage `json:"slots_config"`
	PhotoX      *float64        `json:"photo_x"`
	PhotoY      *float64        `json:"photo_y"`
	PhotoWidth  *float64        `json:"photo_width"`
	PhotoHeight *float64        `json:"photo_height"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (r templateRow) model() (*models.Template, error) {
	t := &models.Template{
		ID:          r.ID,
		Name:        r.Name,
		FilePath:    r.FilePath,
		IsActive:    r.IsActive,
		PhotoX:      r.PhotoX,
		PhotoY:      r.PhotoY,
		PhotoWidth:  r.PhotoWidth,
		PhotoHeight: r.PhotoHeight,
		CreatedAt:   r.CreatedAt,
	}
	if r.Width != nil {
		t.Width = *r.Width
	}
	if r.Height != nil {
		t.Height = *r.Height
	}
	if r.Type != nil {
		t.Type = models.PackageType(*r.Type)
	}
	slots, err := models.DecodeSlots(r.SlotsConfig)
	if err != nil {
		return nil, err
	}
	t.Slots = slots
	return t, nil
}

func (s *RestStore) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var rows []templateRow
	_, err := s.client.From("templates").
		Select("*", "", false).
		Eq("is_active", "true").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]models.Template, 0, len(rows))
	for _, row := range rows {
		t, err := row.model()
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", row.ID, err)
		}
		templates = append(templates, *t)
	}
	slices.SortFunc(templates, func(a, b models.Template) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return templates, nil
}

func (s *RestStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var rows []templateRow
	_, err := s.client.From("templates").
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("template %s: %w", id, models.ErrNotFound)
	}
	return rows[0].model()
}

// templateInsert leaves created_at to the database default.
type templateInsert struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	FilePath    string          `json:"file_path"`
	Width       *int            `json:"width,omitempty"`
	Height      *int            `json:"height,omitempty"`
	Type        *string         `json:"type,omitempty"`
	IsActive    bool            `json:"is_active"`
	SlotsConfig json.RawMessage `json:"slots_config,omitempty"`
}

func (s *RestStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	row := templateInsert{
		ID:       t.ID,
		Name:     t.Name,
		FilePath: t.FilePath,
		IsActive: t.IsActive,
	}
	if t.Width > 0 && t.Height > 0 {
		row.Width, row.Height = &t.Width, &t.Height
	}
	if t.Type != "" {
		pkg := string(t.Type)
		row.Type = &pkg
	}
	if len(t.Slots) > 0 {
		raw, err := json.Marshal(t.Slots)
		if err != nil {
			return fmt.Errorf("failed to encode slots: %w", err)
		}
		row.SlotsConfig = raw
	}

	var out []templateRow
	_, err := s.client.From("templates").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&out)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if len(out) > 0 {
		t.CreatedAt = out[0].CreatedAt
	}
	return nil
}

type pricingRow struct {
	BasePrice        int64     `json:"base_price"`
	PerPrintPrice    int64     `json:"per_print_price"`
	SessionCountdown *int      `json:"session_countdown"`
	Price2D          *int64    `json:"price_2d"`
	Price4R          *int64    `json:"price_4r"`
	PerPrintPrice2D  *int64    `json:"per_print_price_2d"`
	PerPrintPrice4R  *int64    `json:"per_print_price_4r"`
	Is2DEnabled      *bool     `json:"is_2d_enabled"`
	Is4REnabled      *bool     `json:"is_4r_enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s *RestStore) GetPricing(ctx context.Context) (models.Pricing, error) {
	var rows []pricingRow
	_, err := s.client.From("pricing_settings").
		Select("*", "", false).
		ExecuteTo(&rows)
	if err != nil {
		return models.DefaultPricing(), fmt.Errorf("failed to get pricing: %w", err)
	}
	if len(rows) == 0 {
		return models.DefaultPricing(), nil
	}
	latest := slices.MaxFunc(rows, func(a, b pricingRow) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	p := models.DefaultPricing()
	p.BasePrice, p.PerPrintPrice = latest.BasePrice, latest.PerPrintPrice
	p.Price2D, p.Price4R = p.BasePrice, p.BasePrice
	p.PerPrintPrice2D, p.PerPrintPrice4R = p.PerPrintPrice, p.PerPrintPrice
	if latest.Price2D != nil && *latest.Price2D > 0 {
		p.Price2D = *latest.Price2D
	}
	if latest.Price4R != nil && *latest.Price4R > 0 {
		p.Price4R = *latest.Price4R
	}
	if latest.PerPrintPrice2D != nil {
		p.PerPrintPrice2D = *latest.PerPrintPrice2D
	}
	if latest.PerPrintPrice4R != nil {
		p.PerPrintPrice4R = *latest.PerPrintPrice4R
	}
	if latest.Is2DEnabled != nil {
		p.Is2DEnabled = *latest.Is2DEnabled
	}
	if latest.Is4REnabled != nil {
		p.Is4REnabled = *latest.Is4REnabled
	}
	if latest.SessionCountdown != nil && *latest.SessionCountdown > 0 {
		p.SessionCountdownSeconds = *latest.SessionCountdown
	}
	return p, nil
}

type paymentMethodRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsActive  bool   `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

func (s *RestStore) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var rows []paymentMethodRow
	_, err := s.client.From("payment_methods").
		Select("*", "", false).
		Eq("is_active", "true").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	if len(rows) == 0 {
		return models.DefaultPaymentMethods(), nil
	}
	slices.SortStableFunc(rows, func(a, b paymentMethodRow) int {
		if c := a.SortOrder - b.SortOrder; c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	methods := make([]models.PaymentMethod, len(rows))
	for i, row := range rows {
		methods[i] = models.PaymentMethod{ID: row.ID, Name: row.Name, Type: row.Type, IsActive: row.IsActive}
	}
	return methods, nil
}
