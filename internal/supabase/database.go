package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"photobooth-kiosk/internal/models"
)

// DatabaseClient talks to the Supabase Postgres directly.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

const transactionColumns = `id, total_price, payment_method, payment_status, template_id,
	package_type, quantity, photo_url, email, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	var tx models.Transaction
	var status, pkg string
	err := row.Scan(
		&tx.ID, &tx.TotalPrice, &tx.PaymentMethod, &status, &tx.TemplateID,
		&pkg, &tx.Quantity, &tx.PhotoURL, &tx.Email, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.PaymentStatus = models.PaymentStatus(status)
	tx.PackageType = models.PackageType(pkg)
	return &tx, nil
}

func (d *DatabaseClient) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO transactions (id, total_price, payment_method, payment_status, template_id,
			package_type, quantity, photo_url, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, tx.ID, tx.TotalPrice, tx.PaymentMethod, string(tx.PaymentStatus), tx.TemplateID,
		string(tx.PackageType), tx.Quantity, tx.PhotoURL, tx.Email, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (d *DatabaseClient) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE transactions
		SET total_price = $1, payment_method = $2, payment_status = $3, template_id = $4,
			package_type = $5, quantity = $6, photo_url = $7, email = $8, updated_at = NOW()
		WHERE id = $9
	`, tx.TotalPrice, tx.PaymentMethod, string(tx.PaymentStatus), tx.TemplateID,
		string(tx.PackageType), tx.Quantity, tx.PhotoURL, tx.Email, tx.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, models.ErrNotFound)
	}
	return nil
}

const templateColumns = `id, name, file_path, COALESCE(width, 0), COALESCE(height, 0), COALESCE(type, ''),
	is_active, slots_config, photo_x, photo_y, photo_width, photo_height, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (*models.Template, error) {
	var t models.Template
	var pkg string
	var slots []byte
	var px, py, pw, ph sql.NullFloat64
	err := row.Scan(
		&t.ID, &t.Name, &t.FilePath, &t.Width, &t.Height, &pkg,
		&t.IsActive, &slots, &px, &py, &pw, &ph, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = models.PackageType(pkg)
	t.PhotoX, t.PhotoY = nullFloat(px), nullFloat(py)
	t.PhotoWidth, t.PhotoHeight = nullFloat(pw), nullFloat(ph)
	if t.Slots, err = models.DecodeSlots(slots); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (d *DatabaseClient) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE is_active = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (d *DatabaseClient) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (d *DatabaseClient) CreateTemplate(ctx context.Context, t *models.Template) error {
	var slots []byte
	if len(t.Slots) > 0 {
		var err error
		if slots, err = json.Marshal(t.Slots); err != nil {
			return fmt.Errorf("failed to encode slots: %w", err)
		}
	}
	var pkg sql.NullString
	if t.Type != "" {
		pkg = sql.NullString{String: string(t.Type), Valid: true}
	}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO templates (id, name, file_path, width, height, type, is_active, slots_config)
		VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.Name, t.FilePath, t.Width, t.Height, pkg, t.IsActive, slots).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetPricing(ctx context.Context) (models.Pricing, error) {
	p := models.DefaultPricing()
	var price2d, price4r, per2d, per4r sql.NullInt64
	var countdown sql.NullInt32
	var is2d, is4r sql.NullBool
	err := d.db.QueryRowContext(ctx, `
		SELECT base_price, per_print_price, session_countdown, price_2d, price_4r,
			is_2d_enabled, is_4r_enabled, per_print_price_2d, per_print_price_4r
		FROM pricing_settings
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(&p.BasePrice, &p.PerPrintPrice, &countdown, &price2d, &price4r, &is2d, &is4r, &per2d, &per4r)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPricing(), nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to get pricing: %w", err)
	}

	p.Price2D, p.Price4R = p.BasePrice, p.BasePrice
	p.PerPrintPrice2D, p.PerPrintPrice4R = p.PerPrintPrice, p.PerPrintPrice
	if price2d.Valid && price2d.Int64 > 0 {
		p.Price2D = price2d.Int64
	}
	if price4r.Valid && price4r.Int64 > 0 {
		p.Price4R = price4r.Int64
	}
	if per2d.Valid {
		p.PerPrintPrice2D = per2d.Int64
	}
	if per4r.Valid {
		p.PerPrintPrice4R = per4r.Int64
	}
	if is2d.Valid {
		p.Is2DEnabled = is2d.Bool
	}
	if is4r.Valid {
		p.Is4REnabled = is4r.Bool
	}
	if countdown.Valid && countdown.Int32 > 0 {
		p.SessionCountdownSeconds = int(countdown.Int32)
	}
	return p, nil
}

func (d *DatabaseClient) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, type, is_active
		FROM payment_methods
		WHERE is_active = TRUE
		ORDER BY sort_order ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []models.PaymentMethod
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return models.DefaultPaymentMethods(), nil
	}
	return methods, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
