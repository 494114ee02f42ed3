package supabase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// EventPublisher records booth lifecycle events in the booth_events table.
// Inserts there fan out to dashboards through Supabase Realtime.
type EventPublisher struct {
	client  *supabase.Client
	boothID string
}

func NewEventPublisher(client *supabase.Client, boothID string) *EventPublisher {
	return &EventPublisher{client: client, boothID: boothID}
}

type eventRow struct {
	ID            uuid.UUID      `json:"id"`
	BoothID       string         `json:"booth_id"`
	TransactionID *uuid.UUID     `json:"transaction_id,omitempty"`
	Event         string         `json:"event"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (p *EventPublisher) Publish(txID uuid.UUID, event string, payload map[string]any) error {
	row := eventRow{
		ID:        uuid.New(),
		BoothID:   p.boothID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if txID != uuid.Nil {
		row.TransactionID = &txID
	}

	var out []eventRow
	if _, err := p.client.From("booth_events").Insert(row, false, "", "minimal", "").ExecuteTo(&out); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event, err)
	}
	return nil
}

// AssetPayload is the payload of the asset_* events.
func AssetPayload(asset, status, url string) map[string]any {
	return map[string]any{"asset": asset, "status": status, "url": url}
}
