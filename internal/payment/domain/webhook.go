package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookRecord journals every verified gateway event so redeliveries can be
// recognised.
type WebhookRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	ObjectID        *string        `json:"object_id" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	Outcome         *string        `json:"outcome"`
}

func (WebhookRecord) TableName() string { return "payment_webhook_events" }

type WebhookRepository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*WebhookRecord, error)
	InsertEvent(ctx context.Context, db *gorm.DB, record *WebhookRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error
	ListPending(ctx context.Context, db *gorm.DB, receivedBefore time.Time, limit int) ([]WebhookRecord, error)
}

type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, signatureHeader string) (WebhookOutcome, error)
	// Replay settles a journaled event that was never marked processed.
	Replay(ctx context.Context, record WebhookRecord) (WebhookOutcome, error)
}

type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookRejected  WebhookOutcome = "rejected"
)
