package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.WebhookRepository {
	return &repo{}
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*domain.WebhookRecord, error) {
	var item domain.WebhookRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, object_id,
			payload, received_at, processed_at, outcome
		 FROM payment_webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, record *domain.WebhookRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_webhook_events (
			id, provider, provider_event_id, event_type, object_id,
			payload, received_at, processed_at, outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		record.ID,
		record.Provider,
		record.ProviderEventID,
		record.EventType,
		record.ObjectID,
		record.Payload,
		record.ReceivedAt,
		record.ProcessedAt,
		record.Outcome,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_webhook_events
		 SET processed_at = ?, outcome = ?
		 WHERE id = ?`,
		processedAt,
		outcome,
		id,
	).Error
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, receivedBefore time.Time, limit int) ([]domain.WebhookRecord, error) {
	var items []domain.WebhookRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, object_id,
			payload, received_at, processed_at, outcome
		 FROM payment_webhook_events
		 WHERE processed_at IS NULL AND received_at <= ?
		 ORDER BY received_at, id
		 LIMIT ?`,
		receivedBefore,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
