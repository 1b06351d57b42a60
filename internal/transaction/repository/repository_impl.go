package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/transaction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, user_id, event_id, kind, amount, currency, status,
	external_payment_ref, external_refund_ref, checkout_session_id, created_at, updated_at
 FROM transactions`

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, tx *domain.Transaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, event_id, kind, amount, currency, status,
			external_payment_ref, external_refund_ref, checkout_session_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		tx.ID,
		tx.UserID,
		tx.EventID,
		string(tx.Kind),
		tx.Amount,
		tx.Currency,
		string(tx.Status),
		tx.ExternalPaymentRef,
		tx.ExternalRefundRef,
		tx.CheckoutSessionID,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertRefund(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, event_id, kind, amount, currency, status,
			external_payment_ref, external_refund_ref, checkout_session_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.EventID,
		string(tx.Kind),
		tx.Amount,
		tx.Currency,
		string(tx.Status),
		tx.ExternalPaymentRef,
		tx.ExternalRefundRef,
		tx.CheckoutSessionID,
		tx.CreatedAt,
		tx.UpdatedAt,
	).Error
}

func (r *repo) FindSucceededPayment(ctx context.Context, db *gorm.DB, userID, eventID snowflake.ID) (*domain.Transaction, error) {
	return r.findOne(ctx, db,
		selectColumns+` WHERE user_id = ? AND event_id = ? AND kind = ? AND status = ? LIMIT 1`,
		userID, eventID, string(domain.KindPayment), string(domain.StatusSucceeded),
	)
}

func (r *repo) FindPaymentBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Transaction, error) {
	if sessionID == "" {
		return nil, nil
	}
	return r.findOne(ctx, db,
		selectColumns+` WHERE checkout_session_id = ? AND kind = ? LIMIT 1`,
		sessionID, string(domain.KindPayment),
	)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindRefundFor(ctx context.Context, db *gorm.DB, paymentRef string) (*domain.Transaction, error) {
	return r.findOne(ctx, db,
		selectColumns+` WHERE external_payment_ref = ? AND kind = ? LIMIT 1`,
		paymentRef, string(domain.KindRefund),
	)
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND kind = ? AND status = ?`,
		string(domain.StatusRefunded),
		now,
		id,
		string(domain.KindPayment),
		string(domain.StatusSucceeded),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, error) {
	query := selectColumns + ` WHERE event_id = ?`
	args := []any{filter.EventID}
	if filter.UserID != nil {
		query += ` AND user_id = ?`
		args = append(args, *filter.UserID)
	}
	if filter.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*filter.Kind))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var items []domain.Transaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Transaction, error) {
	var item domain.Transaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
