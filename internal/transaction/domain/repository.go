package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertPayment reports false when a succeeded payment already exists for
	// the same (user, event) or any payment exists for the same checkout
	// session.
	InsertPayment(ctx context.Context, db *gorm.DB, tx *Transaction) (bool, error)
	InsertRefund(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindSucceededPayment(ctx context.Context, db *gorm.DB, userID, eventID snowflake.ID) (*Transaction, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	// FindPaymentBySession returns the payment of any status recorded for a
	// checkout session.
	FindPaymentBySession(ctx context.Context, db *gorm.DB, sessionID string) (*Transaction, error)
	FindRefundFor(ctx context.Context, db *gorm.DB, paymentRef string) (*Transaction, error)
	// MarkRefunded flips a succeeded payment to refunded and reports whether
	// it did.
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, error)
}

type ListFilter struct {
	EventID snowflake.ID
	UserID  *snowflake.ID
	Kind    *Kind
}
