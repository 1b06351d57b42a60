package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	KindPayment Kind = "payment"
	KindRefund  Kind = "refund"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

var (
	ErrInvalidTransaction = errors.New("invalid_transaction")
	ErrPaymentNotFound    = errors.New("payment_not_found")
	ErrAlreadyRefunded    = errors.New("payment_already_refunded")
)

// Transaction is one money movement for a (user, event) pair. Payments and
// refunds live in the same ledger; at most one payment per pair is ever
// succeeded at a time.
type Transaction struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID             snowflake.ID `json:"user_id" gorm:"not null"`
	EventID            snowflake.ID `json:"event_id" gorm:"not null"`
	Kind               Kind         `json:"kind" gorm:"type:text;not null"`
	Amount             int64        `json:"amount" gorm:"not null"`
	Currency           string       `json:"currency" gorm:"type:text;not null"`
	Status             Status       `json:"status" gorm:"type:text;not null"`
	ExternalPaymentRef *string      `json:"external_payment_ref,omitempty" gorm:"type:text"`
	ExternalRefundRef  *string      `json:"external_refund_ref,omitempty" gorm:"type:text"`
	CheckoutSessionID  *string      `json:"checkout_session_id,omitempty" gorm:"type:text"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

func (t Transaction) PaymentRef() string {
	if t.ExternalPaymentRef == nil {
		return ""
	}
	return *t.ExternalPaymentRef
}

// PaymentInput records a settled checkout. PlatformFee is only used for the
// money journal.
type PaymentInput struct {
	UserID             snowflake.ID
	EventID            snowflake.ID
	Amount             int64
	Currency           string
	ExternalPaymentRef string
	CheckoutSessionID  string
	PlatformFee        int64
}

// RefundInput records a refund issued against Payment.
type RefundInput struct {
	Payment           Transaction
	Amount            int64
	ExternalRefundRef string
}
