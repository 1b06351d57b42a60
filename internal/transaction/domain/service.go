package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	RecordPayment(ctx context.Context, in PaymentInput) (Transaction, bool, error)
	FindSucceededPayment(ctx context.Context, userID, eventID snowflake.ID) (*Transaction, error)
	FindPaymentBySession(ctx context.Context, sessionID string) (*Transaction, error)
	RecordRefund(ctx context.Context, in RefundInput) (Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
}
