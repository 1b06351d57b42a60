package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Get(ctx context.Context, eventID snowflake.ID) (*Event, error)
	Join(ctx context.Context, req JoinRequest) (JoinResult, error)
	Leave(ctx context.Context, req LeaveRequest) (LeaveResult, error)
}

type JoinRequest struct {
	EventID   snowflake.ID
	UserID    snowflake.ID
	Positions []string
}

type JoinResult struct {
	EventID snowflake.ID `json:"event_id"`
	Outcome MergeOutcome `json:"outcome"`
}

type LeaveRequest struct {
	EventID snowflake.ID
	UserID  snowflake.ID
}

// Reasons a leave completed without a refund.
const (
	NoRefundPastDeadline = "past_deadline"
	NoRefundZeroAmount   = "zero_amount"
	NoRefundNoPayment    = "no_payment"
	NoRefundFreeEvent    = "free_event"
)

type LeaveResult struct {
	EventID      snowflake.ID `json:"event_id"`
	Left         bool         `json:"left"`
	Refunded     bool         `json:"refunded"`
	RefundAmount int64        `json:"refund_amount,omitempty"`
	Currency     string       `json:"currency,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}
