package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
)

type Service interface {
	Onboard(ctx context.Context, userID snowflake.ID) (OnboardingLink, error)
	RefreshOnboarding(ctx context.Context, userID snowflake.ID) (OrganizerStatus, error)
	CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (CheckoutResult, error)
	CompleteSession(ctx context.Context, sessionID string) (Completion, error)
	ProcessRefund(ctx context.Context, userID, eventID snowflake.ID) (*RefundResult, error)
}

// Refunder is the slice of Service the event roster needs when an attendee
// leaves.
type Refunder interface {
	ProcessRefund(ctx context.Context, userID, eventID snowflake.ID) (*RefundResult, error)
	RefundSince(ctx context.Context, userID, eventID snowflake.ID, since time.Time) (*RefundResult, error)
}

// Completer settles checkout sessions reported by the gateway.
type Completer interface {
	CompleteSessionFrom(ctx context.Context, sessionID string, source CompletionSource) (Completion, error)
}

type OnboardingLink struct {
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}

type OrganizerStatus struct {
	AccountID        string `json:"account_id,omitempty"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PaymentsEnabled  bool   `json:"payments_enabled"`
}

type CreateCheckoutRequest struct {
	EventID   snowflake.ID
	UserID    snowflake.ID
	Positions []string
}

type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"url"`
}

type CompletionSource string

const (
	CompletionSourceWebhook CompletionSource = "webhook"
	CompletionSourceVerify  CompletionSource = "verify"
)

// Completion reports what a reconciliation did. Attendance and
// PaymentRecorded are independent: a replay yields MergeAlreadyPresent and
// PaymentRecorded=false. Refunded marks a session whose payment was already
// refunded; Attendance is empty because the roster was not touched.
type Completion struct {
	SessionID       string                   `json:"session_id"`
	EventID         snowflake.ID             `json:"event_id"`
	UserID          snowflake.ID             `json:"user_id"`
	Attendance      eventdomain.MergeOutcome `json:"attendance"`
	PaymentRecorded bool                     `json:"payment_recorded"`
	Refunded        bool                     `json:"refunded"`
	TransactionID   snowflake.ID             `json:"transaction_id"`
}

type RefundResult struct {
	PaymentID      snowflake.ID `json:"payment_id"`
	RefundID       snowflake.ID `json:"refund_id"`
	ExternalRefund string       `json:"external_refund_ref"`
	OriginalAmount int64        `json:"original_amount"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
}
