package domain

import (
	"context"
	"time"
)

// Gateway is the payment processor seen from this service: connected
// merchant accounts, hosted checkout, refunds and signed webhooks.
type Gateway interface {
	Provider() string
	CreateAccount(ctx context.Context, in CreateAccountInput) (string, error)
	CreateAccountLink(ctx context.Context, in AccountLinkInput) (string, error)
	RetrieveAccount(ctx context.Context, accountID string) (AccountStatus, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (CheckoutSessionDetail, error)
	CreateRefund(ctx context.Context, in RefundInput) (Refund, error)
	ConstructEvent(payload []byte, signatureHeader string) (WebhookEvent, error)
}

type CreateAccountInput struct {
	Email          string
	Country        string
	IdempotencyKey string
}

type AccountLinkInput struct {
	AccountID  string
	ReturnURL  string
	RefreshURL string
}

type AccountStatus struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// PaymentsEnabled reports whether the account can take charges and receive
// transfers.
func (s AccountStatus) PaymentsEnabled() bool {
	return s.ChargesEnabled && s.PayoutsEnabled
}

// CheckoutSessionInput describes a hosted checkout for a single seat. Money
// is routed to DestinationAccountID minus ApplicationFee.
type CheckoutSessionInput struct {
	Amount               int64
	Currency             string
	ProductName          string
	DestinationAccountID string
	ApplicationFee       int64
	Metadata             map[string]string
	SuccessURL           string
	CancelURL            string
}

type CheckoutSession struct {
	ID  string
	URL string
}

const PaymentStatusPaid = "paid"

type CheckoutSessionDetail struct {
	ID              string
	PaymentStatus   string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
}

func (d CheckoutSessionDetail) Paid() bool {
	return d.PaymentStatus == PaymentStatusPaid
}

// RefundInput refunds part of a destination charge. ReverseTransfer pulls the
// money back from the organizer; the application fee is never refunded.
type RefundInput struct {
	PaymentIntentID string
	Amount          int64
	ReverseTransfer bool
	IdempotencyKey  string
	Metadata        map[string]string
}

type Refund struct {
	ID     string
	Status string
	Amount int64
}

const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventAccountUpdated                       = "account.updated"
)

// WebhookEvent is a verified gateway notification.
type WebhookEvent struct {
	ID        string
	Type      string
	ObjectID  string
	CreatedAt time.Time
	Payload   []byte
}

// GatewayConfig carries the settings any adapter may need.
type GatewayConfig struct {
	SecretKey        string
	APIBase          string
	WebhookSecret    string
	WebhookTolerance time.Duration
}

type GatewayFactory interface {
	Provider() string
	NewGateway(cfg GatewayConfig) (Gateway, error)
}
