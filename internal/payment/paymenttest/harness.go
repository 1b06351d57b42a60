// Package paymenttest wires the payment flow against an in-memory database
// and gateway for package tests.
package paymenttest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/config"
	"github.com/smallbiznis/huddle/internal/event/attendance"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	eventrepo "github.com/smallbiznis/huddle/internal/event/repository"
	ledgerdomain "github.com/smallbiznis/huddle/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/huddle/internal/ledger/service"
	"github.com/smallbiznis/huddle/internal/lock"
	"github.com/smallbiznis/huddle/internal/payment/adapters/memory"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	paymentservice "github.com/smallbiznis/huddle/internal/payment/service"
	"github.com/smallbiznis/huddle/internal/testutil"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	transactionrepo "github.com/smallbiznis/huddle/internal/transaction/repository"
	transactionservice "github.com/smallbiznis/huddle/internal/transaction/service"
	userdomain "github.com/smallbiznis/huddle/internal/user/domain"
	userrepo "github.com/smallbiznis/huddle/internal/user/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const WebhookSecret = "whsec_test"

// Start is the fake clock's initial time.
var Start = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type Harness struct {
	DB           *gorm.DB
	Log          *zap.Logger
	Node         *snowflake.Node
	Clock        *clock.FakeClock
	Memory       *memory.Gateway
	Gateway      paymentdomain.Gateway
	Users        userdomain.Repository
	Events       eventdomain.Repository
	Roster       *attendance.Roster
	Ledger       ledgerdomain.Service
	Transactions transactiondomain.Service
	Service      *paymentservice.Service
	Config       config.Config
}

type Option func(*Harness)

// WithGateway replaces the in-memory gateway.
func WithGateway(g paymentdomain.Gateway) Option {
	return func(h *Harness) { h.Gateway = g }
}

func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := &Harness{
		DB:     testutil.OpenDB(t),
		Log:    zap.NewNop(),
		Node:   testutil.Node(t),
		Clock:  clock.NewFakeClock(Start),
		Memory: memory.New(WebhookSecret),
		Users:  userrepo.Provide(),
		Events: eventrepo.Provide(),
		Config: config.Config{
			Payment: config.PaymentConfig{
				Gateway:              memory.ProviderName,
				DefaultCurrency:      "USD",
				AccountCountry:       "US",
				CheckoutSuccessURL:   "https://app.test/payments/success",
				CheckoutCancelURL:    "https://app.test/payments/cancel",
				OnboardingReturnURL:  "https://app.test/onboarding/return",
				OnboardingRefreshURL: "https://app.test/onboarding/refresh",
			},
		},
	}
	h.Gateway = h.Memory
	for _, opt := range opts {
		opt(h)
	}

	h.Roster = attendance.New(attendance.Params{
		DB:    h.DB,
		Log:   h.Log,
		Repo:  h.Events,
		Clock: h.Clock,
	})
	h.Ledger = ledgerservice.NewService(ledgerservice.Params{
		DB:    h.DB,
		Log:   h.Log,
		GenID: h.Node,
		Clock: h.Clock,
	})
	h.Transactions = transactionservice.NewService(transactionservice.Params{
		DB:        h.DB,
		Log:       h.Log,
		GenID:     h.Node,
		Repo:      transactionrepo.Provide(),
		Clock:     h.Clock,
		LedgerSvc: h.Ledger,
	})
	h.Service = paymentservice.NewService(paymentservice.Params{
		DB:           h.DB,
		Log:          h.Log,
		Cfg:          h.Config,
		Clock:        h.Clock,
		Gateway:      h.Gateway,
		Users:        h.Users,
		Roster:       h.Roster,
		Transactions: h.Transactions,
		Locker:       lock.NewMemoryLocker(),
		Policy:       config.NewStaticPaymentPolicyHolder(config.DefaultPaymentPolicy()),
	})
	return h
}

// User inserts a plain user.
func (h *Harness) User(t *testing.T) *userdomain.User {
	t.Helper()
	id := h.Node.Generate()
	user := &userdomain.User{
		ID:        id,
		Email:     fmt.Sprintf("user-%s@example.com", id),
		Name:      "Player " + id.String(),
		CreatedAt: Start,
		UpdatedAt: Start,
	}
	require.NoError(t, h.Users.Insert(context.Background(), h.DB, user))
	return user
}

// Organizer inserts a user with a merchant account on the memory gateway.
func (h *Harness) Organizer(t *testing.T, paymentsEnabled bool) *userdomain.User {
	t.Helper()
	ctx := context.Background()
	user := h.User(t)
	accountID, err := h.Memory.CreateAccount(ctx, paymentdomain.CreateAccountInput{Email: user.Email})
	require.NoError(t, err)
	if paymentsEnabled {
		h.Memory.EnableAccount(accountID)
	}
	_, err = h.Users.AssignMerchantAccount(ctx, h.DB, user.ID, accountID, Start)
	require.NoError(t, err)
	require.NoError(t, h.Users.SetOnboardingComplete(ctx, h.DB, user.ID, paymentsEnabled, Start))

	user.StripeAccountID = &accountID
	user.StripeOnboardingComplete = paymentsEnabled
	return user
}

// Event inserts an event starting startsIn after the current fake time.
func (h *Harness) Event(t *testing.T, organizerID snowflake.ID, price int64, startsIn time.Duration) *eventdomain.Event {
	t.Helper()
	now := h.Clock.Now()
	event := &eventdomain.Event{
		ID:          h.Node.Generate(),
		OrganizerID: organizerID,
		Title:       "Sunday pickup",
		StartsAt:    now.Add(startsIn),
		IsPaid:      price > 0,
		Price:       price,
		Currency:    "USD",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, h.Events.Insert(context.Background(), h.DB, event))
	return event
}

// Reload reads the event back from storage.
func (h *Harness) Reload(t *testing.T, eventID snowflake.ID) *eventdomain.Event {
	t.Helper()
	event, err := h.Events.FindByID(context.Background(), h.DB, eventID)
	require.NoError(t, err)
	require.NotNil(t, event)
	return event
}

// PaidSession runs checkout for user on event and settles it on the memory
// gateway.
func (h *Harness) PaidSession(t *testing.T, eventID, userID snowflake.ID, positions ...string) string {
	t.Helper()
	result, err := h.Service.CreateCheckout(context.Background(), paymentdomain.CreateCheckoutRequest{
		EventID:   eventID,
		UserID:    userID,
		Positions: positions,
	})
	require.NoError(t, err)
	require.NoError(t, h.Memory.MarkPaid(result.SessionID))
	return result.SessionID
}

// CountPayments counts payment rows for (user, event) with status.
func (h *Harness) CountPayments(t *testing.T, userID, eventID snowflake.ID, status transactiondomain.Status) int64 {
	t.Helper()
	return testutil.Count(t, h.DB, "transactions",
		"kind = 'payment' AND user_id = ? AND event_id = ? AND status = ?",
		userID, eventID, status)
}

// CountRefunds counts refund rows for (user, event).
func (h *Harness) CountRefunds(t *testing.T, userID, eventID snowflake.ID) int64 {
	t.Helper()
	return testutil.Count(t, h.DB, "transactions",
		"kind = 'refund' AND user_id = ? AND event_id = ?", userID, eventID)
}

// CountAttendee counts roster entries for userID.
func CountAttendee(event *eventdomain.Event, userID snowflake.ID) int {
	n := 0
	for _, a := range event.Attendees {
		if a.UserID == userID {
			n++
		}
	}
	return n
}
