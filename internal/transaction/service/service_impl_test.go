package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	ledgerdomain "github.com/smallbiznis/huddle/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/huddle/internal/ledger/service"
	"github.com/smallbiznis/huddle/internal/testutil"
	"github.com/smallbiznis/huddle/internal/transaction/domain"
	"github.com/smallbiznis/huddle/internal/transaction/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    domain.Service
	ledger ledgerdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
	})
	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Clock:     clk,
		LedgerSvc: ledger,
	})
	return fixture{db: db, node: node, svc: svc, ledger: ledger}
}

func paymentInput(userID, eventID snowflake.ID) domain.PaymentInput {
	return domain.PaymentInput{
		UserID:             userID,
		EventID:            eventID,
		Amount:             1000,
		Currency:           "usd",
		ExternalPaymentRef: "pi_123",
		CheckoutSessionID:  "cs_123",
		PlatformFee:        50,
	}
}

func TestRecordPaymentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID, eventID := f.node.Generate(), f.node.Generate()

	first, created, err := f.svc.RecordPayment(ctx, paymentInput(userID, eventID))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.StatusSucceeded, first.Status)
	assert.Equal(t, "USD", first.Currency)

	second, created, err := f.svc.RecordPayment(ctx, paymentInput(userID, eventID))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, int64(1), testutil.Count(t, f.db, "transactions", "kind = 'payment'"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "ledger_entries", "source_type = 'payment'"))

	found, err := f.svc.FindSucceededPayment(ctx, userID, eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
	assert.Equal(t, "pi_123", found.PaymentRef())
}

func TestRecordPaymentRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	in := paymentInput(f.node.Generate(), f.node.Generate())
	in.Currency = ""

	_, _, err := f.svc.RecordPayment(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)
}

func TestRecordRefundFlipsPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID, eventID := f.node.Generate(), f.node.Generate()

	payment, _, err := f.svc.RecordPayment(ctx, paymentInput(userID, eventID))
	require.NoError(t, err)

	refund, err := f.svc.RecordRefund(ctx, domain.RefundInput{Payment: payment, Amount: 891, ExternalRefundRef: "re_1"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindRefund, refund.Kind)
	assert.Equal(t, int64(891), refund.Amount)
	assert.Equal(t, "pi_123", refund.PaymentRef())

	found, err := f.svc.FindSucceededPayment(ctx, userID, eventID)
	require.NoError(t, err)
	assert.Nil(t, found, "refunded payment is no longer succeeded")

	again, err := f.svc.RecordRefund(ctx, domain.RefundInput{Payment: payment, Amount: 891, ExternalRefundRef: "re_1"})
	require.NoError(t, err)
	assert.Equal(t, refund.ID, again.ID)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "transactions", "kind = 'refund'"))

	balances, err := f.ledger.Balances(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(109), balances[ledgerdomain.AccountCodeCash])

	kind := domain.KindPayment
	payments, err := f.svc.List(ctx, domain.ListFilter{EventID: eventID, UserID: &userID, Kind: &kind})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.StatusRefunded, payments[0].Status)
}

func TestPaymentAfterRefundIsAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID, eventID := f.node.Generate(), f.node.Generate()

	payment, _, err := f.svc.RecordPayment(ctx, paymentInput(userID, eventID))
	require.NoError(t, err)
	_, err = f.svc.RecordRefund(ctx, domain.RefundInput{Payment: payment, Amount: 891, ExternalRefundRef: "re_1"})
	require.NoError(t, err)

	in := paymentInput(userID, eventID)
	in.ExternalPaymentRef = "pi_456"
	in.CheckoutSessionID = "cs_456"
	rejoin, created, err := f.svc.RecordPayment(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, payment.ID, rejoin.ID)
	assert.Equal(t, domain.StatusSucceeded, rejoin.Status)
}

func TestReplayedSessionAfterRefundReturnsRefundedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID, eventID := f.node.Generate(), f.node.Generate()

	payment, _, err := f.svc.RecordPayment(ctx, paymentInput(userID, eventID))
	require.NoError(t, err)
	_, err = f.svc.RecordRefund(ctx, domain.RefundInput{Payment: payment, Amount: 891, ExternalRefundRef: "re_1"})
	require.NoError(t, err)

	replayed, created, err := f.svc.RecordPayment(ctx, paymentInput(userID, eventID))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, payment.ID, replayed.ID)
	assert.Equal(t, domain.StatusRefunded, replayed.Status)

	bySession, err := f.svc.FindPaymentBySession(ctx, "cs_123")
	require.NoError(t, err)
	require.NotNil(t, bySession)
	assert.Equal(t, payment.ID, bySession.ID)

	found, err := f.svc.FindSucceededPayment(ctx, userID, eventID)
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.Equal(t, int64(1), testutil.Count(t, f.db, "transactions", "kind = 'payment'"))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "ledger_entries", "source_type = 'payment'"))

	balances, err := f.ledger.Balances(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(109), balances[ledgerdomain.AccountCodeCash])
}

func TestFindPaymentBySessionUnknown(t *testing.T) {
	f := newFixture(t)
	found, err := f.svc.FindPaymentBySession(context.Background(), "cs_missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRecordRefundValidatesAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	payment, _, err := f.svc.RecordPayment(ctx, paymentInput(f.node.Generate(), f.node.Generate()))
	require.NoError(t, err)

	_, err = f.svc.RecordRefund(ctx, domain.RefundInput{Payment: payment, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)
	_, err = f.svc.RecordRefund(ctx, domain.RefundInput{Payment: payment, Amount: 1001})
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)
}

func TestListEmpty(t *testing.T) {
	f := newFixture(t)
	items, err := f.svc.List(context.Background(), domain.ListFilter{EventID: f.node.Generate()})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
