package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/huddle/internal/clock"
	ledgerdomain "github.com/smallbiznis/huddle/internal/ledger/domain"
	"github.com/smallbiznis/huddle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, func(string, string, ...any) int64) {
	t.Helper()
	db := testutil.OpenDB(t)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}).(*Service)
	count := func(table, where string, args ...any) int64 {
		return testutil.Count(t, db, table, where, args...)
	}
	return svc, count
}

func TestPostPaymentIsIdempotentPerSource(t *testing.T) {
	ctx := context.Background()
	svc, count := newTestService(t)
	node := testutil.Node(t)
	txID := node.Generate()

	posting := ledgerdomain.PaymentPosting{
		TransactionID: txID,
		EventID:       node.Generate(),
		Currency:      "usd",
		Amount:        1000,
		PlatformFee:   50,
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.PostPayment(ctx, posting))
	require.NoError(t, svc.PostPayment(ctx, posting))

	assert.Equal(t, int64(1), count("ledger_entries", ""))
	assert.Equal(t, int64(3), count("ledger_entry_lines", ""))
	assert.Equal(t, int64(3), count("ledger_accounts", ""))

	balances, err := svc.Balances(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balances[ledgerdomain.AccountCodeCash])
	assert.Equal(t, int64(-950), balances[ledgerdomain.AccountCodeOrganizerPayable])
	assert.Equal(t, int64(-50), balances[ledgerdomain.AccountCodePlatformFeeRevenue])
}

func TestPostRefundKeepsPlatformFee(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	node := testutil.Node(t)
	eventID := node.Generate()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.PostPayment(ctx, ledgerdomain.PaymentPosting{
		TransactionID: node.Generate(), EventID: eventID, Currency: "USD", Amount: 1000, PlatformFee: 50, OccurredAt: at,
	}))
	require.NoError(t, svc.PostRefund(ctx, ledgerdomain.RefundPosting{
		TransactionID: node.Generate(), EventID: eventID, Currency: "USD", Amount: 891, OccurredAt: at,
	}))

	balances, err := svc.Balances(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(109), balances[ledgerdomain.AccountCodeCash])
	assert.Equal(t, int64(-59), balances[ledgerdomain.AccountCodeOrganizerPayable])
	assert.Equal(t, int64(-50), balances[ledgerdomain.AccountCodePlatformFeeRevenue])
}

func TestCreateEntryRejectsUnbalancedLines(t *testing.T) {
	svc, count := newTestService(t)
	node := testutil.Node(t)

	_, err := svc.CreateEntry(context.Background(), ledgerdomain.SourceTypePayment, node.Generate(), node.Generate(), "USD", time.Now(), []ledgerdomain.LedgerEntryLine{
		{AccountCode: ledgerdomain.AccountCodeCash, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: 10},
		{AccountCode: ledgerdomain.AccountCodeOrganizerPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: 9},
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedEntry)
	assert.Equal(t, int64(0), count("ledger_entries", ""))
}

func TestCreateEntryValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	node := testutil.Node(t)
	lines := []ledgerdomain.LedgerEntryLine{
		{AccountCode: ledgerdomain.AccountCodeCash, Direction: "sideways", Amount: 10},
		{AccountCode: ledgerdomain.AccountCodeOrganizerPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: 10},
	}

	_, err := svc.CreateEntry(context.Background(), ledgerdomain.SourceTypePayment, node.Generate(), node.Generate(), "USD", time.Now(), lines)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidLineDirection)

	_, err = svc.CreateEntry(context.Background(), ledgerdomain.SourceTypePayment, 0, node.Generate(), "USD", time.Now(), lines)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidSourceID)

	_, err = svc.CreateEntry(context.Background(), ledgerdomain.SourceTypePayment, node.Generate(), node.Generate(), " ", time.Now(), lines)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidCurrency)
}
