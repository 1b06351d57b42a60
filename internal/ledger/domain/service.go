package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateEntry(ctx context.Context, sourceType LedgerSourceType, sourceID snowflake.ID, eventID snowflake.ID, currency string, occurredAt time.Time, lines []LedgerEntryLine) (bool, error)
	PostPayment(ctx context.Context, posting PaymentPosting) error
	PostRefund(ctx context.Context, posting RefundPosting) error
	Balances(ctx context.Context, currency string) (map[LedgerAccountCode]int64, error)
}

// ValidateBalanced checks that debits equal credits.
func ValidateBalanced(lines []LedgerEntryLine) error {
	var debit, credit int64
	for _, line := range lines {
		switch line.Direction {
		case LedgerEntryDirectionDebit:
			debit += line.Amount
		case LedgerEntryDirectionCredit:
			credit += line.Amount
		default:
			return ErrInvalidLineDirection
		}
	}
	if debit != credit {
		return ErrUnbalancedEntry
	}
	return nil
}
