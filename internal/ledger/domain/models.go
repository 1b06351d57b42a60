package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypePayment LedgerSourceType = "payment" // attendee paid for an event seat
	SourceTypeRefund  LedgerSourceType = "refund"  // money returned to the attendee
)

type LedgerAccountCode string

const (
	// Assets
	AccountCodeCash LedgerAccountCode = "cash"

	// Liabilities
	AccountCodeOrganizerPayable LedgerAccountCode = "organizer_payable"

	// Revenue
	AccountCodePlatformFeeRevenue LedgerAccountCode = "platform_fee_revenue"
)

var accountNames = map[LedgerAccountCode]string{
	AccountCodeCash:               "Cash held by gateway",
	AccountCodeOrganizerPayable:   "Payable to organizers",
	AccountCodePlatformFeeRevenue: "Platform fee revenue",
}

// AccountName returns the display name for a chart-of-accounts code.
func AccountName(code LedgerAccountCode) string {
	if name, ok := accountNames[code]; ok {
		return name
	}
	return string(code)
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	Code      LedgerAccountCode `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_code"`
	Name      string            `gorm:"type:text;not null"`
	CreatedAt time.Time         `gorm:"not null"`
}

func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry is the immutable header for one money movement. A source can be
// journaled only once.
type LedgerEntry struct {
	ID         snowflake.ID     `gorm:"primaryKey"`
	SourceType LedgerSourceType `gorm:"type:text;not null"`
	SourceID   snowflake.ID     `gorm:"not null"`
	EventID    snowflake.ID     `gorm:"not null"`
	Currency   string           `gorm:"type:text;not null"`
	OccurredAt time.Time        `gorm:"not null"`
	CreatedAt  time.Time        `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	AccountCode   LedgerAccountCode    `gorm:"-"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        int64                `gorm:"not null"`
	CreatedAt     time.Time            `gorm:"not null"`
}

func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// PaymentPosting journals a settled payment: the full amount lands in cash and
// is split between the organizer's share and the platform fee.
type PaymentPosting struct {
	TransactionID snowflake.ID
	EventID       snowflake.ID
	Currency      string
	Amount        int64
	PlatformFee   int64
	OccurredAt    time.Time
}

// RefundPosting journals money returned to an attendee out of the
// organizer's share.
type RefundPosting struct {
	TransactionID snowflake.ID
	EventID       snowflake.ID
	Currency      string
	Amount        int64
	OccurredAt    time.Time
}
