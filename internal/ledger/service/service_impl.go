package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	ledgerdomain "github.com/smallbiznis/huddle/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/huddle/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateEntry writes a balanced journal entry. It reports false when the
// source has already been journaled.
func (s *Service) CreateEntry(
	ctx context.Context,
	sourceType ledgerdomain.LedgerSourceType,
	sourceID snowflake.ID,
	eventID snowflake.ID,
	currency string,
	occurredAt time.Time,
	lines []ledgerdomain.LedgerEntryLine,
) (bool, error) {
	if strings.TrimSpace(string(sourceType)) == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if sourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if occurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(lines) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.LedgerEntryLine, 0, len(lines))
	for _, line := range lines {
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return false, err
		}
		if line.Amount < 0 {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		line.Direction = direction
		normalized = append(normalized, line)
	}
	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return false, err
	}

	now := s.clock.Now()
	for i := range normalized {
		if normalized[i].AccountID != 0 {
			continue
		}
		accountID, err := s.ensureAccount(ctx, normalized[i].AccountCode, now)
		if err != nil {
			return false, err
		}
		normalized[i].AccountID = accountID
	}

	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entryID := s.genID.Generate()
		result := tx.Exec(
			`INSERT INTO ledger_entries (
				id, source_type, source_id, event_id, currency, occurred_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_type, source_id) DO NOTHING`,
			entryID,
			string(sourceType),
			sourceID,
			eventID,
			currency,
			occurredAt.UTC(),
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		for _, line := range normalized {
			if err := tx.Exec(
				`INSERT INTO ledger_entry_lines (
					id, ledger_entry_id, account_id, direction, amount, created_at
				) VALUES (?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				entryID,
				line.AccountID,
				string(line.Direction),
				line.Amount,
				now,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if inserted {
		s.obsMetrics.RecordLedgerEntry(ctx, string(sourceType))
	} else {
		s.log.Debug("ledger entry already exists",
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", sourceID.String()),
		)
	}
	return inserted, nil
}

// PostPayment debits cash for the full amount and credits the organizer and
// platform fee accounts.
func (s *Service) PostPayment(ctx context.Context, posting ledgerdomain.PaymentPosting) error {
	fee := posting.PlatformFee
	if fee > posting.Amount {
		fee = posting.Amount
	}
	lines := []ledgerdomain.LedgerEntryLine{
		{AccountCode: ledgerdomain.AccountCodeCash, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: posting.Amount},
		{AccountCode: ledgerdomain.AccountCodeOrganizerPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: posting.Amount - fee},
		{AccountCode: ledgerdomain.AccountCodePlatformFeeRevenue, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: fee},
	}
	_, err := s.CreateEntry(ctx, ledgerdomain.SourceTypePayment, posting.TransactionID, posting.EventID, posting.Currency, posting.OccurredAt, lines)
	return err
}

// PostRefund reverses the refunded amount out of the organizer's share. The
// platform fee stays booked.
func (s *Service) PostRefund(ctx context.Context, posting ledgerdomain.RefundPosting) error {
	lines := []ledgerdomain.LedgerEntryLine{
		{AccountCode: ledgerdomain.AccountCodeOrganizerPayable, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: posting.Amount},
		{AccountCode: ledgerdomain.AccountCodeCash, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: posting.Amount},
	}
	_, err := s.CreateEntry(ctx, ledgerdomain.SourceTypeRefund, posting.TransactionID, posting.EventID, posting.Currency, posting.OccurredAt, lines)
	return err
}

// Balances returns debits minus credits per account for a currency.
func (s *Service) Balances(ctx context.Context, currency string) (map[ledgerdomain.LedgerAccountCode]int64, error) {
	var rows []struct {
		Code      string
		Direction string
		Total     int64
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT a.code AS code, l.direction AS direction, COALESCE(SUM(l.amount), 0) AS total
		 FROM ledger_entry_lines l
		 JOIN ledger_entries e ON e.id = l.ledger_entry_id
		 JOIN ledger_accounts a ON a.id = l.account_id
		 WHERE e.currency = ?
		 GROUP BY a.code, l.direction`,
		strings.ToUpper(strings.TrimSpace(currency)),
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	balances := make(map[ledgerdomain.LedgerAccountCode]int64, len(rows))
	for _, row := range rows {
		code := ledgerdomain.LedgerAccountCode(row.Code)
		if row.Direction == string(ledgerdomain.LedgerEntryDirectionDebit) {
			balances[code] += row.Total
		} else {
			balances[code] -= row.Total
		}
	}
	return balances, nil
}

func (s *Service) ensureAccount(ctx context.Context, code ledgerdomain.LedgerAccountCode, now time.Time) (snowflake.ID, error) {
	if strings.TrimSpace(string(code)) == "" {
		return 0, ledgerdomain.ErrInvalidAccount
	}

	if err := s.db.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, code, name, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (code) DO NOTHING`,
		s.genID.Generate(),
		string(code),
		ledgerdomain.AccountName(code),
		now,
	).Error; err != nil {
		return 0, err
	}

	var accountID snowflake.ID
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE code = ?`,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	return accountID, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	switch strings.ToLower(strings.TrimSpace(string(direction))) {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
