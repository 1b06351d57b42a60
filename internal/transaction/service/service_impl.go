package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	ledgerdomain "github.com/smallbiznis/huddle/internal/ledger/domain"
	"github.com/smallbiznis/huddle/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Clock     clock.Clock
	LedgerSvc ledgerdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	clock     clock.Clock
	ledgerSvc ledgerdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("transaction.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		clock:     p.Clock,
		ledgerSvc: p.LedgerSvc,
	}
}

// RecordPayment stores a succeeded payment for (user, event). A checkout
// session pays at most once: when the session already has a payment, of any
// status, that row is returned with created=false. Otherwise a succeeded
// payment for the same (user, event) wins. Concurrent or replayed completions
// therefore converge on a single payment.
func (s *Service) RecordPayment(ctx context.Context, in domain.PaymentInput) (domain.Transaction, bool, error) {
	if in.UserID == 0 || in.EventID == 0 || in.Amount < 0 {
		return domain.Transaction{}, false, domain.ErrInvalidTransaction
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		return domain.Transaction{}, false, domain.ErrInvalidTransaction
	}
	sessionID := strings.TrimSpace(in.CheckoutSessionID)

	now := s.clock.Now()
	tx := domain.Transaction{
		ID:                 s.genID.Generate(),
		UserID:             in.UserID,
		EventID:            in.EventID,
		Kind:               domain.KindPayment,
		Amount:             in.Amount,
		Currency:           currency,
		Status:             domain.StatusSucceeded,
		ExternalPaymentRef: optionalString(in.ExternalPaymentRef),
		CheckoutSessionID:  optionalString(sessionID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	created, err := s.repo.InsertPayment(ctx, s.db, &tx)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if !created {
		existing, err := s.conflictingPayment(ctx, in.UserID, in.EventID, sessionID)
		if err != nil {
			return domain.Transaction{}, false, err
		}
		if existing.Status != domain.StatusSucceeded {
			s.log.Info("checkout session already settled",
				zap.String("transaction_id", existing.ID.String()),
				zap.String("status", string(existing.Status)),
			)
			return *existing, false, nil
		}
		tx = *existing
		s.log.Info("payment already recorded",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("event_id", tx.EventID.String()),
		)
	}

	if s.ledgerSvc != nil {
		if err := s.ledgerSvc.PostPayment(ctx, ledgerdomain.PaymentPosting{
			TransactionID: tx.ID,
			EventID:       tx.EventID,
			Currency:      tx.Currency,
			Amount:        tx.Amount,
			PlatformFee:   in.PlatformFee,
			OccurredAt:    tx.CreatedAt,
		}); err != nil {
			return domain.Transaction{}, false, err
		}
	}

	return tx, created, nil
}

// conflictingPayment finds the row that made an insert a no-op.
func (s *Service) conflictingPayment(ctx context.Context, userID, eventID snowflake.ID, sessionID string) (*domain.Transaction, error) {
	existing, err := s.repo.FindPaymentBySession(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.repo.FindSucceededPayment(ctx, s.db, userID, eventID)
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		return nil, fmt.Errorf("payment insert for user %s event %s conflicted without a stored row", userID, eventID)
	}
	return existing, nil
}

func (s *Service) FindPaymentBySession(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	return s.repo.FindPaymentBySession(ctx, s.db, strings.TrimSpace(sessionID))
}

func (s *Service) FindSucceededPayment(ctx context.Context, userID, eventID snowflake.ID) (*domain.Transaction, error) {
	return s.repo.FindSucceededPayment(ctx, s.db, userID, eventID)
}

// RecordRefund flips the payment to refunded and appends the refund row in
// one transaction. Refunding an already refunded payment returns the refund
// that was recorded the first time.
func (s *Service) RecordRefund(ctx context.Context, in domain.RefundInput) (domain.Transaction, error) {
	payment := in.Payment
	if payment.ID == 0 || payment.Kind != domain.KindPayment {
		return domain.Transaction{}, domain.ErrInvalidTransaction
	}
	if in.Amount <= 0 || in.Amount > payment.Amount {
		return domain.Transaction{}, domain.ErrInvalidTransaction
	}

	now := s.clock.Now()
	refund := domain.Transaction{
		ID:                 s.genID.Generate(),
		UserID:             payment.UserID,
		EventID:            payment.EventID,
		Kind:               domain.KindRefund,
		Amount:             in.Amount,
		Currency:           payment.Currency,
		Status:             domain.StatusSucceeded,
		ExternalPaymentRef: payment.ExternalPaymentRef,
		ExternalRefundRef:  optionalString(in.ExternalRefundRef),
		CheckoutSessionID:  payment.CheckoutSessionID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := s.repo.MarkRefunded(ctx, tx, payment.ID, now)
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrAlreadyRefunded
		}
		return s.repo.InsertRefund(ctx, tx, &refund)
	})
	if errors.Is(err, domain.ErrAlreadyRefunded) {
		existing, findErr := s.repo.FindRefundFor(ctx, s.db, payment.PaymentRef())
		if findErr != nil {
			return domain.Transaction{}, findErr
		}
		if existing == nil {
			return domain.Transaction{}, domain.ErrAlreadyRefunded
		}
		return *existing, nil
	}
	if err != nil {
		return domain.Transaction{}, err
	}

	if s.ledgerSvc != nil {
		if err := s.ledgerSvc.PostRefund(ctx, ledgerdomain.RefundPosting{
			TransactionID: refund.ID,
			EventID:       refund.EventID,
			Currency:      refund.Currency,
			Amount:        refund.Amount,
			OccurredAt:    now,
		}); err != nil {
			return domain.Transaction{}, err
		}
	}

	s.log.Info("refund recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("refund_id", refund.ID.String()),
		zap.Int64("amount", refund.Amount),
	)
	return refund, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	if filter.EventID == 0 {
		return nil, domain.ErrInvalidTransaction
	}
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	return items, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
