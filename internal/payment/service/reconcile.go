package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	obslogger "github.com/smallbiznis/huddle/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CompleteSession settles a checkout on behalf of the paying user after the
// redirect back from the hosted page.
func (s *Service) CompleteSession(ctx context.Context, sessionID string) (paymentdomain.Completion, error) {
	return s.CompleteSessionFrom(ctx, sessionID, paymentdomain.CompletionSourceVerify)
}

// CompleteSessionFrom grants the seat a paid checkout bought and records the
// payment. Webhook delivery and the verify call both land here and may race
// or repeat; the roster merge and the payment insert are each idempotent on
// their own, so any interleaving yields one attendee and one payment row.
// A session whose payment was already refunded is settled: replaying it
// reports Refunded and leaves the roster alone.
func (s *Service) CompleteSessionFrom(ctx context.Context, sessionID string, source paymentdomain.CompletionSource) (completion paymentdomain.Completion, err error) {
	sessionID = strings.TrimSpace(sessionID)
	ctx, span := startSpan(ctx, "payment.CompleteSession",
		attribute.String("session_id", sessionID),
		attribute.String("source", string(source)),
	)
	defer func() {
		outcome := outcomeOf(err, "already_recorded")
		switch {
		case err != nil:
		case completion.Refunded:
			outcome = "refunded"
		case completion.PaymentRecorded:
			outcome = "recorded"
		}
		s.obsMetrics.RecordCompletion(ctx, string(source), outcome)
		endSpan(span, err)
	}()

	if sessionID == "" {
		return paymentdomain.Completion{}, paymentdomain.ErrInvalidRequest
	}

	detail, err := s.gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return paymentdomain.Completion{}, err
	}
	if !detail.Paid() {
		return paymentdomain.Completion{}, paymentdomain.ErrPaymentIncomplete
	}
	meta, err := paymentdomain.DecodeCheckoutMetadata(detail.Metadata)
	if err != nil {
		return paymentdomain.Completion{}, err
	}

	ctx = obslogger.With(ctx,
		obslogger.SessionID(sessionID),
		obslogger.EventID(meta.EventID),
		obslogger.UserID(meta.UserID),
	)

	release := s.acquireReconcileLock(ctx, meta)
	defer release()

	settled, err := s.transactions.FindPaymentBySession(ctx, detail.ID)
	if err != nil {
		return paymentdomain.Completion{}, err
	}
	if settled != nil && settled.Status != transactiondomain.StatusSucceeded {
		s.logger(ctx).Info("checkout session already refunded",
			zap.String("source", string(source)),
			zap.String("transaction_id", settled.ID.String()),
		)
		return refundedCompletion(sessionID, meta, settled.ID), nil
	}

	event, attendance, err := s.roster.Add(ctx, meta.EventID, meta.UserID, meta.Positions)
	if err != nil {
		if errors.Is(err, eventdomain.ErrNotFound) {
			return paymentdomain.Completion{}, paymentdomain.ErrEventNotFound
		}
		return paymentdomain.Completion{}, err
	}

	amount := detail.AmountTotal
	if amount <= 0 {
		amount = event.Price
	}
	currency := detail.Currency
	if currency == "" {
		currency = event.Currency
	}

	payment, created, err := s.transactions.RecordPayment(ctx, transactiondomain.PaymentInput{
		UserID:             meta.UserID,
		EventID:            meta.EventID,
		Amount:             amount,
		Currency:           currency,
		ExternalPaymentRef: detail.PaymentIntentID,
		CheckoutSessionID:  detail.ID,
		PlatformFee:        s.schedule().PlatformFee(amount),
	})
	if err != nil {
		return paymentdomain.Completion{}, err
	}
	if payment.Status != transactiondomain.StatusSucceeded {
		// Refunded between the lookup and the insert; undo our merge.
		if attendance == eventdomain.MergeAdded {
			if _, _, err := s.roster.Remove(ctx, meta.EventID, meta.UserID); err != nil {
				return paymentdomain.Completion{}, err
			}
		}
		s.logger(ctx).Info("checkout session refunded during reconcile",
			zap.String("transaction_id", payment.ID.String()),
		)
		return refundedCompletion(sessionID, meta, payment.ID), nil
	}

	s.logger(ctx).Info("checkout session reconciled",
		zap.String("source", string(source)),
		zap.String("attendance", string(attendance)),
		zap.Bool("payment_recorded", created),
	)

	return paymentdomain.Completion{
		SessionID:       sessionID,
		EventID:         meta.EventID,
		UserID:          meta.UserID,
		Attendance:      attendance,
		PaymentRecorded: created,
		TransactionID:   payment.ID,
	}, nil
}

func refundedCompletion(sessionID string, meta paymentdomain.CheckoutMetadata, paymentID snowflake.ID) paymentdomain.Completion {
	return paymentdomain.Completion{
		SessionID:     sessionID,
		EventID:       meta.EventID,
		UserID:        meta.UserID,
		Refunded:      true,
		TransactionID: paymentID,
	}
}

// acquireReconcileLock narrows the window in which the two completion paths
// run side by side. Failing to get the lock is not fatal.
func (s *Service) acquireReconcileLock(ctx context.Context, meta paymentdomain.CheckoutMetadata) func() {
	if s.locker == nil {
		return func() {}
	}
	key := fmt.Sprintf("reconcile:%s:%s", meta.UserID, meta.EventID)
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL())
	if err != nil {
		s.logger(ctx).Warn("reconcile lock unavailable", zap.String("key", key), zap.Error(err))
		return func() {}
	}
	if !ok {
		s.logger(ctx).Debug("reconcile lock held elsewhere", zap.String("key", key))
		return func() {}
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("release reconcile lock", zap.String("key", key), zap.Error(err))
		}
	}
}
