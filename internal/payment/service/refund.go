package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	obslogger "github.com/smallbiznis/huddle/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessRefund refunds a leaving attendee's seat. It returns ErrPastDeadline
// inside the refund cutoff, nil with no error when the attendee never paid,
// and ErrZeroAmount when fees would eat the whole refund. The organizer's
// transfer is reversed; the platform fee is kept.
func (s *Service) ProcessRefund(ctx context.Context, userID, eventID snowflake.ID) (result *paymentdomain.RefundResult, err error) {
	ctx, span := startSpan(ctx, "payment.ProcessRefund",
		attribute.String("event_id", eventID.String()),
		attribute.String("user_id", userID.String()),
	)
	defer func() {
		outcome := outcomeOf(err, "refunded")
		if err == nil && result == nil {
			outcome = "no_payment"
		}
		s.obsMetrics.RecordRefund(ctx, outcome)
		endSpan(span, err)
	}()

	if userID == 0 || eventID == 0 {
		return nil, paymentdomain.ErrInvalidRequest
	}
	ctx = obslogger.With(ctx, obslogger.EventID(eventID), obslogger.UserID(userID))

	event, err := s.roster.Load(ctx, eventID)
	if err != nil {
		if errors.Is(err, eventdomain.ErrNotFound) {
			return nil, paymentdomain.ErrEventNotFound
		}
		return nil, err
	}

	schedule := s.schedule()
	if !schedule.RefundOpen(event.StartsAt, s.clock.Now()) {
		return nil, paymentdomain.ErrPastDeadline
	}

	payment, err := s.transactions.FindSucceededPayment(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, nil
	}

	amount := schedule.RefundAmount(payment.Amount)
	if amount <= 0 {
		return nil, paymentdomain.ErrZeroAmount
	}
	if payment.PaymentRef() == "" {
		return nil, fmt.Errorf("payment %s has no gateway reference", payment.ID)
	}

	refund, err := s.gateway.CreateRefund(ctx, paymentdomain.RefundInput{
		PaymentIntentID: payment.PaymentRef(),
		Amount:          amount,
		ReverseTransfer: true,
		IdempotencyKey:  fmt.Sprintf("refund:%s", payment.ID),
		Metadata: map[string]string{
			"event_id":   eventID.String(),
			"user_id":    userID.String(),
			"payment_id": payment.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	recorded, err := s.transactions.RecordRefund(ctx, transactiondomain.RefundInput{
		Payment:           *payment,
		Amount:            amount,
		ExternalRefundRef: refund.ID,
	})
	if err != nil {
		return nil, err
	}

	s.logger(ctx).Info("refund issued",
		zap.String("payment_id", payment.ID.String()),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount", amount),
	)

	return &paymentdomain.RefundResult{
		PaymentID:      payment.ID,
		RefundID:       recorded.ID,
		ExternalRefund: refund.ID,
		OriginalAmount: payment.Amount,
		Amount:         amount,
		Currency:       payment.Currency,
	}, nil
}

// RefundSince returns the latest refund recorded for the user on the event at
// or after since, or nil. A leave interrupted after its refund went through
// uses it on retry to report that refund instead of "no payment".
func (s *Service) RefundSince(ctx context.Context, userID, eventID snowflake.ID, since time.Time) (*paymentdomain.RefundResult, error) {
	if userID == 0 || eventID == 0 {
		return nil, paymentdomain.ErrInvalidRequest
	}
	items, err := s.transactions.List(ctx, transactiondomain.ListFilter{EventID: eventID, UserID: &userID})
	if err != nil {
		return nil, err
	}

	var refund *transactiondomain.Transaction
	for i := range items {
		if items[i].Kind == transactiondomain.KindRefund && !items[i].CreatedAt.Before(since) {
			refund = &items[i]
		}
	}
	if refund == nil {
		return nil, nil
	}

	result := &paymentdomain.RefundResult{
		RefundID: refund.ID,
		Amount:   refund.Amount,
		Currency: refund.Currency,
	}
	if refund.ExternalRefundRef != nil {
		result.ExternalRefund = *refund.ExternalRefundRef
	}
	for _, item := range items {
		if item.Kind == transactiondomain.KindPayment && item.PaymentRef() != "" && item.PaymentRef() == refund.PaymentRef() {
			result.PaymentID = item.ID
			result.OriginalAmount = item.Amount
		}
	}
	return result, nil
}
