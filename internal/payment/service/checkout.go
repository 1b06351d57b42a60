package service

import (
	"context"
	"errors"

	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	obslogger "github.com/smallbiznis/huddle/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateCheckout opens a hosted checkout for one seat on a paid event. The
// full price is transferred to the organizer minus the platform fee. Every
// precondition is checked before the gateway is contacted.
func (s *Service) CreateCheckout(ctx context.Context, req paymentdomain.CreateCheckoutRequest) (result paymentdomain.CheckoutResult, err error) {
	ctx, span := startSpan(ctx, "payment.CreateCheckout",
		attribute.String("event_id", req.EventID.String()),
		attribute.String("user_id", req.UserID.String()),
	)
	defer func() {
		s.obsMetrics.RecordCheckout(ctx, outcomeOf(err, "created"))
		endSpan(span, err)
	}()

	if req.EventID == 0 || req.UserID == 0 {
		return paymentdomain.CheckoutResult{}, paymentdomain.ErrInvalidRequest
	}

	event, err := s.roster.Load(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, eventdomain.ErrNotFound) {
			return paymentdomain.CheckoutResult{}, paymentdomain.ErrEventNotFound
		}
		return paymentdomain.CheckoutResult{}, err
	}
	if !event.RequiresPayment() {
		return paymentdomain.CheckoutResult{}, paymentdomain.ErrEventNotPaid
	}

	organizer, err := s.loadUser(ctx, event.OrganizerID, paymentdomain.ErrOrganizerNotFound)
	if err != nil {
		return paymentdomain.CheckoutResult{}, err
	}
	if !organizer.CanReceivePayments() {
		return paymentdomain.CheckoutResult{}, paymentdomain.ErrOrganizerPaymentsDisabled
	}
	if event.HasAttendee(req.UserID) {
		return paymentdomain.CheckoutResult{}, paymentdomain.ErrAlreadyAttending
	}

	currency := event.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	meta := paymentdomain.CheckoutMetadata{
		Type:      paymentdomain.CheckoutTypeEventJoin,
		UserID:    req.UserID,
		EventID:   req.EventID,
		Positions: req.Positions,
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionInput{
		Amount:               event.Price,
		Currency:             currency,
		ProductName:          event.Title,
		DestinationAccountID: organizer.MerchantAccountID(),
		ApplicationFee:       s.schedule().PlatformFee(event.Price),
		Metadata:             meta.Encode(),
		SuccessURL:           s.cfg.CheckoutSuccessURL,
		CancelURL:            s.cfg.CheckoutCancelURL,
	})
	if err != nil {
		return paymentdomain.CheckoutResult{}, err
	}

	ctx = obslogger.With(ctx, obslogger.EventID(req.EventID), obslogger.UserID(req.UserID))
	s.logger(ctx).Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.Int64("amount", event.Price),
	)
	return paymentdomain.CheckoutResult{SessionID: session.ID, RedirectURL: session.URL}, nil
}
