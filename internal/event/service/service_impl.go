package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/event/attendance"
	"github.com/smallbiznis/huddle/internal/event/domain"
	obslogger "github.com/smallbiznis/huddle/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Roster   *attendance.Roster
	Refunder paymentdomain.Refunder
}

type Service struct {
	log      *zap.Logger
	roster   *attendance.Roster
	refunder paymentdomain.Refunder
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("event.service"),
		roster:   p.Roster,
		refunder: p.Refunder,
	}
}

func (s *Service) Get(ctx context.Context, eventID snowflake.ID) (*domain.Event, error) {
	if eventID == 0 {
		return nil, domain.ErrInvalidRequest
	}
	return s.roster.Load(ctx, eventID)
}

// Join adds the user to a free event. Paid events go through checkout.
func (s *Service) Join(ctx context.Context, req domain.JoinRequest) (domain.JoinResult, error) {
	if req.EventID == 0 || req.UserID == 0 {
		return domain.JoinResult{}, domain.ErrInvalidRequest
	}
	event, err := s.roster.Load(ctx, req.EventID)
	if err != nil {
		return domain.JoinResult{}, err
	}
	if event.RequiresPayment() {
		return domain.JoinResult{}, domain.ErrPaymentRequired
	}

	_, outcome, err := s.roster.Add(ctx, req.EventID, req.UserID, req.Positions)
	if err != nil {
		return domain.JoinResult{}, err
	}
	obslogger.WithContext(ctx, s.log).Info("attendee joined",
		obslogger.EventID(req.EventID),
		obslogger.UserID(req.UserID),
		zap.String("outcome", string(outcome)),
	)
	return domain.JoinResult{EventID: req.EventID, Outcome: outcome}, nil
}

// Leave removes the user from the roster. On a paid event the refund policy
// runs first; a blocked or empty refund is reported in the result and never
// stops the removal. Any other refund failure aborts before the roster
// changes so the attendee can retry. A retry after the refund succeeded but
// the removal failed reports that refund again.
func (s *Service) Leave(ctx context.Context, req domain.LeaveRequest) (domain.LeaveResult, error) {
	if req.EventID == 0 || req.UserID == 0 {
		return domain.LeaveResult{}, domain.ErrInvalidRequest
	}
	event, err := s.roster.Load(ctx, req.EventID)
	if err != nil {
		return domain.LeaveResult{}, err
	}
	if !event.HasAttendee(req.UserID) {
		return domain.LeaveResult{}, domain.ErrNotAttending
	}

	result := domain.LeaveResult{EventID: req.EventID}
	if !event.IsPaid {
		result.Reason = domain.NoRefundFreeEvent
	} else {
		attendee, _ := event.Attendee(req.UserID)
		refund, err := s.refundFor(ctx, req.UserID, req.EventID, attendee.JoinedAt)
		switch {
		case errors.Is(err, paymentdomain.ErrPastDeadline):
			result.Reason = domain.NoRefundPastDeadline
		case errors.Is(err, paymentdomain.ErrZeroAmount):
			result.Reason = domain.NoRefundZeroAmount
		case err != nil:
			return domain.LeaveResult{}, err
		case refund == nil:
			result.Reason = domain.NoRefundNoPayment
		default:
			result.Refunded = true
			result.RefundAmount = refund.Amount
			result.Currency = refund.Currency
		}
	}

	_, removed, err := s.roster.Remove(ctx, req.EventID, req.UserID)
	if err != nil {
		return domain.LeaveResult{}, err
	}
	result.Left = removed

	obslogger.WithContext(ctx, s.log).Info("attendee left",
		obslogger.EventID(req.EventID),
		obslogger.UserID(req.UserID),
		zap.Bool("refunded", result.Refunded),
		zap.String("reason", result.Reason),
	)
	return result, nil
}

// refundFor issues the refund, or returns the one already issued since the
// attendee joined.
func (s *Service) refundFor(ctx context.Context, userID, eventID snowflake.ID, joinedAt time.Time) (*paymentdomain.RefundResult, error) {
	prior, err := s.refunder.RefundSince(ctx, userID, eventID, joinedAt)
	if err != nil || prior != nil {
		return prior, err
	}
	return s.refunder.ProcessRefund(ctx, userID, eventID)
}
