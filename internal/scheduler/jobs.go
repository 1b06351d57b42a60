package scheduler

import (
	"context"

	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"go.uber.org/zap"
)

// WebhookReplayJob settles journaled webhook events that are still
// unprocessed after ReplayAfter. These are deliveries that failed with a
// retryable error and were not redelivered by the gateway.
func (s *Scheduler) WebhookReplayJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.ReplayAfter)
	records, err := s.webhookRepo.ListPending(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	run := jobRunFromContext(ctx)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := s.webhookSvc.Replay(ctx, record)
		if err != nil {
			s.logJobError(ctx, "webhook replay failed", err,
				zap.String("provider_event_id", record.ProviderEventID),
				zap.String("kind", string(paymentdomain.Kind(err))),
			)
			continue
		}
		run.AddProcessed(1)
		s.logger(ctx).Debug("webhook replayed",
			zap.String("provider_event_id", record.ProviderEventID),
			zap.String("outcome", string(outcome)),
		)
	}
	return nil
}

// OnboardingRefreshJob polls the gateway for organizers whose merchant
// account is not yet enabled, so payments open up without the organizer
// revisiting the status page.
func (s *Scheduler) OnboardingRefreshJob(ctx context.Context) error {
	users, err := s.users.ListPendingOnboarding(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	run := jobRunFromContext(ctx)
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := s.paymentSvc.RefreshOnboarding(ctx, user.ID)
		if err != nil {
			s.logJobError(ctx, "onboarding refresh failed", err,
				zap.String("user_id", user.ID.String()),
			)
			continue
		}
		if status.PaymentsEnabled {
			run.AddProcessed(1)
			s.logger(ctx).Info("organizer payments enabled",
				zap.String("user_id", user.ID.String()),
				zap.String("account_id", status.AccountID),
			)
		}
	}
	return nil
}
