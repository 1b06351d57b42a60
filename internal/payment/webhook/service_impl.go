package webhook

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	obsmetrics "github.com/smallbiznis/huddle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Gateway    paymentdomain.Gateway
	Repo       paymentdomain.WebhookRepository
	Completer  paymentdomain.Completer
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	gateway    paymentdomain.Gateway
	repo       paymentdomain.WebhookRepository
	completer  paymentdomain.Completer
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      p.Clock,
		gateway:    p.Gateway,
		repo:       p.Repo,
		completer:  p.Completer,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook verifies and journals a gateway notification, then settles
// the checkout it refers to. A nil error means the delivery may be
// acknowledged: business rejections are recorded and swallowed so the gateway
// stops redelivering, while storage and gateway failures are returned for a
// retry.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, signatureHeader string) (paymentdomain.WebhookOutcome, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = s.gateway.Provider()
	}

	event, err := s.gateway.ConstructEvent(payload, signatureHeader)
	if err != nil {
		s.log.Warn("webhook rejected", zap.String("provider", provider), zap.Error(err))
		return paymentdomain.WebhookRejected, err
	}

	var objectID *string
	if event.ObjectID != "" {
		objectID = &event.ObjectID
	}
	record := paymentdomain.WebhookRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		ObjectID:        objectID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return "", err
	}
	if !inserted {
		stored, err := s.repo.FindEvent(ctx, s.db, provider, event.ID)
		if err != nil {
			return "", err
		}
		if stored == nil {
			return "", paymentdomain.ErrInvalidPayload
		}
		if stored.ProcessedAt != nil {
			s.log.Debug("webhook already processed",
				zap.String("provider_event_id", event.ID),
				zap.String("event_type", event.Type),
			)
			return paymentdomain.WebhookDuplicate, nil
		}
		record = *stored
	}
	s.obsMetrics.RecordWebhookEvent(ctx, provider, event.Type)

	return s.dispatch(ctx, record, event)
}

// Replay settles a journaled event whose earlier delivery failed with a
// retryable error and was never redelivered.
func (s *Service) Replay(ctx context.Context, record paymentdomain.WebhookRecord) (paymentdomain.WebhookOutcome, error) {
	if record.ProcessedAt != nil {
		return paymentdomain.WebhookDuplicate, nil
	}
	event := paymentdomain.WebhookEvent{
		ID:        record.ProviderEventID,
		Type:      record.EventType,
		CreatedAt: record.ReceivedAt,
		Payload:   []byte(record.Payload),
	}
	if record.ObjectID != nil {
		event.ObjectID = *record.ObjectID
	}
	s.log.Info("replaying webhook event",
		zap.String("provider_event_id", record.ProviderEventID),
		zap.String("event_type", record.EventType),
	)
	return s.dispatch(ctx, record, event)
}

func (s *Service) dispatch(ctx context.Context, record paymentdomain.WebhookRecord, event paymentdomain.WebhookEvent) (paymentdomain.WebhookOutcome, error) {
	switch event.Type {
	case paymentdomain.EventCheckoutSessionCompleted, paymentdomain.EventCheckoutSessionAsyncPaymentSucceeded:
		return s.complete(ctx, record, event)
	default:
		if err := s.markProcessed(ctx, record.ID, string(paymentdomain.WebhookIgnored)); err != nil {
			return "", err
		}
		return paymentdomain.WebhookIgnored, nil
	}
}

func (s *Service) complete(ctx context.Context, record paymentdomain.WebhookRecord, event paymentdomain.WebhookEvent) (paymentdomain.WebhookOutcome, error) {
	_, err := s.completer.CompleteSessionFrom(ctx, event.ObjectID, paymentdomain.CompletionSourceWebhook)
	if err != nil {
		if paymentdomain.Retryable(err) {
			s.log.Error("webhook completion failed, awaiting redelivery",
				zap.String("provider_event_id", event.ID),
				zap.String("session_id", event.ObjectID),
				zap.Error(err),
			)
			return "", err
		}
		s.log.Warn("webhook completion rejected",
			zap.String("provider_event_id", event.ID),
			zap.String("session_id", event.ObjectID),
			zap.String("kind", string(paymentdomain.Kind(err))),
			zap.Error(err),
		)
		if err := s.markProcessed(ctx, record.ID, string(paymentdomain.Kind(err))); err != nil {
			return "", err
		}
		return paymentdomain.WebhookProcessed, nil
	}

	if err := s.markProcessed(ctx, record.ID, string(paymentdomain.WebhookProcessed)); err != nil {
		return "", err
	}
	return paymentdomain.WebhookProcessed, nil
}

func (s *Service) markProcessed(ctx context.Context, id snowflake.ID, outcome string) error {
	return s.repo.MarkProcessed(ctx, s.db, id, outcome, s.clock.Now())
}
