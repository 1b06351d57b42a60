package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/lock"
	obsmetrics "github.com/smallbiznis/huddle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	userdomain "github.com/smallbiznis/huddle/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      Config
	WebhookSvc  paymentdomain.WebhookService
	WebhookRepo paymentdomain.WebhookRepository
	PaymentSvc  paymentdomain.Service
	Users       userdomain.Repository
	Locker      lock.Locker         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

// Scheduler runs periodic sweeps that repair payment state the request path
// could not finish.
type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	webhookSvc  paymentdomain.WebhookService
	webhookRepo paymentdomain.WebhookRepository
	paymentSvc  paymentdomain.Service
	users       userdomain.Repository
	locker      lock.Locker
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.WebhookSvc == nil || p.WebhookRepo == nil || p.PaymentSvc == nil || p.Users == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		webhookSvc:  p.WebhookSvc,
		webhookRepo: p.WebhookRepo,
		paymentSvc:  p.PaymentSvc,
		users:       p.Users,
		locker:      p.Locker,
		obsMetrics:  p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	release, ok := s.acquire(ctx, name)
	if !ok {
		s.log.Debug("job held by another instance", zap.String("job", name))
		s.obsMetrics.RecordJobRun(ctx, name, "skipped")
		return nil
	}
	defer release()

	ctx, run := s.startJobRun(ctx, name)
	err := fn(ctx)
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)

	if err == nil {
		s.obsMetrics.RecordJobRun(ctx, name, "ok")
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.obsMetrics.RecordJobRun(ctx, name, "timeout")
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	s.obsMetrics.RecordJobRun(ctx, name, "error")
	return fmt.Errorf("%s: %w", name, err)
}

// acquire takes the per-job lock so only one replica runs a sweep at a time.
// Without a locker every replica runs; the sweeps are idempotent.
func (s *Scheduler) acquire(ctx context.Context, job string) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}
	key := "scheduler:" + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.JobTimeout)
	if err != nil {
		s.log.Warn("scheduler lock unavailable", zap.String("job", job), zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := s.locker.Release(context.Background(), key, token); err != nil {
			s.log.Warn("release scheduler lock", zap.String("job", job), zap.Error(err))
		}
	}, true
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"webhook_replay", s.WebhookReplayJob},
		{"onboarding_refresh", s.OnboardingRefreshJob},
	}

	var err error
	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
