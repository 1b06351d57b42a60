package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/config"
	"github.com/smallbiznis/huddle/internal/event/attendance"
	"github.com/smallbiznis/huddle/internal/lock"
	obslogger "github.com/smallbiznis/huddle/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/huddle/internal/observability/metrics"
	"github.com/smallbiznis/huddle/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/smallbiznis/huddle/internal/payment/fee"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	userdomain "github.com/smallbiznis/huddle/internal/user/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultLockTTL = 10 * time.Second

var tracer = otel.Tracer("huddle/payment")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Clock        clock.Clock
	Gateway      paymentdomain.Gateway
	Users        userdomain.Repository
	Roster       *attendance.Roster
	Transactions transactiondomain.Service
	Locker       lock.Locker                 `optional:"true"`
	Policy       *config.PaymentPolicyHolder `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics         `optional:"true"`
}

// Service runs the paid-join flow: organizer onboarding, checkout creation,
// completion reconciliation and refunds on leave.
type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          config.PaymentConfig
	clock        clock.Clock
	gateway      paymentdomain.Gateway
	users        userdomain.Repository
	roster       *attendance.Roster
	transactions transactiondomain.Service
	locker       lock.Locker
	policy       *config.PaymentPolicyHolder
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		cfg:          p.Cfg.Payment,
		clock:        p.Clock,
		gateway:      p.Gateway,
		users:        p.Users,
		roster:       p.Roster,
		transactions: p.Transactions,
		locker:       p.Locker,
		policy:       p.Policy,
		obsMetrics:   p.ObsMetrics,
	}
}

// AsService exposes the service under its domain interfaces.
func AsService(s *Service) paymentdomain.Service     { return s }
func AsRefunder(s *Service) paymentdomain.Refunder   { return s }
func AsCompleter(s *Service) paymentdomain.Completer { return s }

// schedule returns the fee schedule of the live policy.
func (s *Service) schedule() fee.Schedule {
	if s.policy == nil {
		return fee.DefaultSchedule()
	}
	p := s.policy.Get()
	return fee.Schedule{
		PlatformRate:   p.PlatformFeeRate,
		ProcessorRate:  p.ProcessorFeeRate,
		ProcessorFixed: p.ProcessorFixedFee,
		RefundCutoff:   time.Duration(p.RefundCutoffHours) * time.Hour,
	}
}

func (s *Service) lockTTL() time.Duration {
	if s.policy == nil {
		return defaultLockTTL
	}
	if ms := s.policy.Get().ReconcileLockTTLMs; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultLockTTL
}

// loadUser returns the user or notFound.
func (s *Service) loadUser(ctx context.Context, id snowflake.ID, notFound error) (*userdomain.User, error) {
	user, err := s.users.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound
	}
	return user, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(tracing.SafeAttributes(attrs...)...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, string(paymentdomain.Kind(err)))
	}
	span.End()
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func outcomeOf(err error, success string) string {
	if err == nil {
		return success
	}
	return string(paymentdomain.Kind(err))
}
