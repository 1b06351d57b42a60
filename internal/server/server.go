package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/huddle/internal/config"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	"github.com/smallbiznis/huddle/internal/observability"
	obslogger "github.com/smallbiznis/huddle/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/huddle/internal/observability/metrics"
	obstracing "github.com/smallbiznis/huddle/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/smallbiznis/huddle/internal/ratelimit"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(CorrelationID())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	log            *zap.Logger
	paymentSvc     paymentdomain.Service
	webhookSvc     paymentdomain.WebhookService
	eventSvc       eventdomain.Service
	transactionSvc transactiondomain.Service
	limiter        ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Log            *zap.Logger
	PaymentSvc     paymentdomain.Service
	WebhookSvc     paymentdomain.WebhookService
	EventSvc       eventdomain.Service
	TransactionSvc transactiondomain.Service
	Limiter        ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		log:            p.Log.Named("http.server"),
		paymentSvc:     p.PaymentSvc,
		webhookSvc:     p.WebhookSvc,
		eventSvc:       p.EventSvc,
		transactionSvc: p.TransactionSvc,
		limiter:        p.Limiter,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/stripe", s.HandleStripeWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", CallerRequired())

	// -------- Payments --------
	limited := RateLimit(s.limiter, s.log)
	api.POST("/payments/checkout", limited, s.CreateCheckout)
	api.POST("/payments/verify", limited, s.VerifyPayment)
	api.POST("/payments/onboard", limited, s.Onboard)
	api.GET("/payments/onboard/status", s.OnboardStatus)

	// -------- Events --------
	api.GET("/events/:event_id", s.GetEvent)
	api.POST("/events/:event_id/join", s.JoinEvent)
	api.POST("/events/:event_id/leave", s.LeaveEvent)
	api.GET("/events/:event_id/transactions", s.ListEventTransactions)
}
