package payment

import (
	"fmt"

	"github.com/smallbiznis/huddle/internal/config"
	"github.com/smallbiznis/huddle/internal/payment/adapters"
	"github.com/smallbiznis/huddle/internal/payment/adapters/memory"
	"github.com/smallbiznis/huddle/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/smallbiznis/huddle/internal/payment/repository"
	paymentservice "github.com/smallbiznis/huddle/internal/payment/service"
	"github.com/smallbiznis/huddle/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
			memory.NewFactory(),
		)
	}),
	fx.Provide(NewGateway),
	fx.Provide(paymentservice.NewService),
	fx.Provide(paymentservice.AsService),
	fx.Provide(paymentservice.AsRefunder),
	fx.Provide(paymentservice.AsCompleter),
	fx.Provide(webhook.NewService),
)

// NewGateway builds the gateway named by PAYMENT_GATEWAY.
func NewGateway(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (paymentdomain.Gateway, error) {
	provider := cfg.Payment.Gateway
	if provider == memory.ProviderName && cfg.IsProduction() {
		return nil, fmt.Errorf("%w: memory gateway is not allowed in production", paymentdomain.ErrInvalidConfig)
	}
	if !registry.ProviderExists(provider) {
		return nil, fmt.Errorf("%w: %q", paymentdomain.ErrProviderNotFound, provider)
	}

	gateway, err := registry.NewGateway(provider, paymentdomain.GatewayConfig{
		SecretKey:        cfg.Payment.StripeSecretKey,
		APIBase:          cfg.Payment.StripeAPIBase,
		WebhookSecret:    cfg.Payment.WebhookSecret,
		WebhookTolerance: cfg.Payment.WebhookTolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("payment gateway %s: %w", provider, err)
	}
	log.Named("payment").Info("payment gateway ready", zap.String("provider", gateway.Provider()))
	return gateway, nil
}
