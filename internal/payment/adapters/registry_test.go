package adapters

import (
	"testing"

	"github.com/smallbiznis/huddle/internal/payment/adapters/memory"
	"github.com/smallbiznis/huddle/internal/payment/adapters/stripe"
	"github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesProviders(t *testing.T) {
	registry := NewRegistry(stripe.NewFactory(), memory.NewFactory(), nil)

	assert.True(t, registry.ProviderExists(" Stripe "))
	assert.True(t, registry.ProviderExists("memory"))
	assert.False(t, registry.ProviderExists("adyen"))

	gateway, err := registry.NewGateway("memory", domain.GatewayConfig{WebhookSecret: "whsec"})
	require.NoError(t, err)
	assert.Equal(t, memory.ProviderName, gateway.Provider())

	_, err = registry.NewGateway("stripe", domain.GatewayConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = registry.NewGateway("adyen", domain.GatewayConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	var empty *Registry
	assert.False(t, empty.ProviderExists("stripe"))
}
