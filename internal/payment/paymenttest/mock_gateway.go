package paymenttest

import (
	"context"

	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of paymentdomain.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Provider() string {
	return "mock"
}

func (m *MockGateway) CreateAccount(ctx context.Context, in paymentdomain.CreateAccountInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateAccountLink(ctx context.Context, in paymentdomain.AccountLinkInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) RetrieveAccount(ctx context.Context, accountID string) (paymentdomain.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(paymentdomain.AccountStatus), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, in paymentdomain.CheckoutSessionInput) (paymentdomain.CheckoutSession, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(paymentdomain.CheckoutSession), args.Error(1)
}

func (m *MockGateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (paymentdomain.CheckoutSessionDetail, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(paymentdomain.CheckoutSessionDetail), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, in paymentdomain.RefundInput) (paymentdomain.Refund, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(paymentdomain.Refund), args.Error(1)
}

func (m *MockGateway) ConstructEvent(payload []byte, signatureHeader string) (paymentdomain.WebhookEvent, error) {
	args := m.Called(payload, signatureHeader)
	return args.Get(0).(paymentdomain.WebhookEvent), args.Error(1)
}
