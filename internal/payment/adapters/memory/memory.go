// Package memory is an in-process payment gateway for local runs and tests.
// Webhooks use the same signature scheme as the Stripe adapter.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/huddle/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
)

const ProviderName = "memory"

const (
	OpCreateAccount   = "create_account"
	OpAccountLink     = "account_link"
	OpRetrieveAccount = "retrieve_account"
	OpCreateSession   = "create_session"
	OpRetrieveSession = "retrieve_session"
	OpCreateRefund    = "create_refund"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return ProviderName
}

func (f *Factory) NewGateway(cfg paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	return New(cfg.WebhookSecret), nil
}

type account struct {
	status paymentdomain.AccountStatus
	email  string
}

type session struct {
	input  paymentdomain.CheckoutSessionInput
	detail paymentdomain.CheckoutSessionDetail
}

// Gateway keeps accounts, sessions and refunds in maps. Idempotency keys
// behave like the real API: a repeated key returns the first result.
type Gateway struct {
	mu            sync.Mutex
	webhookSecret string
	seq           int
	accounts      map[string]*account
	sessions      map[string]*session
	refunds       map[string]paymentdomain.Refund
	idempotent    map[string]string
	failures      map[string]error
	calls         map[string]int
}

func New(webhookSecret string) *Gateway {
	return &Gateway{
		webhookSecret: webhookSecret,
		accounts:      map[string]*account{},
		sessions:      map[string]*session{},
		refunds:       map[string]paymentdomain.Refund{},
		idempotent:    map[string]string{},
		failures:      map[string]error{},
		calls:         map[string]int{},
	}
}

func (g *Gateway) Provider() string {
	return ProviderName
}

// FailNext makes the next call to op return err.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// Calls reports how many times op was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// EnableAccount marks a connected account as fully onboarded.
func (g *Gateway) EnableAccount(accountID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	acct, ok := g.accounts[accountID]
	if !ok {
		acct = &account{status: paymentdomain.AccountStatus{ID: accountID}}
		g.accounts[accountID] = acct
	}
	acct.status.ChargesEnabled = true
	acct.status.PayoutsEnabled = true
	acct.status.DetailsSubmitted = true
}

// MarkPaid settles a checkout session as the hosted page would.
func (g *Gateway) MarkPaid(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[sessionID]
	if !ok {
		return paymentdomain.ErrSessionNotFound
	}
	g.seq++
	sess.detail.PaymentStatus = paymentdomain.PaymentStatusPaid
	sess.detail.PaymentIntentID = fmt.Sprintf("pi_mem_%d", g.seq)
	return nil
}

// PutSession registers a session directly, for replaying foreign or
// malformed sessions.
func (g *Gateway) PutSession(detail paymentdomain.CheckoutSessionDetail) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[detail.ID] = &session{detail: detail}
}

// SessionInput returns what CreateCheckoutSession was called with.
func (g *Gateway) SessionInput(sessionID string) (paymentdomain.CheckoutSessionInput, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[sessionID]
	if !ok {
		return paymentdomain.CheckoutSessionInput{}, false
	}
	return sess.input, true
}

// Refunds returns every refund issued so far.
func (g *Gateway) Refunds() []paymentdomain.Refund {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]paymentdomain.Refund, 0, len(g.refunds))
	for _, refund := range g.refunds {
		out = append(out, refund)
	}
	return out
}

// SignWebhook returns a signature header accepted by ConstructEvent.
func (g *Gateway) SignWebhook(payload []byte, at time.Time) string {
	return stripe.SignPayload(payload, g.webhookSecret, at)
}

func (g *Gateway) enter(op string) error {
	g.calls[op]++
	if err, ok := g.failures[op]; ok {
		delete(g.failures, op)
		return err
	}
	return nil
}

func (g *Gateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_mem_%d", prefix, g.seq)
}

func (g *Gateway) CreateAccount(ctx context.Context, in paymentdomain.CreateAccountInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreateAccount); err != nil {
		return "", err
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		if id, ok := g.idempotent[key]; ok {
			return id, nil
		}
	}
	id := g.nextID("acct")
	g.accounts[id] = &account{status: paymentdomain.AccountStatus{ID: id}, email: in.Email}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		g.idempotent[key] = id
	}
	return id, nil
}

func (g *Gateway) CreateAccountLink(ctx context.Context, in paymentdomain.AccountLinkInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpAccountLink); err != nil {
		return "", err
	}
	if _, ok := g.accounts[in.AccountID]; !ok {
		return "", fmt.Errorf("%w: no such account %s", paymentdomain.ErrGateway, in.AccountID)
	}
	return "https://connect.memory.test/setup/" + in.AccountID, nil
}

func (g *Gateway) RetrieveAccount(ctx context.Context, accountID string) (paymentdomain.AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpRetrieveAccount); err != nil {
		return paymentdomain.AccountStatus{}, err
	}
	acct, ok := g.accounts[accountID]
	if !ok {
		return paymentdomain.AccountStatus{}, fmt.Errorf("%w: no such account %s", paymentdomain.ErrGateway, accountID)
	}
	return acct.status, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, in paymentdomain.CheckoutSessionInput) (paymentdomain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreateSession); err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	if in.Amount <= 0 || in.DestinationAccountID == "" {
		return paymentdomain.CheckoutSession{}, paymentdomain.ErrInvalidRequest
	}
	id := g.nextID("cs")
	metadata := make(map[string]string, len(in.Metadata))
	for key, value := range in.Metadata {
		metadata[key] = value
	}
	g.sessions[id] = &session{
		input: in,
		detail: paymentdomain.CheckoutSessionDetail{
			ID:            id,
			PaymentStatus: "unpaid",
			AmountTotal:   in.Amount,
			Currency:      strings.ToUpper(in.Currency),
			Metadata:      metadata,
		},
	}
	return paymentdomain.CheckoutSession{ID: id, URL: "https://checkout.memory.test/" + id}, nil
}

func (g *Gateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (paymentdomain.CheckoutSessionDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpRetrieveSession); err != nil {
		return paymentdomain.CheckoutSessionDetail{}, err
	}
	sess, ok := g.sessions[sessionID]
	if !ok {
		return paymentdomain.CheckoutSessionDetail{}, paymentdomain.ErrSessionNotFound
	}
	return sess.detail, nil
}

func (g *Gateway) CreateRefund(ctx context.Context, in paymentdomain.RefundInput) (paymentdomain.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreateRefund); err != nil {
		return paymentdomain.Refund{}, err
	}
	if in.PaymentIntentID == "" || in.Amount <= 0 {
		return paymentdomain.Refund{}, paymentdomain.ErrInvalidRequest
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if id, ok := g.idempotent[key]; ok {
			return g.refunds[id], nil
		}
	}
	refund := paymentdomain.Refund{ID: g.nextID("re"), Status: "succeeded", Amount: in.Amount}
	g.refunds[refund.ID] = refund
	if key != "" {
		g.idempotent[key] = refund.ID
	}
	return refund, nil
}

func (g *Gateway) ConstructEvent(payload []byte, signatureHeader string) (paymentdomain.WebhookEvent, error) {
	if err := stripe.VerifySignature(payload, signatureHeader, g.webhookSecret, 0, time.Now()); err != nil {
		return paymentdomain.WebhookEvent{}, err
	}
	return stripe.ParseEvent(payload)
}
