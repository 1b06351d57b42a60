package stripe

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
)

const (
	ProviderName     = "stripe"
	SignatureHeader  = "Stripe-Signature"
	defaultAPIBase   = "https://api.stripe.com"
	defaultTolerance = 5 * time.Minute
	requestTimeout   = 12 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return ProviderName
}

func (f *Factory) NewGateway(cfg paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if secretKey == "" || webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}

	return &Adapter{
		apiBase:       apiBase,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		tolerance:     tolerance,
		httpClient:    &http.Client{Timeout: requestTimeout},
		now:           time.Now,
	}, nil
}

// Adapter talks to the Stripe REST API with Connect destination charges.
type Adapter struct {
	apiBase       string
	secretKey     string
	webhookSecret string
	tolerance     time.Duration
	httpClient    *http.Client
	now           func() time.Time
}

func (a *Adapter) Provider() string {
	return ProviderName
}

func (a *Adapter) CreateAccount(ctx context.Context, in paymentdomain.CreateAccountInput) (string, error) {
	form := url.Values{}
	form.Set("type", "express")
	if email := strings.TrimSpace(in.Email); email != "" {
		form.Set("email", email)
	}
	if country := strings.TrimSpace(in.Country); country != "" {
		form.Set("country", strings.ToUpper(country))
	}
	form.Set("capabilities[card_payments][requested]", "true")
	form.Set("capabilities[transfers][requested]", "true")

	var account stripeAccount
	if err := a.do(ctx, http.MethodPost, "/v1/accounts", form, in.IdempotencyKey, &account); err != nil {
		return "", err
	}
	if strings.TrimSpace(account.ID) == "" {
		return "", fmt.Errorf("%w: account id missing", paymentdomain.ErrGateway)
	}
	return account.ID, nil
}

func (a *Adapter) CreateAccountLink(ctx context.Context, in paymentdomain.AccountLinkInput) (string, error) {
	if strings.TrimSpace(in.AccountID) == "" {
		return "", paymentdomain.ErrInvalidRequest
	}
	form := url.Values{}
	form.Set("account", in.AccountID)
	form.Set("return_url", in.ReturnURL)
	form.Set("refresh_url", in.RefreshURL)
	form.Set("type", "account_onboarding")

	var link stripeAccountLink
	if err := a.do(ctx, http.MethodPost, "/v1/account_links", form, "", &link); err != nil {
		return "", err
	}
	return link.URL, nil
}

func (a *Adapter) RetrieveAccount(ctx context.Context, accountID string) (paymentdomain.AccountStatus, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return paymentdomain.AccountStatus{}, paymentdomain.ErrInvalidRequest
	}
	var account stripeAccount
	if err := a.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), nil, "", &account); err != nil {
		return paymentdomain.AccountStatus{}, err
	}
	return paymentdomain.AccountStatus{
		ID:               account.ID,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, in paymentdomain.CheckoutSessionInput) (paymentdomain.CheckoutSession, error) {
	if in.Amount <= 0 || strings.TrimSpace(in.DestinationAccountID) == "" {
		return paymentdomain.CheckoutSession{}, paymentdomain.ErrInvalidRequest
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", in.ProductName)
	form.Set("payment_intent_data[application_fee_amount]", strconv.FormatInt(in.ApplicationFee, 10))
	form.Set("payment_intent_data[transfer_data][destination]", in.DestinationAccountID)
	setMetadata(form, "metadata", in.Metadata)
	setMetadata(form, "payment_intent_data[metadata]", in.Metadata)

	var session stripeCheckoutSession
	if err := a.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, "", &session); err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	return paymentdomain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) RetrieveCheckoutSession(ctx context.Context, sessionID string) (paymentdomain.CheckoutSessionDetail, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return paymentdomain.CheckoutSessionDetail{}, paymentdomain.ErrInvalidRequest
	}
	var session stripeCheckoutSession
	if err := a.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "", &session); err != nil {
		return paymentdomain.CheckoutSessionDetail{}, err
	}
	return session.detail(), nil
}

func (a *Adapter) CreateRefund(ctx context.Context, in paymentdomain.RefundInput) (paymentdomain.Refund, error) {
	if strings.TrimSpace(in.PaymentIntentID) == "" || in.Amount <= 0 {
		return paymentdomain.Refund{}, paymentdomain.ErrInvalidRequest
	}
	form := url.Values{}
	form.Set("payment_intent", in.PaymentIntentID)
	form.Set("amount", strconv.FormatInt(in.Amount, 10))
	form.Set("reverse_transfer", strconv.FormatBool(in.ReverseTransfer))
	form.Set("refund_application_fee", "false")
	setMetadata(form, "metadata", in.Metadata)

	var refund stripeRefund
	if err := a.do(ctx, http.MethodPost, "/v1/refunds", form, in.IdempotencyKey, &refund); err != nil {
		return paymentdomain.Refund{}, err
	}
	return paymentdomain.Refund{ID: refund.ID, Status: refund.Status, Amount: refund.Amount}, nil
}

func (a *Adapter) ConstructEvent(payload []byte, signatureHeader string) (paymentdomain.WebhookEvent, error) {
	if err := VerifySignature(payload, signatureHeader, a.webhookSecret, a.tolerance, a.now()); err != nil {
		return paymentdomain.WebhookEvent{}, err
	}
	return ParseEvent(payload)
}

func (a *Adapter) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, a.apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrGateway, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", paymentdomain.ErrGateway, err)
	}
	return nil
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(status int, raw []byte) error {
	var resp stripeErrorResponse
	_ = json.Unmarshal(raw, &resp)
	if status == http.StatusNotFound || resp.Error.Code == "resource_missing" {
		return paymentdomain.ErrSessionNotFound
	}
	msg := strings.TrimSpace(resp.Error.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w: %s", paymentdomain.ErrGateway, msg)
}

func setMetadata(form url.Values, prefix string, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		form.Set(prefix+"["+key+"]", metadata[key])
	}
}

type stripeAccount struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

type stripeAccountLink struct {
	URL string `json:"url"`
}

type stripeCheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent json.RawMessage   `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// paymentIntentID accepts both the bare id and an expanded object.
func (s stripeCheckoutSession) paymentIntentID() string {
	raw := bytes.TrimSpace(s.PaymentIntent)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}

func (s stripeCheckoutSession) detail() paymentdomain.CheckoutSessionDetail {
	metadata := s.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return paymentdomain.CheckoutSessionDetail{
		ID:              s.ID,
		PaymentStatus:   s.PaymentStatus,
		PaymentIntentID: s.paymentIntentID(),
		AmountTotal:     s.AmountTotal,
		Currency:        strings.ToUpper(strings.TrimSpace(s.Currency)),
		Metadata:        metadata,
	}
}

type stripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

// ParseEvent decodes a webhook body that has already been verified.
func ParseEvent(payload []byte) (paymentdomain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return paymentdomain.WebhookEvent{}, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return paymentdomain.WebhookEvent{}, paymentdomain.ErrInvalidPayload
	}

	var object struct {
		ID string `json:"id"`
	}
	if len(event.Data.Object) > 0 {
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return paymentdomain.WebhookEvent{}, paymentdomain.ErrInvalidPayload
		}
	}

	createdAt := time.Now().UTC()
	if event.Created > 0 {
		createdAt = time.Unix(event.Created, 0).UTC()
	}
	return paymentdomain.WebhookEvent{
		ID:        strings.TrimSpace(event.ID),
		Type:      strings.TrimSpace(event.Type),
		ObjectID:  strings.TrimSpace(object.ID),
		CreatedAt: createdAt,
		Payload:   payload,
	}, nil
}

// VerifySignature checks a Stripe-Signature header of the form
// "t=<unix>,v1=<hex hmac>" against payload.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return paymentdomain.ErrInvalidSignature
	}
	timestamp, signatures, err := parseStripeSignature(header)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	expected := computeSignature(secret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

// SignPayload builds a header VerifySignature accepts.
func SignPayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, computeSignature(secret, timestamp, payload))
}

func computeSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}
