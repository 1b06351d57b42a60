package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	eventservice "github.com/smallbiznis/huddle/internal/event/service"
	"github.com/smallbiznis/huddle/internal/observability"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/smallbiznis/huddle/internal/payment/paymenttest"
	paymentrepo "github.com/smallbiznis/huddle/internal/payment/repository"
	"github.com/smallbiznis/huddle/internal/payment/webhook"
	"github.com/smallbiznis/huddle/internal/ratelimit"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*paymenttest.Harness, *gin.Engine) {
	t.Helper()
	return newLimitedTestServer(t, nil)
}

func newLimitedTestServer(t *testing.T, limiter ratelimit.Limiter) (*paymenttest.Harness, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := paymenttest.New(t)

	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:        engine,
		Log:        h.Log,
		PaymentSvc: h.Service,
		WebhookSvc: webhook.NewService(webhook.Params{
			DB:        h.DB,
			Log:       h.Log,
			GenID:     h.Node,
			Clock:     h.Clock,
			Gateway:   h.Gateway,
			Repo:      paymentrepo.Provide(),
			Completer: h.Service,
		}),
		EventSvc: eventservice.NewService(eventservice.Params{
			Log:      h.Log,
			Roster:   h.Roster,
			Refunder: h.Service,
		}),
		TransactionSvc: h.Transactions,
		Limiter:        limiter,
	})
	return h, engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, caller snowflake.ID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != 0 {
		req.Header.Set(HeaderUserID, caller.String())
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func webhookRequest(t *testing.T, h *paymenttest.Harness, eventID, sessionID string) *http.Request {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":   eventID,
		"type": paymentdomain.EventCheckoutSessionCompleted,
		"data": map[string]any{"object": map[string]any{"id": sessionID}},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", h.Memory.SignWebhook(payload, time.Now()))
	return req
}

func TestHealthAndCorrelation(t *testing.T) {
	_, engine := newTestServer(t)

	rec := doJSON(t, engine, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "corr-1", rec.Header().Get(HeaderCorrelationID))
}

func TestAPIRequiresCaller(t *testing.T) {
	_, engine := newTestServer(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/payments/checkout", 0, map[string]any{"event_id": "1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorResponse](t, rec).Error.Type)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/onboard", nil)
	req.Header.Set(HeaderUserID, "not-a-number")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutWebhookVerifyFlow(t *testing.T) {
	h, engine := newTestServer(t)
	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	bystander := h.User(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/payments/checkout", player.ID, map[string]any{
		"event_id":  event.ID.String(),
		"positions": []string{"GK"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checkout := decode[paymentdomain.CheckoutResult](t, rec)
	require.NotEmpty(t, checkout.SessionID)
	assert.NotEmpty(t, checkout.RedirectURL)

	rec = doJSON(t, engine, http.MethodPost, "/api/payments/verify", player.ID, map[string]any{"session_id": checkout.SessionID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payment_incomplete", decode[errorResponse](t, rec).Error.Code)

	require.NoError(t, h.Memory.MarkPaid(checkout.SessionID))

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, webhookRequest(t, h, "evt_http_1", checkout.SessionID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, http.MethodPost, "/api/payments/verify", player.ID, map[string]any{"session_id": checkout.SessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[verifyResponse](t, rec)
	assert.True(t, verified.Verified)
	assert.Equal(t, event.ID.String(), verified.EventID)
	assert.Equal(t, "already_present", verified.Attendance)
	assert.False(t, verified.PaymentRecorded)

	type listResponse struct {
		Data []struct {
			Kind   string `json:"kind"`
			Amount int64  `json:"amount"`
			Status string `json:"status"`
		} `json:"data"`
	}
	path := "/api/events/" + event.ID.String() + "/transactions"

	rec = doJSON(t, engine, http.MethodGet, path, organizer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[listResponse](t, rec)
	require.Len(t, all.Data, 1)
	assert.Equal(t, "payment", all.Data[0].Kind)
	assert.Equal(t, int64(1000), all.Data[0].Amount)
	assert.Equal(t, "succeeded", all.Data[0].Status)

	rec = doJSON(t, engine, http.MethodGet, path, bystander.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[listResponse](t, rec).Data)

	rec = doJSON(t, engine, http.MethodGet, path+"?kind=bogus", organizer.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutErrors(t *testing.T) {
	h, engine := newTestServer(t)
	disabled := h.Organizer(t, false)
	event := h.Event(t, disabled.ID, 1000, 48*time.Hour)
	player := h.User(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{name: "payments disabled", body: map[string]any{"event_id": event.ID.String()}, status: http.StatusBadRequest, code: "organizer_payments_disabled"},
		{name: "unknown event", body: map[string]any{"event_id": h.Node.Generate().String()}, status: http.StatusNotFound, code: "event_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, engine, http.MethodPost, "/api/payments/checkout", player.ID, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Error.Code)
		})
	}

	rec := doJSON(t, engine, http.MethodPost, "/api/payments/checkout", player.ID, map[string]any{"event_id": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[errorResponse](t, rec).Error.Type)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, engine := newTestServer(t)
	req := webhookRequest(t, h, "evt_bad", "cs_1")
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinAndLeave(t *testing.T) {
	h, engine := newTestServer(t)
	organizer := h.Organizer(t, true)
	free := h.Event(t, organizer.ID, 0, 48*time.Hour)
	paid := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/events/"+free.ID.String()+"/join", player.ID, map[string]any{"positions": []string{"DEF"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "added", decode[map[string]any](t, rec)["outcome"])

	rec = doJSON(t, engine, http.MethodPost, "/api/events/"+paid.ID.String()+"/join", player.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payment_required", decode[errorResponse](t, rec).Error.Code)

	sessionID := h.PaidSession(t, paid.ID, player.ID)
	rec = doJSON(t, engine, http.MethodPost, "/api/payments/verify", player.ID, map[string]any{"session_id": sessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, http.MethodPost, "/api/events/"+paid.ID.String()+"/leave", player.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	left := decode[map[string]any](t, rec)
	assert.Equal(t, true, left["left"])
	assert.Equal(t, true, left["refunded"])
	assert.Equal(t, float64(891), left["refund_amount"])

	rec = doJSON(t, engine, http.MethodPost, "/api/events/"+paid.ID.String()+"/leave", player.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not_attending", decode[errorResponse](t, rec).Error.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/payments/verify", player.ID, map[string]any{"session_id": sessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replayed := decode[verifyResponse](t, rec)
	assert.True(t, replayed.Refunded)
	assert.False(t, replayed.PaymentRecorded)
	assert.False(t, h.Reload(t, paid.ID).HasAttendee(player.ID))
	assert.Equal(t, int64(0), h.CountPayments(t, player.ID, paid.ID, transactiondomain.StatusSucceeded))
	assert.Equal(t, int64(1), h.CountPayments(t, player.ID, paid.ID, transactiondomain.StatusRefunded))

	rec = doJSON(t, engine, http.MethodGet, "/api/events/"+free.ID.String(), player.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: paymentdomain.ErrGateway, status: http.StatusInternalServerError},
		{err: paymentdomain.ErrSessionNotFound, status: http.StatusNotFound},
		{err: paymentdomain.ErrPastDeadline, status: http.StatusBadRequest},
		{err: ErrUnauthorized, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		status, _ := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestRateLimitedCheckout(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	limiter, err := ratelimit.NewMemoryBucket(0.5, 1, func() time.Time { return now })
	require.NoError(t, err)
	h, engine := newLimitedTestServer(t, limiter)
	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	other := h.User(t)
	body := map[string]any{"event_id": event.ID.String()}

	rec := doJSON(t, engine, http.MethodPost, "/api/payments/checkout", player.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = doJSON(t, engine, http.MethodPost, "/api/payments/checkout", player.ID, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[errorResponse](t, rec).Error.Type)

	rec = doJSON(t, engine, http.MethodPost, "/api/payments/checkout", other.ID, body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, http.MethodGet, "/api/events/"+event.ID.String(), player.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
