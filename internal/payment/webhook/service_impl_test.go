package webhook_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/huddle/internal/payment/adapters/memory"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/smallbiznis/huddle/internal/payment/paymenttest"
	paymentrepo "github.com/smallbiznis/huddle/internal/payment/repository"
	"github.com/smallbiznis/huddle/internal/payment/webhook"
	"github.com/smallbiznis/huddle/internal/testutil"
	transactiondomain "github.com/smallbiznis/huddle/internal/transaction/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookService(h *paymenttest.Harness) paymentdomain.WebhookService {
	return webhook.NewService(webhook.Params{
		DB:        h.DB,
		Log:       h.Log,
		GenID:     h.Node,
		Clock:     h.Clock,
		Gateway:   h.Gateway,
		Repo:      paymentrepo.Provide(),
		Completer: h.Service,
	})
}

func eventPayload(t *testing.T, eventID, eventType, objectID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": paymenttest.Start.Unix(),
		"data":    map[string]any{"object": map[string]any{"id": objectID, "object": "checkout.session"}},
	})
	require.NoError(t, err)
	return payload
}

func journalOutcome(t *testing.T, h *paymenttest.Harness, providerEventID string) string {
	t.Helper()
	var outcome string
	require.NoError(t, h.DB.Raw(
		`SELECT COALESCE(outcome, '') FROM payment_webhook_events WHERE provider_event_id = ?`, providerEventID,
	).Scan(&outcome).Error)
	return outcome
}

func TestIngestCompletedCheckout(t *testing.T) {
	h := paymenttest.New(t)
	svc := newWebhookService(h)
	ctx := context.Background()

	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	sessionID := h.PaidSession(t, event.ID, player.ID)

	payload := eventPayload(t, "evt_1", paymentdomain.EventCheckoutSessionCompleted, sessionID)
	signature := h.Memory.SignWebhook(payload, time.Now())

	outcome, err := svc.IngestWebhook(ctx, "stripe", payload, signature)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookProcessed, outcome)
	assert.True(t, h.Reload(t, event.ID).HasAttendee(player.ID))
	assert.Equal(t, "processed", journalOutcome(t, h, "evt_1"))

	outcome, err = svc.IngestWebhook(ctx, "stripe", payload, signature)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookDuplicate, outcome)

	async := eventPayload(t, "evt_2", paymentdomain.EventCheckoutSessionAsyncPaymentSucceeded, sessionID)
	outcome, err = svc.IngestWebhook(ctx, "stripe", async, h.Memory.SignWebhook(async, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookProcessed, outcome)

	_, err = h.Service.CompleteSession(ctx, sessionID)
	require.NoError(t, err)

	assert.Equal(t, 1, paymenttest.CountAttendee(h.Reload(t, event.ID), player.ID))
	assert.Equal(t, int64(1), h.CountPayments(t, player.ID, event.ID, transactiondomain.StatusSucceeded))
	assert.Equal(t, int64(2), testutil.Count(t, h.DB, "payment_webhook_events", ""))
}

func TestIngestRejectsBadSignature(t *testing.T) {
	h := paymenttest.New(t)
	svc := newWebhookService(h)
	payload := eventPayload(t, "evt_bad", paymentdomain.EventCheckoutSessionCompleted, "cs_1")

	outcome, err := svc.IngestWebhook(context.Background(), "stripe", payload, "t=1,v1=00")
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	assert.Equal(t, paymentdomain.WebhookRejected, outcome)
	assert.Equal(t, int64(0), testutil.Count(t, h.DB, "payment_webhook_events", ""))
}

func TestIngestAcknowledgesPermanentFailures(t *testing.T) {
	h := paymenttest.New(t)
	svc := newWebhookService(h)
	ctx := context.Background()

	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	unpaid, err := h.Service.CreateCheckout(ctx, paymentdomain.CreateCheckoutRequest{EventID: event.ID, UserID: player.ID})
	require.NoError(t, err)

	tests := []struct {
		name      string
		sessionID string
		outcome   string
	}{
		{name: "payment incomplete", sessionID: unpaid.SessionID, outcome: string(paymentdomain.KindPaymentIncomplete)},
		{name: "unknown session", sessionID: "cs_missing", outcome: string(paymentdomain.KindNotFound)},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eventID := fmt.Sprintf("evt_perm_%d", i)
			payload := eventPayload(t, eventID, paymentdomain.EventCheckoutSessionCompleted, tt.sessionID)

			outcome, err := svc.IngestWebhook(ctx, "stripe", payload, h.Memory.SignWebhook(payload, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, paymentdomain.WebhookProcessed, outcome)
			assert.Equal(t, tt.outcome, journalOutcome(t, h, eventID))
		})
	}
	assert.False(t, h.Reload(t, event.ID).HasAttendee(player.ID))
}

func TestIngestReturnsRetryableFailures(t *testing.T) {
	h := paymenttest.New(t)
	svc := newWebhookService(h)
	ctx := context.Background()

	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	sessionID := h.PaidSession(t, event.ID, player.ID)

	payload := eventPayload(t, "evt_retry", paymentdomain.EventCheckoutSessionCompleted, sessionID)
	signature := h.Memory.SignWebhook(payload, time.Now())

	h.Memory.FailNext(memory.OpRetrieveSession, fmt.Errorf("%w: connection reset", paymentdomain.ErrGateway))
	_, err := svc.IngestWebhook(ctx, "stripe", payload, signature)
	require.ErrorIs(t, err, paymentdomain.ErrGateway)
	assert.Equal(t, "", journalOutcome(t, h, "evt_retry"))

	outcome, err := svc.IngestWebhook(ctx, "stripe", payload, signature)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookProcessed, outcome)
	assert.True(t, h.Reload(t, event.ID).HasAttendee(player.ID))
	assert.Equal(t, int64(1), testutil.Count(t, h.DB, "payment_webhook_events", ""))
}

func TestIngestIgnoresOtherEvents(t *testing.T) {
	h := paymenttest.New(t)
	svc := newWebhookService(h)
	payload := eventPayload(t, "evt_acct", paymentdomain.EventAccountUpdated, "acct_1")

	outcome, err := svc.IngestWebhook(context.Background(), "stripe", payload, h.Memory.SignWebhook(payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookIgnored, outcome)
	assert.Equal(t, "ignored", journalOutcome(t, h, "evt_acct"))
	assert.Equal(t, 0, h.Memory.Calls(memory.OpRetrieveSession))
}

func TestReplayPendingEvent(t *testing.T) {
	h := paymenttest.New(t)
	svc := newWebhookService(h)
	ctx := context.Background()

	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	sessionID := h.PaidSession(t, event.ID, player.ID)

	payload := eventPayload(t, "evt_replay", paymentdomain.EventCheckoutSessionCompleted, sessionID)
	h.Memory.FailNext(memory.OpRetrieveSession, fmt.Errorf("%w: timeout", paymentdomain.ErrGateway))
	_, err := svc.IngestWebhook(ctx, "stripe", payload, h.Memory.SignWebhook(payload, time.Now()))
	require.Error(t, err)

	pending, err := paymentrepo.Provide().ListPending(ctx, h.DB, h.Clock.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, sessionID, *pending[0].ObjectID)

	outcome, err := svc.Replay(ctx, pending[0])
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookProcessed, outcome)
	assert.True(t, h.Reload(t, event.ID).HasAttendee(player.ID))

	pending, err = paymentrepo.Provide().ListPending(ctx, h.DB, h.Clock.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
