package scheduler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/huddle/internal/lock"
	"github.com/smallbiznis/huddle/internal/payment/adapters/memory"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"github.com/smallbiznis/huddle/internal/payment/paymenttest"
	paymentrepo "github.com/smallbiznis/huddle/internal/payment/repository"
	"github.com/smallbiznis/huddle/internal/payment/webhook"
	"github.com/smallbiznis/huddle/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	h        *paymenttest.Harness
	webhooks paymentdomain.WebhookService
	sched    *scheduler.Scheduler
}

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	h := paymenttest.New(t)
	webhooks := webhook.NewService(webhook.Params{
		DB:        h.DB,
		Log:       h.Log,
		GenID:     h.Node,
		Clock:     h.Clock,
		Gateway:   h.Gateway,
		Repo:      paymentrepo.Provide(),
		Completer: h.Service,
	})
	sched, err := scheduler.New(scheduler.Params{
		DB:          h.DB,
		Log:         h.Log,
		GenID:       h.Node,
		Clock:       h.Clock,
		Config:      scheduler.Config{Enabled: true, ReplayAfter: 10 * time.Minute},
		WebhookSvc:  webhooks,
		WebhookRepo: paymentrepo.Provide(),
		PaymentSvc:  h.Service,
		Users:       h.Users,
		Locker:      locker,
	})
	require.NoError(t, err)
	return &fixture{h: h, webhooks: webhooks, sched: sched}
}

func completedPayload(t *testing.T, eventID, sessionID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    paymentdomain.EventCheckoutSessionCompleted,
		"created": paymenttest.Start.Unix(),
		"data":    map[string]any{"object": map[string]any{"id": sessionID, "object": "checkout.session"}},
	})
	require.NoError(t, err)
	return payload
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := scheduler.New(scheduler.Params{})
	assert.ErrorIs(t, err, scheduler.ErrInvalidConfig)
}

func TestRunOnceReplaysStuckWebhook(t *testing.T) {
	f := newFixture(t, lock.NewMemoryLocker())
	h := f.h
	ctx := context.Background()

	organizer := h.Organizer(t, true)
	event := h.Event(t, organizer.ID, 1000, 48*time.Hour)
	player := h.User(t)
	sessionID := h.PaidSession(t, event.ID, player.ID)

	payload := completedPayload(t, "evt_stuck", sessionID)
	h.Memory.FailNext(memory.OpRetrieveSession, fmt.Errorf("%w: timeout", paymentdomain.ErrGateway))
	_, err := f.webhooks.IngestWebhook(ctx, "stripe", payload, h.Memory.SignWebhook(payload, time.Now()))
	require.Error(t, err)

	// Too recent to replay.
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.False(t, h.Reload(t, event.ID).HasAttendee(player.ID))

	h.Clock.Advance(11 * time.Minute)
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.True(t, h.Reload(t, event.ID).HasAttendee(player.ID))

	pending, err := paymentrepo.Provide().ListPending(ctx, h.DB, h.Clock.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceEnablesOnboardedOrganizer(t *testing.T) {
	f := newFixture(t, nil)
	h := f.h
	ctx := context.Background()

	organizer := h.Organizer(t, false)
	require.NoError(t, f.sched.RunOnce(ctx))

	user, err := h.Users.FindByID(ctx, h.DB, organizer.ID)
	require.NoError(t, err)
	assert.False(t, user.StripeOnboardingComplete)

	h.Memory.EnableAccount(*organizer.StripeAccountID)
	require.NoError(t, f.sched.RunOnce(ctx))

	user, err = h.Users.FindByID(ctx, h.DB, organizer.ID)
	require.NoError(t, err)
	assert.True(t, user.StripeOnboardingComplete)

	pending, err := h.Users.ListPendingOnboarding(ctx, h.DB, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceSkipsJobsHeldElsewhere(t *testing.T) {
	locker := lock.NewMemoryLocker()
	f := newFixture(t, locker)
	h := f.h
	ctx := context.Background()

	organizer := h.Organizer(t, false)
	h.Memory.EnableAccount(*organizer.StripeAccountID)

	_, ok, err := locker.TryLock(ctx, "scheduler:onboarding_refresh", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.sched.RunOnce(ctx))
	user, err := h.Users.FindByID(ctx, h.DB, organizer.ID)
	require.NoError(t, err)
	assert.False(t, user.StripeOnboardingComplete)
}
