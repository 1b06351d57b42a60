package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/huddle/internal/event/domain"
	"github.com/smallbiznis/huddle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAttendeesCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := Provide()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	event := &domain.Event{
		ID:          node.Generate(),
		OrganizerID: node.Generate(),
		Title:       "Sunday five-a-side",
		StartsAt:    now.Add(72 * time.Hour),
		IsPaid:      true,
		Price:       1000,
		Currency:    "USD",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Insert(ctx, db, event))

	stored, err := repo.FindByID(ctx, db, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, stored.Attendees)

	userID := node.Generate()
	roster, _ := domain.MergeAttendee(stored.Attendees, userID, []string{"GK"}, now)

	ok, err := repo.UpdateAttendees(ctx, db, event.ID, stored.Version, roster, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateAttendees(ctx, db, event.ID, stored.Version, nil, now)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not overwrite")

	reloaded, err := repo.FindByID(ctx, db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.Version)
	require.Len(t, reloaded.Attendees, 1)
	assert.Equal(t, userID, reloaded.Attendees[0].UserID)
	assert.Equal(t, []string{"GK"}, reloaded.Attendees[0].Positions)
	assert.True(t, reloaded.StartsAt.Equal(event.StartsAt))
}

func TestFindByIDMissing(t *testing.T) {
	db := testutil.OpenDB(t)
	found, err := Provide().FindByID(context.Background(), db, testutil.Node(t).Generate())
	require.NoError(t, err)
	assert.Nil(t, found)
}
