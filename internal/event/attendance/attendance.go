// Package attendance applies roster changes to an event with optimistic
// concurrency, retrying when another writer bumps the version first.
package attendance

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/event/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMaxAttempts = 5

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Roster struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	clock       clock.Clock
	maxAttempts int
}

func New(p Params) *Roster {
	return &Roster{
		db:          p.DB,
		log:         p.Log.Named("event.attendance"),
		repo:        p.Repo,
		clock:       p.Clock,
		maxAttempts: defaultMaxAttempts,
	}
}

// Load returns the event or domain.ErrNotFound.
func (r *Roster) Load(ctx context.Context, eventID snowflake.ID) (*domain.Event, error) {
	event, err := r.repo.FindByID(ctx, r.db, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

// Add merges userID into the roster. When the user is already present the
// stored event is returned untouched with MergeAlreadyPresent.
func (r *Roster) Add(ctx context.Context, eventID, userID snowflake.ID, positions []string) (*domain.Event, domain.MergeOutcome, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		event, err := r.Load(ctx, eventID)
		if err != nil {
			return nil, "", err
		}

		now := r.clock.Now()
		merged, outcome := domain.MergeAttendee(event.Attendees, userID, positions, now)
		if outcome == domain.MergeAlreadyPresent {
			return event, outcome, nil
		}

		ok, err := r.repo.UpdateAttendees(ctx, r.db, eventID, event.Version, merged, now)
		if err != nil {
			return nil, "", err
		}
		if ok {
			event.Attendees = merged
			event.Version++
			event.UpdatedAt = now
			return event, outcome, nil
		}
		r.log.Debug("roster version conflict, retrying",
			zap.String("event_id", eventID.String()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, "", domain.ErrConcurrentUpdate
}

// Remove drops userID from the roster and reports whether it was present.
func (r *Roster) Remove(ctx context.Context, eventID, userID snowflake.ID) (*domain.Event, bool, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		event, err := r.Load(ctx, eventID)
		if err != nil {
			return nil, false, err
		}

		remaining, removed := domain.RemoveAttendee(event.Attendees, userID)
		if !removed {
			return event, false, nil
		}

		now := r.clock.Now()
		ok, err := r.repo.UpdateAttendees(ctx, r.db, eventID, event.Version, remaining, now)
		if err != nil {
			return nil, false, err
		}
		if ok {
			event.Attendees = remaining
			event.Version++
			event.UpdatedAt = now
			return event, true, nil
		}
		r.log.Debug("roster version conflict, retrying",
			zap.String("event_id", eventID.String()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, false, domain.ErrConcurrentUpdate
}
