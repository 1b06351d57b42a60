// Package seed inserts a fixed demo dataset for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/clock"
	"github.com/smallbiznis/huddle/internal/config"
	eventdomain "github.com/smallbiznis/huddle/internal/event/domain"
	userdomain "github.com/smallbiznis/huddle/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Fixed ids keep the seed idempotent across restarts.
const (
	DemoOrganizerID snowflake.ID = 1000001
	DemoPlayerID    snowflake.ID = 1000002
	DemoFreeEventID snowflake.ID = 2000001
	DemoPaidEventID snowflake.ID = 2000002
)

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, p Params) {
		if !cfg.SeedDemoData {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return EnsureDemoData(ctx, p)
			},
		})
	}),
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Users  userdomain.Repository
	Events eventdomain.Repository
}

// EnsureDemoData seeds an organizer, a player, one free and one paid event.
// Rows that already exist are left untouched.
func EnsureDemoData(ctx context.Context, p Params) error {
	if p.DB == nil || p.Users == nil || p.Events == nil || p.Clock == nil {
		return errors.New("seed dependencies are required")
	}
	now := p.Clock.Now().UTC()
	startsAt := now.Add(72 * time.Hour).Truncate(time.Hour)

	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := []*userdomain.User{
			{ID: DemoOrganizerID, Email: "organizer@huddle.local", Name: "Demo Organizer"},
			{ID: DemoPlayerID, Email: "player@huddle.local", Name: "Demo Player"},
		}
		for _, user := range users {
			existing, err := p.Users.FindByID(ctx, tx, user.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			user.CreatedAt = now
			user.UpdatedAt = now
			if err := p.Users.Insert(ctx, tx, user); err != nil {
				return err
			}
		}

		events := []*eventdomain.Event{
			{ID: DemoFreeEventID, Title: "Thursday night futsal", Currency: "USD"},
			{ID: DemoPaidEventID, Title: "Saturday 7v7", IsPaid: true, Price: 1000, Currency: "USD"},
		}
		for _, event := range events {
			existing, err := p.Events.FindByID(ctx, tx, event.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			event.OrganizerID = DemoOrganizerID
			event.StartsAt = startsAt
			event.CreatedAt = now
			event.UpdatedAt = now
			if err := p.Events.Insert(ctx, tx, event); err != nil {
				return err
			}
		}

		if p.Log != nil {
			p.Log.Info("demo data ready",
				zap.String("organizer_id", DemoOrganizerID.String()),
				zap.String("player_id", DemoPlayerID.String()),
				zap.String("paid_event_id", DemoPaidEventID.String()),
			)
		}
		return nil
	})
}
