package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	// UpdateAttendees replaces the roster only if the stored version still
	// equals expectedVersion, bumping it on success.
	UpdateAttendees(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, attendees []Attendee, now time.Time) (bool, error)
}
