package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/event/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type eventRow struct {
	ID          snowflake.ID
	OrganizerID snowflake.ID
	Title       string
	StartsAt    time.Time
	IsPaid      bool
	Price       int64
	Currency    string
	Attendees   datatypes.JSON
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	attendees, err := encodeAttendees(event.Attendees)
	if err != nil {
		return err
	}
	if event.Version == 0 {
		event.Version = 1
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (
			id, organizer_id, title, starts_at, is_paid, price, currency,
			attendees, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.OrganizerID,
		event.Title,
		event.StartsAt.UTC(),
		event.IsPaid,
		event.Price,
		event.Currency,
		attendees,
		event.Version,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Event, error) {
	var row eventRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, organizer_id, title, starts_at, is_paid, price, currency,
			attendees, version, created_at, updated_at
		 FROM events
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}

	attendees := []domain.Attendee{}
	if len(row.Attendees) > 0 {
		if err := json.Unmarshal(row.Attendees, &attendees); err != nil {
			return nil, err
		}
	}

	return &domain.Event{
		ID:          row.ID,
		OrganizerID: row.OrganizerID,
		Title:       row.Title,
		StartsAt:    row.StartsAt.UTC(),
		IsPaid:      row.IsPaid,
		Price:       row.Price,
		Currency:    row.Currency,
		Attendees:   attendees,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (r *repo) UpdateAttendees(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, attendees []domain.Attendee, now time.Time) (bool, error) {
	encoded, err := encodeAttendees(attendees)
	if err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE events
		 SET attendees = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		encoded,
		now,
		id,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func encodeAttendees(attendees []domain.Attendee) (datatypes.JSON, error) {
	if attendees == nil {
		attendees = []domain.Attendee{}
	}
	raw, err := json.Marshal(attendees)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
