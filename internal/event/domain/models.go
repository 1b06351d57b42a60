package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AttendeeStatus string

const (
	AttendeeStatusGoing      AttendeeStatus = "going"
	AttendeeStatusNotGoing   AttendeeStatus = "not_going"
	AttendeeStatusMaybe      AttendeeStatus = "maybe"
	AttendeeStatusWaitlisted AttendeeStatus = "waitlisted"
)

// Attendee is one entry in an event's roster.
type Attendee struct {
	UserID    snowflake.ID   `json:"user_id"`
	Status    AttendeeStatus `json:"status"`
	Positions []string       `json:"positions"`
	JoinedAt  time.Time      `json:"joined_at"`
}

// Event is a scheduled game. Attendees is stored as a JSON document and
// guarded by Version for compare-and-swap updates.
type Event struct {
	ID          snowflake.ID `json:"id"`
	OrganizerID snowflake.ID `json:"organizer_id"`
	Title       string       `json:"title"`
	StartsAt    time.Time    `json:"starts_at"`
	IsPaid      bool         `json:"is_paid"`
	Price       int64        `json:"price"`
	Currency    string       `json:"currency"`
	Attendees   []Attendee   `json:"attendees"`
	Version     int64        `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RequiresPayment reports whether joining goes through checkout.
func (e Event) RequiresPayment() bool {
	return e.IsPaid && e.Price > 0
}

// Attendee returns the roster entry for userID, if any.
func (e Event) Attendee(userID snowflake.ID) (Attendee, bool) {
	for _, a := range e.Attendees {
		if a.UserID == userID {
			return a, true
		}
	}
	return Attendee{}, false
}

func (e Event) HasAttendee(userID snowflake.ID) bool {
	_, ok := e.Attendee(userID)
	return ok
}
