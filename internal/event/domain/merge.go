package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type MergeOutcome string

const (
	MergeAdded          MergeOutcome = "added"
	MergeAlreadyPresent MergeOutcome = "already_present"
)

// MergeAttendee adds userID to attendees with status going. If the user is
// already on the roster in any status the input is returned unchanged. The
// input slice is never modified.
func MergeAttendee(attendees []Attendee, userID snowflake.ID, positions []string, now time.Time) ([]Attendee, MergeOutcome) {
	for _, a := range attendees {
		if a.UserID == userID {
			return attendees, MergeAlreadyPresent
		}
	}

	if positions == nil {
		positions = []string{}
	}
	merged := make([]Attendee, 0, len(attendees)+1)
	merged = append(merged, attendees...)
	merged = append(merged, Attendee{
		UserID:    userID,
		Status:    AttendeeStatusGoing,
		Positions: append([]string(nil), positions...),
		JoinedAt:  now.UTC(),
	})
	return merged, MergeAdded
}

// RemoveAttendee drops userID from attendees and reports whether it was
// present. The input slice is never modified.
func RemoveAttendee(attendees []Attendee, userID snowflake.ID) ([]Attendee, bool) {
	out := make([]Attendee, 0, len(attendees))
	removed := false
	for _, a := range attendees {
		if a.UserID == userID {
			removed = true
			continue
		}
		out = append(out, a)
	}
	if !removed {
		return attendees, false
	}
	return out, true
}
