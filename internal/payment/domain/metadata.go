package domain

import (
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const CheckoutTypeEventJoin = "EVENT_JOIN"

const (
	metaType      = "type"
	metaUserID    = "user_id"
	metaEventID   = "event_id"
	metaPositions = "positions"
)

// CheckoutMetadata is attached to every checkout session so a completion can
// be traced back to the seat it paid for.
type CheckoutMetadata struct {
	Type      string
	UserID    snowflake.ID
	EventID   snowflake.ID
	Positions []string
}

func (m CheckoutMetadata) Encode() map[string]string {
	positions := m.Positions
	if positions == nil {
		positions = []string{}
	}
	raw, _ := json.Marshal(positions)
	kind := m.Type
	if kind == "" {
		kind = CheckoutTypeEventJoin
	}
	return map[string]string{
		metaType:      kind,
		metaUserID:    m.UserID.String(),
		metaEventID:   m.EventID.String(),
		metaPositions: string(raw),
	}
}

// DecodeCheckoutMetadata parses session metadata. Sessions created for
// anything other than an event join fail with ErrInvalidSessionType.
func DecodeCheckoutMetadata(meta map[string]string) (CheckoutMetadata, error) {
	if strings.TrimSpace(meta[metaType]) != CheckoutTypeEventJoin {
		return CheckoutMetadata{}, ErrInvalidSessionType
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(meta[metaUserID]))
	if err != nil || userID == 0 {
		return CheckoutMetadata{}, ErrInvalidMetadata
	}
	eventID, err := snowflake.ParseString(strings.TrimSpace(meta[metaEventID]))
	if err != nil || eventID == 0 {
		return CheckoutMetadata{}, ErrInvalidMetadata
	}

	positions := []string{}
	if raw := strings.TrimSpace(meta[metaPositions]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &positions); err != nil {
			return CheckoutMetadata{}, ErrInvalidMetadata
		}
	}

	return CheckoutMetadata{
		Type:      CheckoutTypeEventJoin,
		UserID:    userID,
		EventID:   eventID,
		Positions: positions,
	}, nil
}
