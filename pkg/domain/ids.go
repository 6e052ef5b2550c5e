package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed IDs keep record and actor identifiers from being mixed up at call
// sites. They are thin wrappers over uuid.UUID and marshal as their string
// form.
type (
	RecordID uuid.UUID
	EventID  uuid.UUID
)

// NewRecordID generates a fresh random record ID.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// NewEventID generates a fresh random audit event ID.
func NewEventID() EventID {
	return EventID(uuid.New())
}

// ParseRecordID validates and returns a RecordID from its string form.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, fmt.Errorf("invalid record id: %w", err)
	}
	return RecordID(u), nil
}

func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RecordID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id EventID) String() string { return uuid.UUID(id).String() }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EventID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	*id = EventID(u)
	return nil
}
