// Package changefeed keeps the entity stores live by applying row-level
// change events pushed by the server.
package changefeed

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownTable is returned for events on a table with no store.
	ErrUnknownTable = errors.New("unknown table")
	// ErrMissingID is returned for events whose record carries no id.
	ErrMissingID = errors.New("event record has no id")
)

// Kind is the row operation that produced an event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ParseKind normalises an operation name as sent by transports.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindInsert, KindUpdate, KindDelete:
		return Kind(s), nil
	case "INSERT":
		return KindInsert, nil
	case "UPDATE":
		return KindUpdate, nil
	case "DELETE":
		return KindDelete, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Event is one row change. Record holds the new row for inserts and updates;
// OldRecord holds the previous row for updates and deletes when available.
type Event struct {
	Table     string          `json:"table"`
	Kind      Kind            `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// Row returns the record the event is about: the new row, or the old row for
// deletes.
func (e Event) Row() json.RawMessage {
	if hasObject(e.Record) {
		return e.Record
	}
	return e.OldRecord
}

// ID returns the primary key of the changed row.
func (e Event) ID() (string, error) {
	row := e.Row()
	if !hasObject(row) {
		return "", ErrMissingID
	}
	var key struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(row, &key); err != nil {
		return "", fmt.Errorf("decoding %s event id: %w", e.Table, err)
	}
	if key.ID == "" {
		return "", ErrMissingID
	}
	return key.ID, nil
}

func hasObject(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
