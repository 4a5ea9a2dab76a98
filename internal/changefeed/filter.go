package changefeed

import (
	"encoding/json"
	"fmt"
)

// Filter scopes a subscription to rows where Column equals Value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

// String renders the filter as "column=eq.value".
func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches reports whether the row satisfies the filter.
func (f Filter) Matches(row json.RawMessage) bool {
	if f.IsZero() {
		return true
	}
	if !hasObject(row) {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	v, ok := fields[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// MatchesEvent applies the filter to the new row, falling back to the old
// row so that deletes still reach filtered subscribers.
func (f Filter) MatchesEvent(e Event) bool {
	if f.IsZero() {
		return true
	}
	return f.Matches(e.Record) || f.Matches(e.OldRecord)
}
