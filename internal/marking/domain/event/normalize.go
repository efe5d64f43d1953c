package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeForAppend validates and normalizes an event before storage assigns
// identity and sequencing.
func NormalizeForAppend(evt Event) (Event, error) {
	evt.AggregateID = strings.TrimSpace(evt.AggregateID)
	if evt.AggregateID == "" {
		return Event{}, fmt.Errorf("aggregate id is required")
	}
	if strings.TrimSpace(evt.ID) != "" {
		return Event{}, fmt.Errorf("event id must be assigned by storage")
	}
	if evt.Version != 0 {
		return Event{}, fmt.Errorf("event version must be assigned by storage")
	}

	evt.Type = Type(strings.TrimSpace(string(evt.Type)))
	if !evt.Type.IsValid() {
		return Event{}, fmt.Errorf("unknown event type %q", evt.Type)
	}

	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, fmt.Errorf("payload json must be valid JSON")
	}

	return evt, nil
}
