package plan

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventType distinguishes the kinds of entries the backend appends to a
// case's history.
type EventType string

const (
	EventAgentPlan    EventType = "agent_plan"
	EventUserInput    EventType = "user_input"
	EventAction       EventType = "action"
	EventStatusChange EventType = "status_change"
)

// Event is one append-only entry in a case's history. The console never
// deletes or rewrites events; it only accumulates newly fetched ones.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Normalize trims identifier fields in place.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	e.ID = strings.TrimSpace(e.ID)
	e.Type = EventType(strings.TrimSpace(string(e.Type)))
}

// Validate enforces the minimal shape an event must have to enter the
// timeline.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.Type == "" {
		return errors.New("event type is required")
	}
	if e.Timestamp.IsZero() {
		return errors.New("event timestamp is required")
	}
	return nil
}

// ActionID extracts the acting action identifier from an action event's
// payload, if one is present.
func (e Event) ActionID() string {
	if e.Type != EventAction || len(e.Payload) == 0 {
		return ""
	}
	var body struct {
		ActionID string `json:"actionId"`
	}
	if err := json.Unmarshal(e.Payload, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.ActionID)
}
