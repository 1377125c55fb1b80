package plan

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPlanValidate(t *testing.T) {
	base := func() Plan {
		return Plan{
			CaseID:     "case-41",
			Status:     StatusNeedsInput,
			Confidence: 0.82,
			Summary:    "Awaiting ship-to state",
			RecommendedActions: []Action{
				{ID: "approve", Label: "Approve", Intent: "approve"},
			},
			Questions: []Question{
				{ID: "q1", Prompt: "Ship-to state?"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Plan) {}},
		{name: "missing-case-id", mutate: func(p *Plan) { p.CaseID = "" }, wantErr: true},
		{name: "unknown-status", mutate: func(p *Plan) { p.Status = "escalated" }, wantErr: true},
		{name: "confidence-too-high", mutate: func(p *Plan) { p.Confidence = 1.2 }, wantErr: true},
		{name: "confidence-negative", mutate: func(p *Plan) { p.Confidence = -0.1 }, wantErr: true},
		{name: "action-missing-id", mutate: func(p *Plan) { p.RecommendedActions[0].ID = "" }, wantErr: true},
		{name: "question-missing-id", mutate: func(p *Plan) { p.Questions[0].ID = "" }, wantErr: true},
		{name: "no-actions-is-fine", mutate: func(p *Plan) { p.RecommendedActions = nil }},
		{name: "confidence-bounds-inclusive", mutate: func(p *Plan) { p.Confidence = 1 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := base()
			test.mutate(&p)
			p.Normalize()
			err := p.Validate()
			if (err != nil) != test.wantErr {
				t.Fatalf("Validate() = %v, wantErr=%v", err, test.wantErr)
			}
		})
	}
}

func TestPlanCloneDoesNotAliasSlices(t *testing.T) {
	original := Plan{
		CaseID:             "case-7",
		Status:             StatusDraft,
		RecommendedActions: []Action{{ID: "approve"}},
		Questions:          []Question{{ID: "q1"}},
		Trace:              Trace{ModelNotes: []string{"note"}},
	}
	dup := original.Clone()
	dup.RecommendedActions[0].ID = "reject"
	dup.Questions[0].ID = "q2"
	dup.Trace.ModelNotes[0] = "changed"
	if original.RecommendedActions[0].ID != "approve" {
		t.Fatalf("clone aliases recommended actions")
	}
	if original.Questions[0].ID != "q1" {
		t.Fatalf("clone aliases questions")
	}
	if original.Trace.ModelNotes[0] != "note" {
		t.Fatalf("clone aliases trace notes")
	}
}

func TestStatusFriendlyName(t *testing.T) {
	if got := StatusQueuedReview.FriendlyName(); got != "Queued Review" {
		t.Fatalf("FriendlyName() = %q", got)
	}
	if got := Status("").FriendlyName(); got != "Unknown" {
		t.Fatalf("FriendlyName(empty) = %q", got)
	}
}

func TestEventActionID(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{"actionId": "send_to_review"})
	evt := Event{ID: "e2", Type: EventAction, Timestamp: time.Now(), Payload: payload}
	if got := evt.ActionID(); got != "send_to_review" {
		t.Fatalf("ActionID() = %q", got)
	}
	other := Event{ID: "e1", Type: EventUserInput, Timestamp: time.Now(), Payload: payload}
	if got := other.ActionID(); got != "" {
		t.Fatalf("ActionID() on non-action event = %q", got)
	}
}

func TestEventValidate(t *testing.T) {
	evt := Event{ID: "e1", Type: EventUserInput, Timestamp: time.Now()}
	if err := evt.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	missing := Event{Type: EventUserInput, Timestamp: time.Now()}
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
