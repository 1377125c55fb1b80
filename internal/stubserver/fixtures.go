package stubserver

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mhollis/caseline/internal/plan"
)

// stateSchema is the input schema used by fixture questions asking for a
// ship-to state.
var stateSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"state": {"type": "string", "title": "Ship-to state", "description": "Two-letter state code"}
	}
}`)

// approveSchema collects an optional note and an expedite toggle before an
// approval is committed.
var approveSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"note": {"type": "string", "title": "Reviewer note"},
		"expedite": {"type": "boolean", "title": "Expedite fulfilment"}
	}
}`)

// seedCase builds the canned starting point for a demo case.
func seedCase(caseID string, now time.Time) *caseState {
	p := plan.Plan{
		CaseID:     caseID,
		Status:     plan.StatusNeedsInput,
		Confidence: 0.74,
		Summary:    "License check passed; shipment destination still unverified.",
		RecommendedActions: []plan.Action{
			{ID: "approve", Label: "Approve", Intent: "approve", RequiresConfirmation: true, InputSchema: approveSchema},
			{ID: "reject", Label: "Reject", Intent: "reject", RequiresConfirmation: true},
			{ID: "send_to_review", Label: "Send to review", Intent: "route_review"},
			{ID: "request_info", Label: "Request more info", Intent: "request_info"},
		},
		Questions: []plan.Question{
			{ID: "q-ship-state", Prompt: "Which state does this order ship to?", InputSchema: stateSchema},
		},
		Trace: plan.Trace{
			TraceID:   uuid.NewString(),
			Timestamp: now,
			RulesEvaluated: []plan.RuleResult{
				{RuleID: "license-active", Outcome: "pass", Evidence: []string{"license on file, expires 2027-01"}},
				{RuleID: "destination-allowed", Outcome: "indeterminate", Evidence: []string{"ship-to state missing"}},
			},
			ModelNotes: []string{"destination rule cannot conclude without a state"},
		},
	}
	return &caseState{
		plan: p,
		events: []plan.Event{
			{
				ID:        uuid.NewString(),
				Type:      plan.EventAgentPlan,
				Timestamp: now,
				Payload:   mustJSON(map[string]any{"summary": p.Summary, "status": p.Status}),
			},
		},
	}
}

// advance mutates a case in response to an executed action, the way the
// real backend would. Decisions here are canned, not evaluated.
func (cs *caseState) advance(actionID string, input map[string]any, now time.Time) {
	next := cs.plan.Clone()
	switch actionID {
	case "approve":
		next.Status = plan.StatusApproved
		next.Summary = "Approved by operator."
		next.RecommendedActions = nil
		next.Questions = nil
		next.Confidence = 0.97
	case "reject":
		next.Status = plan.StatusBlocked
		next.Summary = "Rejected by operator."
		next.RecommendedActions = nil
		next.Questions = nil
		next.Confidence = 0.97
	case "send_to_review":
		next.Status = plan.StatusQueuedReview
		next.Summary = "Queued for compliance review."
	case "request_info":
		next.Status = plan.StatusNeedsInput
		next.Summary = "Waiting on requested information."
	default:
		next.Status = plan.StatusEvaluating
	}
	next.Trace = plan.Trace{
		TraceID:    uuid.NewString(),
		Timestamp:  now,
		ModelNotes: []string{"canned transition for action " + actionID},
	}
	cs.plan = next
	cs.appendEvent(plan.EventAction, now, map[string]any{"actionId": actionID, "input": input})
	cs.appendEvent(plan.EventStatusChange, now.Add(time.Millisecond), map[string]any{"status": next.Status})
}

// answer records a question answer and moves the case to evaluating once no
// open questions remain.
func (cs *caseState) answer(questionID string, input map[string]any, now time.Time) {
	next := cs.plan.Clone()
	remaining := next.Questions[:0]
	for _, question := range next.Questions {
		if question.ID != questionID {
			remaining = append(remaining, question)
		}
	}
	next.Questions = remaining
	if len(next.Questions) == 0 && next.Status == plan.StatusNeedsInput {
		next.Status = plan.StatusEvaluating
		next.Summary = "All requested input received; re-evaluating."
	}
	next.Trace = plan.Trace{
		TraceID:    uuid.NewString(),
		Timestamp:  now,
		ModelNotes: []string{"canned transition for answer " + questionID},
	}
	cs.plan = next
	cs.appendEvent(plan.EventUserInput, now, map[string]any{"questionId": questionID, "input": input})
}

func (cs *caseState) appendEvent(kind plan.EventType, ts time.Time, payload map[string]any) {
	cs.events = append(cs.events, plan.Event{
		ID:        uuid.NewString(),
		Type:      kind,
		Timestamp: ts,
		Payload:   mustJSON(payload),
	})
}

func mustJSON(value map[string]any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
