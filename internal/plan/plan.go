package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle position of a case plan as reported by the backend.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusEvaluating   Status = "evaluating"
	StatusNeedsInput   Status = "needs_input"
	StatusQueuedReview Status = "queued_review"
	StatusApproved     Status = "approved"
	StatusBlocked      Status = "blocked"
	StatusCompleted    Status = "completed"
)

var knownStatuses = map[Status]struct{}{
	StatusDraft:        {},
	StatusEvaluating:   {},
	StatusNeedsInput:   {},
	StatusQueuedReview: {},
	StatusApproved:     {},
	StatusBlocked:      {},
	StatusCompleted:    {},
}

// Known reports whether the status is one the console understands.
func (s Status) Known() bool {
	_, ok := knownStatuses[s]
	return ok
}

// FriendlyName renders the status for display.
func (s Status) FriendlyName() string {
	value := strings.TrimSpace(string(s))
	if value == "" {
		return "Unknown"
	}
	words := strings.Fields(strings.ReplaceAll(value, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// Action is a server-defined operation that advances a case. It is a
// stateless descriptor; executing it is a network request, never a local
// mutation.
type Action struct {
	ID                   string          `json:"id"`
	Label                string          `json:"label"`
	Intent               string          `json:"intent"`
	RequiresConfirmation bool            `json:"requiresConfirmation"`
	InputSchema          json.RawMessage `json:"inputSchema,omitempty"`
}

// Question is a server-defined request for missing information. Questions
// are answered independently of actions and in any order; the server decides
// when enough input has arrived.
type Question struct {
	ID          string          `json:"id"`
	Prompt      string          `json:"prompt"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// RuleResult records one rule evaluation inside a trace.
type RuleResult struct {
	RuleID   string   `json:"ruleId"`
	Outcome  string   `json:"outcome"`
	Evidence []string `json:"evidence,omitempty"`
}

// Trace is the immutable audit record attached to a plan snapshot.
type Trace struct {
	TraceID        string       `json:"traceId"`
	Timestamp      time.Time    `json:"timestamp"`
	RulesEvaluated []RuleResult `json:"rulesEvaluated,omitempty"`
	ModelNotes     []string     `json:"modelNotes,omitempty"`
}

// Plan is the current recommendation snapshot for exactly one case. A plan
// is only ever replaced wholesale; nothing in this codebase merges fields
// from two different snapshots.
type Plan struct {
	CaseID             string     `json:"caseId"`
	Status             Status     `json:"status"`
	Confidence         float64    `json:"confidence"`
	Summary            string     `json:"summary"`
	RecommendedActions []Action   `json:"recommendedActions"`
	Questions          []Question `json:"questions"`
	Trace              Trace      `json:"trace"`
}

// Normalize trims identifier fields in place before validation.
func (p *Plan) Normalize() {
	if p == nil {
		return
	}
	p.CaseID = strings.TrimSpace(p.CaseID)
	p.Status = Status(strings.TrimSpace(string(p.Status)))
	for i := range p.RecommendedActions {
		p.RecommendedActions[i].ID = strings.TrimSpace(p.RecommendedActions[i].ID)
		p.RecommendedActions[i].Intent = strings.TrimSpace(p.RecommendedActions[i].Intent)
	}
	for i := range p.Questions {
		p.Questions[i].ID = strings.TrimSpace(p.Questions[i].ID)
	}
}

// Validate enforces the baseline contract a plan response must satisfy before
// it may replace the stored snapshot. A plan that fails here is treated as a
// failed fetch or execution; the prior plan stays in place.
func (p Plan) Validate() error {
	if p.CaseID == "" {
		return errors.New("caseId is required")
	}
	if !p.Status.Known() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", p.Confidence)
	}
	for i, action := range p.RecommendedActions {
		if action.ID == "" {
			return fmt.Errorf("recommendedActions[%d].id is required", i)
		}
	}
	for i, question := range p.Questions {
		if question.ID == "" {
			return fmt.Errorf("questions[%d].id is required", i)
		}
	}
	return nil
}

// ActionByID looks up a recommended action.
func (p Plan) ActionByID(id string) (Action, bool) {
	for _, action := range p.RecommendedActions {
		if action.ID == id {
			return action, true
		}
	}
	return Action{}, false
}

// QuestionByID looks up an open question.
func (p Plan) QuestionByID(id string) (Question, bool) {
	for _, question := range p.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Clone returns a deep copy so a stored snapshot can be handed to readers
// without aliasing the store's own slices.
func (p Plan) Clone() Plan {
	dup := p
	if len(p.RecommendedActions) > 0 {
		dup.RecommendedActions = make([]Action, len(p.RecommendedActions))
		copy(dup.RecommendedActions, p.RecommendedActions)
	}
	if len(p.Questions) > 0 {
		dup.Questions = make([]Question, len(p.Questions))
		copy(dup.Questions, p.Questions)
	}
	if len(p.Trace.RulesEvaluated) > 0 {
		dup.Trace.RulesEvaluated = make([]RuleResult, len(p.Trace.RulesEvaluated))
		copy(dup.Trace.RulesEvaluated, p.Trace.RulesEvaluated)
	}
	if len(p.Trace.ModelNotes) > 0 {
		dup.Trace.ModelNotes = make([]string, len(p.Trace.ModelNotes))
		copy(dup.Trace.ModelNotes, p.Trace.ModelNotes)
	}
	return dup
}
