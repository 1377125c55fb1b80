package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mhollis/caseline/internal/plan"
)

func actionEvent(id, actionID string, ts time.Time) plan.Event {
	payload, _ := json.Marshal(map[string]string{"actionId": actionID})
	return plan.Event{ID: id, Type: plan.EventAction, Timestamp: ts, Payload: payload}
}

func TestClassify(t *testing.T) {
	ts := time.Now()
	tests := []struct {
		name  string
		event plan.Event
		want  Category
	}{
		{name: "user-input", event: plan.Event{ID: "e1", Type: plan.EventUserInput, Timestamp: ts}, want: CategoryUser},
		{name: "review-action", event: actionEvent("e2", "send_to_review", ts), want: CategoryReview},
		{name: "review-case-insensitive", event: actionEvent("e3", "Queue_REVIEW_escalation", ts), want: CategoryReview},
		{name: "plain-action", event: actionEvent("e4", "approve", ts), want: CategoryAgent},
		{name: "agent-plan", event: plan.Event{ID: "e5", Type: plan.EventAgentPlan, Timestamp: ts}, want: CategoryAgent},
		{name: "status-change", event: plan.Event{ID: "e6", Type: plan.EventStatusChange, Timestamp: ts}, want: CategoryAgent},
		{name: "action-without-payload", event: plan.Event{ID: "e7", Type: plan.EventAction, Timestamp: ts}, want: CategoryAgent},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.event); got != test.want {
				t.Fatalf("Classify() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestMergeIsAppendOnlyAndSorted(t *testing.T) {
	agg := NewAggregator()
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	first := []plan.Event{
		{ID: "e2", Type: plan.EventUserInput, Timestamp: base.Add(2 * time.Hour)},
		{ID: "e1", Type: plan.EventAgentPlan, Timestamp: base},
	}
	if added := agg.Merge(first); added != 2 {
		t.Fatalf("Merge() added = %d, want 2", added)
	}

	// A refresh re-delivers known events plus one new entry in between.
	second := []plan.Event{
		{ID: "e1", Type: plan.EventAgentPlan, Timestamp: base},
		{ID: "e3", Type: plan.EventStatusChange, Timestamp: base.Add(time.Hour)},
		{ID: "e2", Type: plan.EventUserInput, Timestamp: base.Add(2 * time.Hour)},
	}
	if added := agg.Merge(second); added != 1 {
		t.Fatalf("Merge() added = %d, want 1", added)
	}

	events := agg.Events()
	if len(events) != 3 {
		t.Fatalf("len = %d", len(events))
	}
	for i, want := range []string{"e1", "e3", "e2"} {
		if events[i].ID != want {
			t.Fatalf("events[%d] = %q, want %q", i, events[i].ID, want)
		}
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("events not ascending at %d", i)
		}
	}
}

func TestBucketsLabelsAndOrder(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	agg := NewAggregator()
	agg.Merge([]plan.Event{
		{ID: "old", Type: plan.EventAgentPlan, Timestamp: now.AddDate(0, 0, -5)},
		{ID: "yday", Type: plan.EventUserInput, Timestamp: now.AddDate(0, 0, -1)},
		{ID: "today-am", Type: plan.EventStatusChange, Timestamp: now.Add(-4 * time.Hour)},
		{ID: "today-pm", Type: plan.EventUserInput, Timestamp: now.Add(-1 * time.Hour)},
	})

	buckets := agg.Buckets(now)
	if len(buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(buckets))
	}
	if buckets[0].Label != "Aug 23, 2026" {
		t.Fatalf("buckets[0].Label = %q", buckets[0].Label)
	}
	if buckets[1].Label != "Yesterday" {
		t.Fatalf("buckets[1].Label = %q", buckets[1].Label)
	}
	if buckets[2].Label != "Today" {
		t.Fatalf("buckets[2].Label = %q", buckets[2].Label)
	}
	if len(buckets[2].Entries) != 2 {
		t.Fatalf("today entries = %d", len(buckets[2].Entries))
	}
	if buckets[2].Entries[0].Event.ID != "today-am" || buckets[2].Entries[1].Event.ID != "today-pm" {
		t.Fatalf("today order = %q, %q", buckets[2].Entries[0].Event.ID, buckets[2].Entries[1].Event.ID)
	}
}

func TestBucketsEmptyAggregator(t *testing.T) {
	agg := NewAggregator()
	if buckets := agg.Buckets(time.Now()); len(buckets) != 0 {
		t.Fatalf("buckets = %v, want none", buckets)
	}
}

func TestMergeSkipsEventsWithoutID(t *testing.T) {
	agg := NewAggregator()
	added := agg.Merge([]plan.Event{{Type: plan.EventUserInput, Timestamp: time.Now()}})
	if added != 0 || agg.Len() != 0 {
		t.Fatalf("id-less event admitted")
	}
}
