package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/mhollis/caseline/internal/plan"
)

func testPlan(status plan.Status) plan.Plan {
	return plan.Plan{
		CaseID:     "case-1",
		Status:     status,
		Confidence: 0.5,
		RecommendedActions: []plan.Action{
			{ID: "approve", Label: "Approve", Intent: "approve"},
		},
	}
}

func TestCurrentBeforeFirstFetch(t *testing.T) {
	store := NewStore("case-1")
	if _, err := store.Current(); !errors.Is(err, ErrNoPlan) {
		t.Fatalf("Current() err = %v, want ErrNoPlan", err)
	}
	if store.Err() != nil {
		t.Fatalf("Err() = %v before any fetch", store.Err())
	}
}

func TestLastIssuedWins(t *testing.T) {
	store := NewStore("case-1")
	ctx := context.Background()

	ticketA := store.BeginFetch(ctx)
	ticketB := store.BeginFetch(ctx)

	// B's response arrives first, then A's slow response.
	if err := store.Commit(ticketB, testPlan(plan.StatusBlocked)); err != nil {
		t.Fatalf("commit B: %v", err)
	}
	if err := store.Commit(ticketA, testPlan(plan.StatusDraft)); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("commit A = %v, want ErrStaleFetch", err)
	}

	current, err := store.Current()
	if err != nil {
		t.Fatalf("Current() err = %v", err)
	}
	if current.Status != plan.StatusBlocked {
		t.Fatalf("status = %q, want blocked (B issued later)", current.Status)
	}
}

func TestLastIssuedWinsRegardlessOfArrival(t *testing.T) {
	store := NewStore("case-1")
	ctx := context.Background()

	ticketA := store.BeginFetch(ctx)
	ticketB := store.BeginFetch(ctx)

	// A's response arrives first this time; B still wins.
	if err := store.Commit(ticketA, testPlan(plan.StatusDraft)); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("commit A = %v, want ErrStaleFetch", err)
	}
	if err := store.Commit(ticketB, testPlan(plan.StatusBlocked)); err != nil {
		t.Fatalf("commit B: %v", err)
	}
	if got := store.Status(); got != plan.StatusBlocked {
		t.Fatalf("status = %q", got)
	}
}

func TestInstallSupersedesOutstandingFetch(t *testing.T) {
	store := NewStore("case-1")

	// A refresh is in flight when an executed action installs its plan.
	ticket := store.BeginFetch(context.Background())
	store.Install(testPlan(plan.StatusApproved))

	select {
	case <-ticket.Context().Done():
	default:
		t.Fatalf("outstanding fetch context not cancelled by Install")
	}
	if err := store.Commit(ticket, testPlan(plan.StatusNeedsInput)); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("commit after Install = %v, want ErrStaleFetch", err)
	}
	if got := store.Status(); got != plan.StatusApproved {
		t.Fatalf("pre-action fetch overwrote the installed plan: status = %q", got)
	}
	if err := store.Fail(ticket, errors.New("late timeout")); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("Fail after Install = %v, want ErrStaleFetch", err)
	}
}

func TestCommitAfterAbandonIsStale(t *testing.T) {
	store := NewStore("case-1")
	ticket := store.BeginFetch(context.Background())
	store.Abandon()

	// A response that raced past the cancellation must still be discarded.
	if err := store.Commit(ticket, testPlan(plan.StatusDraft)); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("commit after Abandon = %v, want ErrStaleFetch", err)
	}
	if _, err := store.Current(); !errors.Is(err, ErrNoPlan) {
		t.Fatalf("abandoned fetch installed a plan: %v", err)
	}
}

func TestFailPreservesPriorPlan(t *testing.T) {
	store := NewStore("case-1")
	ctx := context.Background()

	first := store.BeginFetch(ctx)
	if err := store.Commit(first, testPlan(plan.StatusDraft)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	second := store.BeginFetch(ctx)
	fetchErr := errors.New("backend unreachable")
	if err := store.Fail(second, fetchErr); err != nil {
		t.Fatalf("fail: %v", err)
	}

	current, err := store.Current()
	if err != nil {
		t.Fatalf("Current() err = %v", err)
	}
	if current.Status != plan.StatusDraft {
		t.Fatalf("prior plan lost: status = %q", current.Status)
	}
	if !errors.Is(store.Err(), fetchErr) {
		t.Fatalf("Err() = %v, want recorded fetch error", store.Err())
	}
	store.ClearErr()
	if store.Err() != nil {
		t.Fatalf("Err() after ClearErr = %v", store.Err())
	}
}

func TestStaleFailureIsDropped(t *testing.T) {
	store := NewStore("case-1")
	ctx := context.Background()

	old := store.BeginFetch(ctx)
	latest := store.BeginFetch(ctx)
	if err := store.Commit(latest, testPlan(plan.StatusApproved)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.Fail(old, errors.New("late timeout")); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("Fail(old) = %v, want ErrStaleFetch", err)
	}
	if store.Err() != nil {
		t.Fatalf("stale failure recorded: %v", store.Err())
	}
}

func TestBeginFetchCancelsOutstandingFetch(t *testing.T) {
	store := NewStore("case-1")
	first := store.BeginFetch(context.Background())
	_ = store.BeginFetch(context.Background())
	select {
	case <-first.Context().Done():
	default:
		t.Fatalf("superseded fetch context not cancelled")
	}
}

func TestAbandonCancelsOutstandingFetch(t *testing.T) {
	store := NewStore("case-1")
	ticket := store.BeginFetch(context.Background())
	store.Abandon()
	select {
	case <-ticket.Context().Done():
	default:
		t.Fatalf("abandoned fetch context not cancelled")
	}
}

func TestCommitReplacesWholesale(t *testing.T) {
	store := NewStore("case-1")
	ctx := context.Background()

	first := store.BeginFetch(ctx)
	p1 := testPlan(plan.StatusNeedsInput)
	p1.Questions = []plan.Question{{ID: "q1", Prompt: "Ship-to state?"}}
	if err := store.Commit(first, p1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	second := store.BeginFetch(ctx)
	p2 := testPlan(plan.StatusApproved)
	p2.RecommendedActions = nil
	if err := store.Commit(second, p2); err != nil {
		t.Fatalf("commit: %v", err)
	}

	current, _ := store.Current()
	if current.Status != plan.StatusApproved {
		t.Fatalf("status = %q", current.Status)
	}
	// Nothing from the first snapshot may survive.
	if len(current.Questions) != 0 || len(current.RecommendedActions) != 0 {
		t.Fatalf("mixed snapshot: %+v", current)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	store := NewStore("case-1")
	ticket := store.BeginFetch(context.Background())
	if err := store.Commit(ticket, testPlan(plan.StatusDraft)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	snapshot, _ := store.Current()
	snapshot.RecommendedActions[0].ID = "mutated"
	fresh, _ := store.Current()
	if fresh.RecommendedActions[0].ID != "approve" {
		t.Fatalf("reader mutation leaked into the store")
	}
}
