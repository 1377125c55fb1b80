package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/mhollis/caseline/internal/plan"
)

// ErrExecutionInFlight rejects a mutating request while another one for the
// same case is still outstanding. Two concurrent mutating responses could
// arrive out of order and let a stale plan overwrite a fresher one, so the
// second gesture is refused rather than queued.
var ErrExecutionInFlight = errors.New("engine: another request is in flight for this case")

// Backend is the slice of the case API the executor needs.
type Backend interface {
	Execute(ctx context.Context, caseID, actionID string, input map[string]any) (plan.Plan, error)
	Answer(ctx context.Context, caseID, questionID string, input map[string]any) (plan.Plan, error)
}

// Transition records the status movement caused by one successful call.
// Listeners use it to surface "status updated" acknowledgments without
// diffing snapshots.
type Transition struct {
	CaseID string
	From   plan.Status
	To     plan.Status
}

// Changed reports whether the call actually moved the status.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// TransitionListener observes status transitions. Listeners run on the
// executor's calling goroutine and must not block.
type TransitionListener func(Transition)

// Executor sends validated inputs to the backend and installs returned
// plans into the store. Calls are serialized per case: exactly one wire
// call per user gesture, never two concurrently.
type Executor struct {
	backend Backend
	store   *Store

	mu        sync.Mutex
	inFlight  bool
	listeners []TransitionListener
}

// NewExecutor wires an executor to its backend and plan store.
func NewExecutor(backend Backend, store *Store) *Executor {
	return &Executor{backend: backend, store: store}
}

// OnTransition registers a status transition listener.
func (e *Executor) OnTransition(listener TransitionListener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// Busy reports whether a mutating call is outstanding.
func (e *Executor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Execute performs an action. On success the returned plan replaces the
// store's snapshot wholesale and the resulting transition is reported; on
// failure the store is left untouched and the error is the caller's to
// surface. The user must re-trigger after a failure, nothing retries.
func (e *Executor) Execute(ctx context.Context, action plan.Action, input map[string]any) (Transition, error) {
	return e.send(ctx, func(ctx context.Context) (plan.Plan, error) {
		return e.backend.Execute(ctx, e.store.CaseID(), action.ID, input)
	})
}

// SubmitAnswer submits a question answer under the same serialization and
// replacement rules as Execute.
func (e *Executor) SubmitAnswer(ctx context.Context, questionID string, input map[string]any) (Transition, error) {
	return e.send(ctx, func(ctx context.Context) (plan.Plan, error) {
		return e.backend.Answer(ctx, e.store.CaseID(), questionID, input)
	})
}

func (e *Executor) send(ctx context.Context, call func(context.Context) (plan.Plan, error)) (Transition, error) {
	if err := e.acquire(); err != nil {
		return Transition{}, err
	}
	defer e.release()

	before := e.store.Status()
	updated, err := call(ctx)
	if err != nil {
		return Transition{}, err
	}
	e.store.Install(updated)
	transition := Transition{CaseID: e.store.CaseID(), From: before, To: updated.Status}
	e.notify(transition)
	return transition, nil
}

func (e *Executor) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return ErrExecutionInFlight
	}
	e.inFlight = true
	return nil
}

func (e *Executor) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
}

func (e *Executor) notify(transition Transition) {
	e.mu.Lock()
	listeners := make([]TransitionListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()
	for _, listener := range listeners {
		listener(transition)
	}
}
