// Package engine is the case action orchestration core: the plan store,
// the confirmation gate, and the action executor.
//
// One engine instance is scoped to one case. The TUI event loop is the
// single writer; reads happen from rendered views. Fetch results arrive on
// command goroutines, so the store carries its own lock, but ordering is
// enforced by ticket sequence, not by lock acquisition order.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/mhollis/caseline/internal/plan"
)

// ErrStaleFetch marks a fetch result that lost the last-issued-wins race.
// It is a normal condition, not a failure: callers drop it silently.
var ErrStaleFetch = errors.New("engine: stale fetch discarded")

// ErrNoPlan distinguishes "no plan fetched yet" from a failed fetch.
var ErrNoPlan = errors.New("engine: no plan loaded")

// Store owns the single current plan snapshot for one case. The plan only
// changes by wholesale replacement; callers can never observe a snapshot
// assembled from two different fetches.
type Store struct {
	mu      sync.Mutex
	caseID  string
	current *plan.Plan
	issued  uint64
	cancel  context.CancelFunc
	lastErr error
}

// NewStore builds an empty store for the given case.
func NewStore(caseID string) *Store {
	return &Store{caseID: caseID}
}

// CaseID returns the case this store is scoped to.
func (s *Store) CaseID() string {
	return s.caseID
}

// FetchTicket identifies one issued fetch. Only the most recently issued
// ticket may commit its result.
type FetchTicket struct {
	seq uint64
	ctx context.Context
}

// Context returns the fetch's context. It is cancelled when a newer fetch
// is issued or the store is abandoned, so a slow request stops early
// instead of completing into the void.
func (t FetchTicket) Context() context.Context {
	return t.ctx
}

// BeginFetch registers a new fetch attempt and supersedes any outstanding
// one. The returned ticket must be presented to Commit or Fail.
func (s *Store) BeginFetch(ctx context.Context) FetchTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return FetchTicket{seq: s.issued, ctx: fetchCtx}
}

// Commit installs a fetched plan if and only if the ticket is still the
// most recently issued one. A superseded ticket returns ErrStaleFetch and
// leaves the store untouched.
func (s *Store) Commit(ticket FetchTicket, p plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.seq != s.issued {
		return ErrStaleFetch
	}
	snapshot := p.Clone()
	s.current = &snapshot
	s.lastErr = nil
	return nil
}

// Fail records a fetch failure for the most recently issued ticket. The
// prior plan, if any, is preserved. Failures from superseded tickets are
// dropped.
func (s *Store) Fail(ticket FetchTicket, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.seq != s.issued {
		return ErrStaleFetch
	}
	s.lastErr = err
	return nil
}

// Install replaces the stored plan outside the fetch lifecycle. The action
// executor uses this for plans returned by mutating calls; the same
// atomic-replace rule applies. An installed plan is fresher than any fetch
// issued before it, so outstanding tickets are superseded: a read that was
// in flight when the action completed must not commit its pre-action plan
// over this one.
func (s *Store) Install(p plan.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	snapshot := p.Clone()
	s.current = &snapshot
	s.lastErr = nil
}

// supersedeLocked invalidates the latest ticket and cancels its context.
// Callers must hold s.mu.
func (s *Store) supersedeLocked() {
	s.issued++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Current returns a copy of the stored plan, or ErrNoPlan before the first
// successful fetch.
func (s *Store) Current() (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return plan.Plan{}, ErrNoPlan
	}
	return s.current.Clone(), nil
}

// Status returns the stored plan's status, or empty when no plan is loaded.
func (s *Store) Status() plan.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Status
}

// Err returns the retrievable error from the latest fetch attempt, nil when
// the latest attempt succeeded or none has been made.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearErr dismisses the recorded fetch error.
func (s *Store) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Abandon cancels any outstanding fetch and invalidates its ticket. Called
// when the view loses interest in the case; a late completion is then
// discarded even if its response raced past the cancellation.
func (s *Store) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
}
