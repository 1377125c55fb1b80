// Package unlock holds the admin-unlock flag as an explicit subscribable
// store. Consumers depend on the Watcher interface and get pushed changes;
// nobody polls a global on an interval, so there is no window between "flag
// changed" and "next poll tick".
package unlock

import "sync"

// Watcher is the read side the orchestration engine and TUI depend on.
type Watcher interface {
	Unlocked() bool
	Subscribe(fn func(bool)) (cancel func())
}

// Store is the single writer for the unlock flag.
type Store struct {
	mu       sync.Mutex
	unlocked bool
	next     int
	subs     map[int]func(bool)
}

// NewStore returns a locked store.
func NewStore() *Store {
	return &Store{subs: map[int]func(bool){}}
}

// Unlocked reports the current flag value.
func (s *Store) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked
}

// Set updates the flag. Subscribers are notified only on an actual change,
// on the caller's goroutine.
func (s *Store) Set(unlocked bool) {
	s.mu.Lock()
	if s.unlocked == unlocked {
		s.mu.Unlock()
		return
	}
	s.unlocked = unlocked
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(unlocked)
	}
}

// Toggle flips the flag and returns the new value.
func (s *Store) Toggle() bool {
	s.mu.Lock()
	target := !s.unlocked
	s.mu.Unlock()
	s.Set(target)
	return target
}

// Subscribe registers a change listener and returns its cancel function.
func (s *Store) Subscribe(fn func(bool)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
