// Package stubserver is a canned rules-evaluation backend for demos and
// local development. It serves the same four endpoints as the real service
// but its decisions are fixtures: nothing here evaluates compliance rules.
package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mhollis/caseline/internal/plan"
)

// Logger records server status information. It matches logbook's method set
// loosely; any printf-style sink works.
type Logger interface {
	Printf(format string, args ...any)
}

type caseState struct {
	plan   plan.Plan
	events []plan.Event
}

// Server wraps the HTTP listener and handlers backing the stub backend.
type Server struct {
	settings Settings
	logger   Logger
	clock    func() time.Time

	mu       sync.Mutex
	cases    map[string]*caseState
	server   *http.Server
	listener net.Listener
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a stub backend using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		cases:    map[string]*caseState{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Router builds the HTTP routing table. Exposed so tests can drive the
// handlers through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/cases/{caseID}/plan", s.handlePlan)
	r.Post("/cases/{caseID}/actions/{actionID}/execute", s.handleExecute)
	r.Post("/cases/{caseID}/questions/{questionID}/answer", s.handleAnswer)
	r.Get("/cases/{caseID}/events", s.handleEvents)
	return r
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("stubserver: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("stubserver: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stubserver: listen %s: %w", addr, err)
	}
	s.listener = listener
	server := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("stubserver: serve error: %v", err)
		}
	}()
	s.logger.Printf("stubserver: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// caseFor returns the state for a case, seeding a fixture on first access
// so any case id can be demoed.
func (s *Server) caseFor(caseID string) *caseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cases[caseID]; ok {
		return existing
	}
	seeded := seedCase(caseID, s.clock())
	s.cases[caseID] = seeded
	return seeded
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	state := s.caseFor(caseID)
	s.mu.Lock()
	snapshot := state.plan.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	actionID := chi.URLParam(r, "actionID")
	input, err := s.decodeInput(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	state := s.caseFor(caseID)
	s.mu.Lock()
	if _, ok := state.plan.ActionByID(actionID); !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"message": fmt.Sprintf("action %q is not available for this case", actionID),
		})
		return
	}
	state.advance(actionID, input, s.clock())
	snapshot := state.plan.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	questionID := chi.URLParam(r, "questionID")
	input, err := s.decodeInput(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	state := s.caseFor(caseID)
	s.mu.Lock()
	if _, ok := state.plan.QuestionByID(questionID); !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"message": fmt.Sprintf("question %q is not open for this case", questionID),
		})
		return
	}
	state.answer(questionID, input, s.clock())
	snapshot := state.plan.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	state := s.caseFor(caseID)
	s.mu.Lock()
	events := make([]plan.Event, len(state.events))
	copy(events, state.events)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errors.New("payload exceeds limit")
		}
		return nil, errors.New("unable to read body")
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, errors.New("invalid JSON input")
	}
	return input, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
