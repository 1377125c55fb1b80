// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for caseline.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// Every backend interaction is a tea.Cmd, so nothing here blocks the event
// loop; results come back as messages.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mhollis/caseline/internal/caseapi"
	"github.com/mhollis/caseline/internal/config"
	"github.com/mhollis/caseline/internal/engine"
	"github.com/mhollis/caseline/internal/logbook"
	"github.com/mhollis/caseline/internal/plan"
	"github.com/mhollis/caseline/internal/schema"
	"github.com/mhollis/caseline/internal/timeline"
	"github.com/mhollis/caseline/internal/unlock"
)

// appState represents which "screen" we're on
type appState int

const (
	stateCase    appState = iota // Case board: plan panel, actions, timeline
	stateForm                    // Collecting schema-driven input
	stateConfirm                 // Confirmable action staged in the gate
)

// CaseService is the slice of the backend the console depends on. The real
// implementation is caseapi.Client; tests inject fakes.
type CaseService interface {
	Plan(ctx context.Context, caseID string) (plan.Plan, error)
	Events(ctx context.Context, caseID string) ([]plan.Event, error)
	engine.Backend
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithService overrides the backend client.
func WithService(svc CaseService) AppOption {
	return func(a *App) {
		if svc != nil {
			a.svc = svc
		}
	}
}

// WithClock allows tests to control the timeline's notion of "today".
func WithClock(clock func() time.Time) AppOption {
	return func(a *App) {
		if clock != nil {
			a.clock = clock
		}
	}
}

type planRefreshedMsg struct {
	stale bool
	err   error
}

type eventsLoadedMsg struct {
	events []plan.Event
	err    error
}

type callFinishedMsg struct {
	transition engine.Transition
	err        error
}

type caseItemKind int

const (
	itemAction caseItemKind = iota
	itemQuestion
)

// caseItem implements list.Item for the unified action/question menu.
type caseItem struct {
	kind     caseItemKind
	action   plan.Action
	question plan.Question
}

func (i caseItem) Title() string {
	if i.kind == itemQuestion {
		return "? " + i.question.Prompt
	}
	return i.action.Label
}

func (i caseItem) Description() string {
	if i.kind == itemQuestion {
		return "Provide missing information"
	}
	desc := "Intent: " + i.action.Intent
	if i.action.RequiresConfirmation {
		desc += " · requires confirmation"
	}
	return desc
}

func (i caseItem) FilterValue() string {
	if i.kind == itemQuestion {
		return i.question.ID
	}
	return i.action.ID
}

// formTarget remembers what the open form collects input for.
type formTarget struct {
	kind     caseItemKind
	action   plan.Action
	question plan.Question
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	config   *config.Config
	svc      CaseService
	store    *engine.Store
	gate     *engine.Gate
	executor *engine.Executor
	timeline *timeline.Aggregator
	logbook  *logbook.Logbook
	clock    func() time.Time

	// Admin unlock: reads and subscriptions go through the Watcher
	// interface; only the "u" key handler touches the writable store.
	unlockStore *unlock.Store
	admin       unlock.Watcher

	caseID string
	state  appState

	// UI components
	menu           list.Model
	form           *inputForm
	target         formTarget
	editingPending bool // form reopened from the confirmation dialog

	// Window size (we get this from bubbletea)
	width  int
	height int

	statusMsg    string
	lastLogLine  string
	fetchErrMsg  string // plan/events fetch failed; prior state kept
	execErrMsg   string // backend rejected a mutating call
	schemaErrMsg string // malformed action/question schema (config error)
	showTrace    bool
}

// NewApp creates a new App instance scoped to one case.
func NewApp(cfg *config.Config, caseID string, opts ...AppOption) (*App, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("tui: case id is required")
	}
	lb, err := logbook.New(cfg.SessionLogPath())
	if err == nil {
		lb.Info("Session opened · case %s", caseID)
	}

	menu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "⚖ CASE " + caseID
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)

	app := &App{
		config:      cfg,
		store:       engine.NewStore(caseID),
		gate:        engine.NewGate(),
		timeline:    timeline.NewAggregator(),
		logbook:     lb,
		unlockStore: unlock.NewStore(),
		clock:       func() time.Time { return time.Now() },
		caseID:      caseID,
		state:       stateCase,
		menu:        menu,
	}
	app.admin = app.unlockStore
	app.svc = caseapi.New(cfg.BackendURL()).WithUnaryTimeout(cfg.Timeout())
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.executor = engine.NewExecutor(app.svc, app.store)
	app.executor.OnTransition(func(tr engine.Transition) {
		if tr.Changed() {
			app.logInfo("Case %s · status %s → %s", tr.CaseID, tr.From.FriendlyName(), tr.To.FriendlyName())
		}
	})
	app.admin.Subscribe(func(unlocked bool) {
		if unlocked {
			app.logWarn("Admin mode unlocked")
		} else {
			app.logInfo("Admin mode locked")
		}
	})
	return app, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) setStatus(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	a.statusMsg = message
	if message != a.lastLogLine {
		a.lastLogLine = message
		a.logInfo(message)
	}
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchPlan(), a.loadEvents())
}

// fetchPlan issues a plan read. The ticket carries the last-issued-wins
// ordering; a superseded fetch reports stale and is dropped without touching
// anything.
func (a *App) fetchPlan() tea.Cmd {
	ticket := a.store.BeginFetch(context.Background())
	svc, store, caseID := a.svc, a.store, a.caseID
	return func() tea.Msg {
		p, err := svc.Plan(ticket.Context(), caseID)
		if err != nil {
			if failErr := store.Fail(ticket, err); errors.Is(failErr, engine.ErrStaleFetch) {
				return planRefreshedMsg{stale: true}
			}
			return planRefreshedMsg{err: err}
		}
		if commitErr := store.Commit(ticket, p); errors.Is(commitErr, engine.ErrStaleFetch) {
			return planRefreshedMsg{stale: true}
		}
		return planRefreshedMsg{}
	}
}

func (a *App) loadEvents() tea.Cmd {
	svc, caseID := a.svc, a.caseID
	return func() tea.Msg {
		events, err := svc.Events(context.Background(), caseID)
		return eventsLoadedMsg{events: events, err: err}
	}
}

func (a *App) executeAction(action plan.Action, input map[string]any) tea.Cmd {
	exec := a.executor
	return func() tea.Msg {
		transition, err := exec.Execute(context.Background(), action, input)
		return callFinishedMsg{transition: transition, err: err}
	}
}

func (a *App) submitAnswer(questionID string, input map[string]any) tea.Cmd {
	exec := a.executor
	return func() tea.Msg {
		transition, err := exec.SubmitAnswer(context.Background(), questionID, input)
		return callFinishedMsg{transition: transition, err: err}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.menu.SetSize(max(0, msg.Width/2-6), max(0, msg.Height-14))
		return a, nil

	case planRefreshedMsg:
		return a.handlePlanRefreshed(msg)

	case eventsLoadedMsg:
		if msg.err != nil {
			a.fetchErrMsg = fmt.Sprintf("timeline fetch failed: %v", msg.err)
			a.logWarn("Timeline fetch failed: %v", msg.err)
			return a, nil
		}
		if added := a.timeline.Merge(msg.events); added > 0 {
			a.setStatus(fmt.Sprintf("Timeline · %d new event(s)", added))
		}
		return a, nil

	case callFinishedMsg:
		return a.handleCallFinished(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.state == stateForm && a.form != nil {
		cmd, _ := a.form.Update(msg)
		return a, cmd
	}
	var cmd tea.Cmd
	a.menu, cmd = a.menu.Update(msg)
	return a, cmd
}

func (a *App) handlePlanRefreshed(msg planRefreshedMsg) (tea.Model, tea.Cmd) {
	if msg.stale {
		// Lost the last-issued-wins race. Normal, not an error.
		return a, nil
	}
	if msg.err != nil {
		a.fetchErrMsg = fmt.Sprintf("plan fetch failed: %v", msg.err)
		a.logWarn("Plan fetch failed: %v", msg.err)
		return a, nil
	}
	a.fetchErrMsg = ""
	a.rebuildMenu()
	if current, err := a.store.Current(); err == nil {
		a.setStatus(fmt.Sprintf("Plan loaded · %s", current.Status.FriendlyName()))
	}
	return a, nil
}

func (a *App) handleCallFinished(msg callFinishedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, engine.ErrExecutionInFlight) {
			a.setStatus("Another request is still in flight")
			return a, nil
		}
		a.execErrMsg = fmt.Sprintf("request rejected: %v", msg.err)
		a.logError("Backend rejected the call: %v", msg.err)
		return a, nil
	}
	a.execErrMsg = ""
	a.rebuildMenu()
	if msg.transition.Changed() {
		a.setStatus(fmt.Sprintf(
			"Status updated · %s → %s",
			msg.transition.From.FriendlyName(),
			msg.transition.To.FriendlyName(),
		))
	} else {
		a.setStatus("Request accepted · status unchanged")
	}
	// A discrete pull; the backend may still lag the plan (see timeline docs).
	return a, a.loadEvents()
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		a.store.Abandon()
		return a, tea.Quit
	}
	switch a.state {
	case stateCase:
		return a.handleCaseKey(msg)
	case stateForm:
		return a.handleFormKey(msg)
	case stateConfirm:
		return a.handleConfirmKey(msg)
	}
	return a, nil
}

func (a *App) handleCaseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		a.store.Abandon()
		return a, tea.Quit
	case "r":
		a.setStatus("Refreshing plan and timeline...")
		return a, tea.Batch(a.fetchPlan(), a.loadEvents())
	case "x":
		a.fetchErrMsg = ""
		a.execErrMsg = ""
		a.schemaErrMsg = ""
		a.store.ClearErr()
		return a, nil
	case "u":
		if a.unlockStore.Toggle() {
			a.setStatus("Admin mode unlocked")
		} else {
			a.showTrace = false
			a.setStatus("Admin mode locked")
		}
		return a, nil
	case "t":
		if !a.admin.Unlocked() {
			a.setStatus("Trace view requires admin unlock (press u)")
			return a, nil
		}
		a.showTrace = !a.showTrace
		return a, nil
	case "enter":
		return a.handleSelection()
	}
	var cmd tea.Cmd
	a.menu, cmd = a.menu.Update(msg)
	return a, cmd
}

func (a *App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.form = nil
		if a.editingPending {
			a.editingPending = false
			a.state = stateConfirm
		} else {
			a.state = stateCase
		}
		return a, nil
	case "enter":
		return a.submitForm()
	}
	cmd, _ := a.form.Update(msg)
	return a, cmd
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "y":
		action, input, err := a.gate.Confirm()
		if err != nil {
			a.state = stateCase
			return a, nil
		}
		a.state = stateCase
		a.setStatus(fmt.Sprintf("Confirmed · executing %s", action.Label))
		return a, a.executeAction(action, input)
	case "esc", "n":
		a.gate.Cancel()
		a.state = stateCase
		a.setStatus("Cancelled · nothing was sent")
		return a, nil
	case "e":
		// Keep collecting input inside the confirmation step.
		form, ok := a.formFor(a.target)
		if !ok {
			return a, nil
		}
		a.form = form
		a.editingPending = true
		a.state = stateForm
		return a, nil
	}
	return a, nil
}

func (a *App) handleSelection() (tea.Model, tea.Cmd) {
	item, ok := a.menu.SelectedItem().(caseItem)
	if !ok {
		return a, nil
	}
	target := formTarget{kind: item.kind, action: item.action, question: item.question}
	form, ok := a.formFor(target)
	if !ok {
		return a, nil
	}
	a.target = target
	if form == nil {
		// No input required; dispatch straight away.
		return a, a.dispatch(target, map[string]any{})
	}
	a.form = form
	a.editingPending = false
	a.state = stateForm
	return a, nil
}

// formFor parses the target's input schema. A nil form with ok=true means
// the target needs no input. A malformed schema is a configuration error
// surfaced to the operator, never attributed to their input.
func (a *App) formFor(target formTarget) (*inputForm, bool) {
	var raw []byte
	var title string
	if target.kind == itemQuestion {
		raw = target.question.InputSchema
		title = target.question.Prompt
	} else {
		raw = target.action.InputSchema
		title = target.action.Label
	}
	parsed, err := schema.Parse(raw)
	if err != nil {
		a.schemaErrMsg = fmt.Sprintf("schema configuration error: %v", err)
		a.logError("Schema for %s is malformed: %v", title, err)
		return nil, false
	}
	a.schemaErrMsg = ""
	if parsed.Empty() {
		return nil, true
	}
	return newInputForm(title, parsed), true
}

func (a *App) submitForm() (tea.Model, tea.Cmd) {
	if a.form == nil {
		a.state = stateCase
		return a, nil
	}
	payload, ok := a.form.Coerce()
	if !ok {
		// Field errors render in place; nothing reaches the network.
		return a, nil
	}
	a.form = nil
	if a.editingPending {
		a.editingPending = false
		a.gate.MergeInput(payload)
		a.state = stateConfirm
		return a, nil
	}
	a.state = stateCase
	return a, a.dispatch(a.target, payload)
}

// dispatch routes a validated payload: questions go straight to the
// executor, actions pass through the confirmation gate first.
func (a *App) dispatch(target formTarget, payload map[string]any) tea.Cmd {
	if target.kind == itemQuestion {
		a.setStatus(fmt.Sprintf("Submitting answer · %s", target.question.ID))
		return a.submitAnswer(target.question.ID, payload)
	}
	switch a.gate.Request(target.action, payload) {
	case engine.AwaitConfirmation:
		a.state = stateConfirm
		return nil
	default:
		a.setStatus(fmt.Sprintf("Executing %s", target.action.Label))
		return a.executeAction(target.action, payload)
	}
}

func (a *App) rebuildMenu() {
	current, err := a.store.Current()
	if err != nil {
		a.menu.SetItems(nil)
		return
	}
	items := make([]list.Item, 0, len(current.RecommendedActions)+len(current.Questions))
	for _, action := range current.RecommendedActions {
		items = append(items, caseItem{kind: itemAction, action: action})
	}
	for _, question := range current.Questions {
		items = append(items, caseItem{kind: itemQuestion, question: question})
	}
	a.menu.SetItems(items)
}
