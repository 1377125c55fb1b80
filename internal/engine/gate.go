package engine

import (
	"errors"

	"github.com/mhollis/caseline/internal/plan"
)

// ErrNothingPending is returned when Confirm is called with no confirmable
// action staged.
var ErrNothingPending = errors.New("engine: no action pending confirmation")

// GateState is the confirmation gate's position.
type GateState int

const (
	GateIdle GateState = iota
	GatePending
)

// Disposition tells the caller what Request decided.
type Disposition int

const (
	// DispatchNow means the action needs no confirmation and may be sent.
	DispatchNow Disposition = iota
	// AwaitConfirmation means the action is staged; the caller must invoke
	// Confirm or Cancel before anything reaches the network.
	AwaitConfirmation
)

// Gate decouples "user intent" from "request sent". No action flagged as
// confirmable ever reaches the network without a separate, explicit confirm
// step. The gate is owned by the TUI event loop and is not safe for
// concurrent use.
type Gate struct {
	state   GateState
	action  plan.Action
	partial map[string]any
}

// NewGate returns a gate in the idle state.
func NewGate() *Gate {
	return &Gate{}
}

// State reports the gate's current position.
func (g *Gate) State() GateState {
	return g.state
}

// Request routes a user-triggered execution. Non-confirmable actions pass
// straight through; confirmable ones are staged together with the input
// collected so far.
func (g *Gate) Request(action plan.Action, input map[string]any) Disposition {
	if !action.RequiresConfirmation {
		return DispatchNow
	}
	g.state = GatePending
	g.action = action
	g.partial = cloneValues(input)
	return AwaitConfirmation
}

// MergeInput folds additional field values into the staged input while the
// gate is pending, e.g. a field filled inside the confirmation dialog.
func (g *Gate) MergeInput(values map[string]any) {
	if g.state != GatePending || len(values) == 0 {
		return
	}
	if g.partial == nil {
		g.partial = map[string]any{}
	}
	for key, value := range values {
		g.partial[key] = value
	}
}

// Pending returns the staged action and a copy of its partial input.
func (g *Gate) Pending() (plan.Action, map[string]any, bool) {
	if g.state != GatePending {
		return plan.Action{}, nil, false
	}
	return g.action, cloneValues(g.partial), true
}

// Confirm releases the staged action for execution and returns the gate to
// idle. The returned input is the caller's to send.
func (g *Gate) Confirm() (plan.Action, map[string]any, error) {
	if g.state != GatePending {
		return plan.Action{}, nil, ErrNothingPending
	}
	action := g.action
	input := g.partial
	g.reset()
	return action, input, nil
}

// Cancel discards the staged action and its partial input. No network
// request is issued for a cancelled action.
func (g *Gate) Cancel() bool {
	if g.state != GatePending {
		return false
	}
	g.reset()
	return true
}

func (g *Gate) reset() {
	g.state = GateIdle
	g.action = plan.Action{}
	g.partial = nil
}

func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	dup := make(map[string]any, len(values))
	for key, value := range values {
		dup[key] = value
	}
	return dup
}
