package engine

import (
	"errors"
	"testing"

	"github.com/mhollis/caseline/internal/plan"
)

func TestGatePassesThroughUnconfirmableActions(t *testing.T) {
	gate := NewGate()
	action := plan.Action{ID: "request_info", Intent: "request_info"}
	if got := gate.Request(action, nil); got != DispatchNow {
		t.Fatalf("Request() = %v, want DispatchNow", got)
	}
	if gate.State() != GateIdle {
		t.Fatalf("gate left idle state for unconfirmable action")
	}
}

func TestGateStagesConfirmableActions(t *testing.T) {
	gate := NewGate()
	action := plan.Action{ID: "approve", Intent: "approve", RequiresConfirmation: true}
	if got := gate.Request(action, map[string]any{"state": "CA"}); got != AwaitConfirmation {
		t.Fatalf("Request() = %v, want AwaitConfirmation", got)
	}
	if gate.State() != GatePending {
		t.Fatalf("gate state = %v, want pending", gate.State())
	}
	staged, input, ok := gate.Pending()
	if !ok || staged.ID != "approve" {
		t.Fatalf("Pending() = %v, %v", staged, ok)
	}
	if input["state"] != "CA" {
		t.Fatalf("staged input = %v", input)
	}
}

func TestGateCancelDiscardsPartialInput(t *testing.T) {
	gate := NewGate()
	action := plan.Action{ID: "approve", RequiresConfirmation: true}
	gate.Request(action, map[string]any{"state": "CA"})
	if !gate.Cancel() {
		t.Fatalf("Cancel() = false with pending action")
	}
	if gate.State() != GateIdle {
		t.Fatalf("gate not idle after cancel")
	}
	if _, _, ok := gate.Pending(); ok {
		t.Fatalf("partial input survived cancel")
	}
	if _, _, err := gate.Confirm(); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("Confirm() after cancel = %v, want ErrNothingPending", err)
	}
}

func TestGateMergeInputWhilePending(t *testing.T) {
	gate := NewGate()
	action := plan.Action{ID: "approve", RequiresConfirmation: true}
	gate.Request(action, map[string]any{"state": "CA"})
	gate.MergeInput(map[string]any{"note": "verified by phone"})

	staged, input, err := gate.Confirm()
	if err != nil {
		t.Fatalf("Confirm() err = %v", err)
	}
	if staged.ID != "approve" {
		t.Fatalf("confirmed action = %q", staged.ID)
	}
	if input["state"] != "CA" || input["note"] != "verified by phone" {
		t.Fatalf("merged input = %v", input)
	}
	if gate.State() != GateIdle {
		t.Fatalf("gate not idle after confirm")
	}
}

func TestGateMergeInputIgnoredWhenIdle(t *testing.T) {
	gate := NewGate()
	gate.MergeInput(map[string]any{"state": "CA"})
	if _, _, ok := gate.Pending(); ok {
		t.Fatalf("idle gate accepted input")
	}
}

func TestGateRequestDoesNotAliasCallerInput(t *testing.T) {
	gate := NewGate()
	input := map[string]any{"state": "CA"}
	gate.Request(plan.Action{ID: "approve", RequiresConfirmation: true}, input)
	input["state"] = "NY"
	_, staged, _ := gate.Pending()
	if staged["state"] != "CA" {
		t.Fatalf("staged input aliases caller map: %v", staged)
	}
}
