// Package state implements the per-unit lifecycle state machine shared by
// every live unit instance (§4.6).
package state

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Lifecycle state names (§4.6).
const (
	StateNew             = "new"
	StateSelected        = "selected"
	StateActive          = "active"
	StateDeactivatedOk   = "deactivated_ok"
	StateDeactivatedFail = "deactivated_fail"
	StateDeselected      = "deselected"
	StateIncompatible    = "incompatible"
	StateLoadFailed      = "load_failed"
)

// Lifecycle events (§4.6).
const (
	EventLoadOK          = "load_ok"
	EventLoadErrIncompat = "load_err_incompatible"
	EventLoadErrFailed   = "load_err_failed"
	EventActivateOK      = "activate_ok"
	EventDeactivateOK    = "deactivate_ok"
	EventDeactivateFail  = "deactivate_fail"
	EventChildExitOK     = "child_exit_ok"
	EventChildExitFail   = "child_exit_fail"
	EventDeselect        = "deselect"
)

// Machine wraps a looplab/fsm.FSM with the exact transition table from §4.6.
// "Active -> Active" is unreachable: activate_ok is only defined out of
// Selected, so a second activation attempt without an intervening
// deactivation has no matching transition and fsm.Event returns an error.
type Machine struct {
	fsm *fsm.FSM
}

// NewMachine builds a fresh per-unit lifecycle machine in StateNew.
func NewMachine() *Machine {
	m := &Machine{}

	m.fsm = fsm.NewFSM(
		StateNew,
		fsm.Events{
			{Name: EventLoadOK, Src: []string{StateNew}, Dst: StateSelected},
			{Name: EventLoadErrIncompat, Src: []string{StateNew}, Dst: StateIncompatible},
			{Name: EventLoadErrFailed, Src: []string{StateNew}, Dst: StateLoadFailed},
			{Name: EventActivateOK, Src: []string{StateSelected}, Dst: StateActive},
			{Name: EventDeactivateOK, Src: []string{StateActive}, Dst: StateDeactivatedOk},
			{Name: EventDeactivateFail, Src: []string{StateActive}, Dst: StateDeactivatedFail},
			{Name: EventChildExitOK, Src: []string{StateActive}, Dst: StateDeactivatedOk},
			{Name: EventChildExitFail, Src: []string{StateActive}, Dst: StateDeactivatedFail},
			{
				Name: EventDeselect,
				Src:  []string{StateSelected, StateDeactivatedOk, StateDeactivatedFail},
				Dst:  StateDeselected,
			},
		},
		fsm.Callbacks{},
	)

	return m
}

// Current returns the machine's current state.
func (m *Machine) Current() string {
	return m.fsm.Current()
}

// Fire attempts the named transition, returning an error if it is not valid
// from the current state (e.g. Active -> Active via a second activate_ok).
func (m *Machine) Fire(ctx context.Context, event string) error {
	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("state: %w", err)
	}

	return nil
}

// Terminal reports whether the machine has reached Deselected, Incompatible,
// or LoadFailed — the states from which §4.6 says an instance is dropped,
// never created, or never created respectively.
func (m *Machine) Terminal() bool {
	switch m.Current() {
	case StateDeselected, StateIncompatible, StateLoadFailed:
		return true
	default:
		return false
	}
}
