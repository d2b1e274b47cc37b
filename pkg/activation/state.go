// Package activation decides when the assistant is listening for a command.
// state.go defines the gating states and the signals emitted on transitions.
package activation

import (
	"fmt"
	"time"
)

// Phase is the kind of an activation State.
type Phase string

const (
	// PhaseDisabled means gating is off and every utterance is a command.
	PhaseDisabled Phase = "disabled"
	// PhaseIdle means waiting for an activation word.
	PhaseIdle Phase = "idle"
	// PhaseArmed means an activation word was heard and the next utterance
	// is treated as a command.
	PhaseArmed Phase = "armed"
)

// State is the current gating state. ArmedAt is only meaningful when Phase
// is PhaseArmed.
type State struct {
	Phase   Phase
	ArmedAt time.Time
}

// Disabled returns the state used when gating is off.
func Disabled() State { return State{Phase: PhaseDisabled} }

// Idle returns the waiting state.
func Idle() State { return State{Phase: PhaseIdle} }

// Armed returns the listening state entered at t.
func Armed(t time.Time) State { return State{Phase: PhaseArmed, ArmedAt: t} }

// IsArmed reports whether the next utterance will be treated as a command.
func (s State) IsArmed() bool { return s.Phase == PhaseArmed }

func (s State) String() string {
	if s.Phase == PhaseArmed {
		return fmt.Sprintf("armed(%s)", s.ArmedAt.Format(time.RFC3339Nano))
	}
	return string(s.Phase)
}

// Signal is an output of the machine for the surrounding session.
type Signal string

const (
	SignalActivated     Signal = "activated"
	SignalCommandResult Signal = "command_result"
	SignalDeactivated   Signal = "deactivated"
	SignalTimeout       Signal = "timeout"
)

// Action describes what the machine did with one utterance.
type Action string

const (
	// ActionIgnored: idle and no activation word present.
	ActionIgnored Action = "ignored"
	// ActionActivated: an activation word armed the machine.
	ActionActivated Action = "activated"
	// ActionTimedOut: the armed window had expired; the utterance was dropped.
	ActionTimedOut Action = "timed_out"
	// ActionRepeated: an activation word was repeated while armed.
	ActionRepeated Action = "repeated"
	// ActionCommand: the utterance was resolved as a command.
	ActionCommand Action = "command"
)
