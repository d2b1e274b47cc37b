package activation

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/normanking/voxcmd/pkg/command"
)

// Resolver turns an utterance into a command result.
type Resolver interface {
	Resolve(utterance string) command.MatchResult
}

// Outcome reports how the machine handled one utterance.
type Outcome struct {
	Action Action
	// Signals are emitted in order.
	Signals []Signal
	// Result is set when Action is ActionCommand.
	Result *command.MatchResult
	// Delay is the time between activation and the command, or between
	// activation and the expiry check for a timeout. Zero otherwise.
	Delay time.Duration
	// Word is the activation word that armed the machine.
	Word     string
	Previous State
	Current  State
}

// Forwarded reports whether the utterance reached the resolver.
func (o Outcome) Forwarded() bool { return o.Action == ActionCommand }

// Machine is the activation gate. It is driven one utterance at a time by
// its owner and is not safe for concurrent use. Timeouts are evaluated only
// when an utterance arrives; nothing runs in the background.
type Machine struct {
	enabled  bool
	words    []string
	timeout  time.Duration
	resolver Resolver
	fold     cases.Caser
	state    State

	onStateChange func(old, new State)
}

// New creates a Machine. Utterances passed to Handle are expected to be
// trimmed and non-empty.
func New(cfg Config, resolver Resolver) (*Machine, error) {
	if resolver == nil {
		return nil, errors.New("activation: resolver is nil")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m := &Machine{
		enabled:  cfg.Enabled,
		words:    normalizeWords(cfg.Words),
		timeout:  timeout,
		resolver: resolver,
		fold:     cases.Fold(),
	}
	m.state = m.initial()
	return m, nil
}

func (m *Machine) initial() State {
	if m.enabled {
		return Idle()
	}
	return Disabled()
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Words returns the normalized activation words.
func (m *Machine) Words() []string {
	out := make([]string, len(m.words))
	copy(out, m.words)
	return out
}

// Timeout returns the armed window.
func (m *Machine) Timeout() time.Duration { return m.timeout }

// OnStateChange registers a callback invoked after every state change.
func (m *Machine) OnStateChange(fn func(old, new State)) {
	m.onStateChange = fn
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.transition(m.initial())
}

// Handle processes one utterance observed at now.
func (m *Machine) Handle(utterance string, now time.Time) Outcome {
	out := Outcome{Previous: m.state}

	switch m.state.Phase {
	case PhaseDisabled:
		res := m.resolver.Resolve(utterance)
		out.Action = ActionCommand
		out.Result = &res
		out.Signals = []Signal{SignalCommandResult}

	case PhaseIdle:
		word, ok := m.containsWord(utterance)
		if !ok {
			out.Action = ActionIgnored
			break
		}
		m.transition(Armed(now))
		out.Action = ActionActivated
		out.Word = word
		out.Signals = []Signal{SignalActivated}

	case PhaseArmed:
		elapsed := now.Sub(m.state.ArmedAt)
		if elapsed > m.timeout {
			m.transition(Idle())
			out.Action = ActionTimedOut
			out.Delay = elapsed
			out.Signals = []Signal{SignalTimeout}
			break
		}
		if m.isWord(utterance) {
			out.Action = ActionRepeated
			break
		}
		res := m.resolver.Resolve(utterance)
		m.transition(Idle())
		out.Action = ActionCommand
		out.Result = &res
		out.Delay = elapsed
		out.Signals = []Signal{SignalCommandResult, SignalDeactivated}
	}

	out.Current = m.state
	return out
}

func (m *Machine) containsWord(utterance string) (string, bool) {
	folded := m.fold.String(utterance)
	for _, w := range m.words {
		if strings.Contains(folded, w) {
			return w, true
		}
	}
	return "", false
}

func (m *Machine) isWord(utterance string) bool {
	folded := strings.TrimSpace(m.fold.String(utterance))
	for _, w := range m.words {
		if folded == w {
			return true
		}
	}
	return false
}

func (m *Machine) transition(next State) {
	prev := m.state
	m.state = next
	if prev != next && m.onStateChange != nil {
		m.onStateChange(prev, next)
	}
}
