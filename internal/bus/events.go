// Package bus distributes session events (activation, command results,
// timeouts) to the console, sound, metrics and history subscribers.
package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/normanking/voxcmd/pkg/command"
)

// EventType represents the type of event flowing through the bus.
type EventType string

const (
	// Session lifecycle
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"

	// Input
	EventUtterance EventType = "utterance"

	// Activation gate signals
	EventActivated     EventType = "activated"
	EventCommandResult EventType = "command_result"
	EventDeactivated   EventType = "deactivated"
	EventTimeout       EventType = "timeout"

	// Registry
	EventRegistryReloaded EventType = "registry_reloaded"
)

// Event is a single session event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`

	// Utterance that produced the event.
	Utterance string `json:"utterance,omitempty"`
	// State is the activation state after the event.
	State string `json:"state,omitempty"`
	// Word is the activation word that armed the session.
	Word string `json:"word,omitempty"`
	// Result of a command lookup, set on EventCommandResult.
	Result *command.MatchResult `json:"result,omitempty"`
	// Delay since activation for command and timeout events.
	Delay time.Duration `json:"delay,omitempty"`
	// Timeout is the armed window, set on EventActivated.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Commands is the registry size, set on EventRegistryReloaded.
	Commands int `json:"commands,omitempty"`

	Error string `json:"error,omitempty"`
}

// NewEvent creates a new event with the current timestamp and a random ID.
func NewEvent(eventType EventType, sessionID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		SessionID: sessionID,
	}
}
