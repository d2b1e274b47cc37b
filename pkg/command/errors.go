package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPattern is wrapped by every InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid command pattern")

	// ErrRegistryEmpty is returned when no command survived compilation.
	// Callers treat it as fatal.
	ErrRegistryEmpty = errors.New("command registry is empty")
)

// InvalidPatternError reports a command pattern that could not be compiled.
type InvalidPatternError struct {
	Pattern string
	Offset  int
	Reason  string
}

func (e *InvalidPatternError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid command pattern %q at offset %d: %s", e.Pattern, e.Offset, e.Reason)
	}
	return fmt.Sprintf("invalid command pattern %q: %s", e.Pattern, e.Reason)
}

func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// RegistryEmptyError carries the definitions that were rejected while
// building a registry that ended up with no commands.
type RegistryEmptyError struct {
	Rejected []*InvalidPatternError
}

func (e *RegistryEmptyError) Error() string {
	if len(e.Rejected) == 0 {
		return ErrRegistryEmpty.Error()
	}
	msgs := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		msgs = append(msgs, r.Error())
	}
	return fmt.Sprintf("%s (%d rejected: %s)", ErrRegistryEmpty, len(e.Rejected), strings.Join(msgs, "; "))
}

func (e *RegistryEmptyError) Unwrap() error { return ErrRegistryEmpty }
