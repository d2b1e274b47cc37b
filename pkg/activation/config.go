package activation

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DefaultTimeout is how long the machine stays armed without a command.
const DefaultTimeout = 5 * time.Second

// Config holds activation gating settings.
type Config struct {
	// Enabled turns gating on. When false every utterance is a command.
	Enabled bool
	// Words are the activation words. Matching is case-insensitive.
	Words []string
	// Timeout is the armed window. Values <= 0 fall back to DefaultTimeout.
	Timeout time.Duration
}

// DefaultConfig returns gating enabled with no words and the default
// timeout.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Timeout: DefaultTimeout,
	}
}

// normalizeWords case-folds and trims words, dropping empty and repeated
// entries.
func normalizeWords(words []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(fold.String(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
