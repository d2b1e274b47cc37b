package asr

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer prepares raw transcripts for the activation machine:
// language-aware lower-casing, collapsed whitespace, trimmed ends.
type Normalizer struct {
	mu    sync.Mutex
	lower cases.Caser
}

// NewNormalizer creates a normalizer for the given language.
func NewNormalizer(tag language.Tag) *Normalizer {
	return &Normalizer{lower: cases.Lower(tag)}
}

// Normalize returns the cleaned utterance. The result is empty when the
// input holds only whitespace.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	n.mu.Lock()
	lowered := n.lower.String(text)
	n.mu.Unlock()

	return strings.Join(strings.Fields(lowered), " ")
}
