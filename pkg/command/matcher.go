package command

import (
	"fmt"
	"sync/atomic"
)

// DefaultFuzzyCutoff is the minimum similarity for a fuzzy match.
const DefaultFuzzyCutoff = 0.85

// MatchKind classifies a MatchResult.
type MatchKind int

const (
	Unrecognized MatchKind = iota
	Exact
	Fuzzy
)

func (k MatchKind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Fuzzy:
		return "fuzzy"
	default:
		return "unrecognized"
	}
}

// MarshalText encodes the kind by name.
func (k MatchKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *MatchKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "exact":
		*k = Exact
	case "fuzzy":
		*k = Fuzzy
	case "unrecognized":
		*k = Unrecognized
	default:
		return fmt.Errorf("unknown match kind %q", b)
	}
	return nil
}

// MatchResult is the outcome of resolving one utterance.
type MatchResult struct {
	Kind      MatchKind `json:"kind"`
	Utterance string    `json:"utterance"`
	// Response is the rendered template for exact matches and the raw
	// template for fuzzy ones. Empty when unrecognized.
	Response string `json:"response,omitempty"`
	// PatternKey is the key of the command that matched.
	PatternKey string `json:"pattern_key,omitempty"`
	// Captures are the placeholder values of an exact match, in order.
	// Always empty for fuzzy matches.
	Captures []string `json:"captures,omitempty"`
	// Named maps placeholder names to their captures.
	Named map[string]string `json:"named,omitempty"`
	// Confidence is 1 for exact matches and the similarity score for
	// fuzzy ones.
	Confidence float64 `json:"confidence"`
}

// Recognized reports whether the result carries a response.
func (r MatchResult) Recognized() bool { return r.Kind != Unrecognized }

// Resolve matches utterance against reg.
//
// Patterns are tried in registration order and the first full match wins.
// If nothing matches exactly, the literal (placeholder-free) keys are scored
// by similarity and the best one at or above cutoff is returned as a fuzzy
// match. Resolve performs no I/O.
func Resolve(utterance string, reg *Registry, cutoff float64) MatchResult {
	res := MatchResult{Kind: Unrecognized, Utterance: utterance}
	if reg == nil {
		return res
	}

	for _, e := range reg.entries {
		groups, ok := e.Pattern.Match(utterance)
		if !ok {
			continue
		}
		res.Kind = Exact
		res.PatternKey = e.Key
		res.Confidence = 1
		if len(groups) == 0 {
			res.Response = e.Template.String()
			return res
		}
		res.Captures = groups
		res.Named = namedCaptures(e.Pattern.fields, groups)
		res.Response = e.Template.Render(groups, res.Named)
		return res
	}

	keys := make([]string, 0, len(reg.entries))
	literal := make([]int, 0, len(reg.entries))
	for i, e := range reg.entries {
		if e.Pattern.Parameterized() {
			continue
		}
		keys = append(keys, e.Key)
		literal = append(literal, i)
	}

	idx, score := closest(utterance, keys, cutoff)
	if idx < 0 {
		return res
	}
	e := reg.entries[literal[idx]]
	res.Kind = Fuzzy
	res.PatternKey = e.Key
	res.Response = e.Template.String()
	res.Confidence = score
	return res
}

func namedCaptures(fields, groups []string) map[string]string {
	named := make(map[string]string, len(fields))
	for i, f := range fields {
		if f == "" || i >= len(groups) {
			continue
		}
		if _, dup := named[f]; dup {
			continue
		}
		named[f] = groups[i]
	}
	return named
}

// Matcher resolves utterances against a registry that can be replaced while
// in use.
type Matcher struct {
	registry atomic.Pointer[Registry]
	cutoff   float64
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithFuzzyCutoff overrides DefaultFuzzyCutoff. Values outside (0, 1] are
// ignored.
func WithFuzzyCutoff(cutoff float64) MatcherOption {
	return func(m *Matcher) {
		if cutoff > 0 && cutoff <= 1 {
			m.cutoff = cutoff
		}
	}
}

// NewMatcher creates a Matcher over reg.
func NewMatcher(reg *Registry, opts ...MatcherOption) *Matcher {
	m := &Matcher{cutoff: DefaultFuzzyCutoff}
	for _, opt := range opts {
		opt(m)
	}
	m.registry.Store(reg)
	return m
}

// Resolve matches utterance against the current registry.
func (m *Matcher) Resolve(utterance string) MatchResult {
	return Resolve(utterance, m.registry.Load(), m.cutoff)
}

// Registry returns the current registry.
func (m *Matcher) Registry() *Registry { return m.registry.Load() }

// Swap installs reg and returns the previous registry. A nil reg is ignored.
func (m *Matcher) Swap(reg *Registry) *Registry {
	if reg == nil {
		return m.registry.Load()
	}
	return m.registry.Swap(reg)
}

// Cutoff returns the fuzzy cutoff in use.
func (m *Matcher) Cutoff() float64 { return m.cutoff }
