package command

import "errors"

// Definition is one uncompiled command: a raw pattern and the response
// template returned when it matches.
type Definition struct {
	Pattern  string `json:"pattern" yaml:"pattern"`
	Response string `json:"response" yaml:"response"`
}

// Entry is a compiled command held by a Registry.
type Entry struct {
	Key      string
	Pattern  *Pattern
	Template Template
}

// Registry is an ordered, immutable set of compiled commands. Iteration
// order is registration order.
type Registry struct {
	entries  []Entry
	index    map[string]int
	rejected []*InvalidPatternError
}

// Compile builds a Registry from definitions in registration order.
//
// Definitions whose pattern does not compile are skipped and reported by
// Rejected. When a key is registered twice the later response replaces the
// earlier one, and the entry keeps its first position. If nothing usable
// remains Compile returns a *RegistryEmptyError.
func Compile(defs []Definition) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(defs))}

	for _, def := range defs {
		if i, ok := r.index[def.Pattern]; ok {
			r.entries[i].Template = ParseTemplate(def.Response)
			continue
		}
		p, err := CompilePattern(def.Pattern)
		if err != nil {
			var invalid *InvalidPatternError
			if !errors.As(err, &invalid) {
				invalid = &InvalidPatternError{Pattern: def.Pattern, Offset: -1, Reason: err.Error()}
			}
			r.rejected = append(r.rejected, invalid)
			continue
		}
		r.index[def.Pattern] = len(r.entries)
		r.entries = append(r.entries, Entry{
			Key:      def.Pattern,
			Pattern:  p,
			Template: ParseTemplate(def.Response),
		})
	}

	if len(r.entries) == 0 {
		return nil, &RegistryEmptyError{Rejected: r.rejected}
	}
	return r, nil
}

// Len returns the number of compiled commands.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns the compiled commands in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the entry registered under key.
func (r *Registry) Lookup(key string) (Entry, bool) {
	i, ok := r.index[key]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Rejected returns the definitions skipped during compilation.
func (r *Registry) Rejected() []*InvalidPatternError {
	out := make([]*InvalidPatternError, len(r.rejected))
	copy(out, r.rejected)
	return out
}
