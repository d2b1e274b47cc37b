// Package command compiles spoken-command definitions and resolves
// recognized utterances against them.
//
// A command pattern is literal text with optional {name} placeholders. A
// name is any text without braces, spaces and non-Latin letters included.
// Each placeholder captures one or more characters, and the pattern must
// match the whole utterance. Patterns are compiled once when a Registry is
// built and never rebuilt per utterance.
package command

import (
	"regexp"
	"strings"
)

// Pattern is a compiled command pattern.
type Pattern struct {
	raw    string
	re     *regexp.Regexp
	fields []string
}

// CompilePattern turns a raw pattern into a Pattern. Literal text is matched
// verbatim, each placeholder becomes a greedy capture group and the result is
// anchored at both ends.
func CompilePattern(raw string) (*Pattern, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &InvalidPatternError{Pattern: raw, Offset: -1, Reason: "pattern is empty"}
	}

	var (
		expr   strings.Builder
		fields []string
		lit    strings.Builder
	)
	expr.WriteString(`^(?:`)

	flush := func() {
		if lit.Len() > 0 {
			expr.WriteString(regexp.QuoteMeta(lit.String()))
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			end := strings.IndexAny(raw[i+1:], "{}")
			if end < 0 || raw[i+1+end] != '}' {
				return nil, &InvalidPatternError{Pattern: raw, Offset: i, Reason: "unterminated placeholder"}
			}
			name := raw[i+1 : i+1+end]
			flush()
			expr.WriteString(`(.+)`)
			fields = append(fields, name)
			i += end + 1
		case '}':
			return nil, &InvalidPatternError{Pattern: raw, Offset: i, Reason: "unmatched closing brace"}
		default:
			lit.WriteByte(raw[i])
		}
	}
	flush()
	expr.WriteString(`)$`)

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, &InvalidPatternError{Pattern: raw, Offset: -1, Reason: err.Error()}
	}
	return &Pattern{raw: raw, re: re, fields: fields}, nil
}

// String returns the raw pattern.
func (p *Pattern) String() string { return p.raw }

// Fields returns the placeholder names in pattern order. Anonymous
// placeholders appear as empty strings.
func (p *Pattern) Fields() []string {
	out := make([]string, len(p.fields))
	copy(out, p.fields)
	return out
}

// Parameterized reports whether the pattern has at least one placeholder.
func (p *Pattern) Parameterized() bool { return len(p.fields) > 0 }

// Match reports whether utterance matches the whole pattern and returns the
// captured values in placeholder order.
func (p *Pattern) Match(utterance string) ([]string, bool) {
	m := p.re.FindStringSubmatch(utterance)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}
