package command

import (
	"strconv"
	"strings"
)

// Template is a parsed response template.
//
// Supported slots:
//
//	{0}, {1}, ...  captures by position
//	{}             next capture (auto-numbered)
//	{name}         capture of the placeholder called name
//	{value}        always the first capture
//	{{ and }}      literal braces
//
// A ":format" or "!conv" suffix inside a slot is accepted and ignored. Slots
// that cannot be resolved are rendered verbatim.
type Template struct {
	raw   string
	parts []templatePart
}

type templatePart struct {
	literal string
	slot    bool
	field   string
	auto    bool
	text    string
}

// ParseTemplate parses a response template. It never fails: malformed brace
// sequences are kept as literal text.
func ParseTemplate(raw string) Template {
	t := Template{raw: raw}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, templatePart{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexAny(raw[i+1:], "{}")
			if end < 0 || raw[i+1+end] != '}' {
				lit.WriteByte(c)
				continue
			}
			body := raw[i+1 : i+1+end]
			field := body
			if cut := strings.IndexAny(field, ":!"); cut >= 0 {
				field = field[:cut]
			}
			flush()
			t.parts = append(t.parts, templatePart{
				slot:  true,
				field: field,
				auto:  field == "",
				text:  raw[i : i+end+2],
			})
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t
}

// String returns the template source.
func (t Template) String() string { return t.raw }

// Render fills the template. positional holds the captures in order and
// named maps placeholder names to captures.
func (t Template) Render(positional []string, named map[string]string) string {
	var out strings.Builder
	next := 0
	for _, p := range t.parts {
		if !p.slot {
			out.WriteString(p.literal)
			continue
		}
		if p.auto {
			if next < len(positional) {
				out.WriteString(positional[next])
			} else {
				out.WriteString(p.text)
			}
			next++
			continue
		}
		if v, ok := lookupField(p.field, positional, named); ok {
			out.WriteString(v)
		} else {
			out.WriteString(p.text)
		}
	}
	return out.String()
}

func lookupField(field string, positional []string, named map[string]string) (string, bool) {
	if idx, err := strconv.Atoi(field); err == nil {
		if idx >= 0 && idx < len(positional) {
			return positional[idx], true
		}
		return "", false
	}
	if field == "value" && len(positional) > 0 {
		return positional[0], true
	}
	v, ok := named[field]
	return v, ok
}
