// Package console prints session events for the person talking to the
// assistant. Each message is prefixed with the language tag and wrapped at a
// fixed number of words per line.
package console

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/normanking/voxcmd/internal/bus"
)

// DefaultWordsPerLine is the wrap width used when none is configured.
const DefaultWordsPerLine = 10

// Config configures a Printer.
type Config struct {
	Out io.Writer
	// Language is shown in the line prefix, e.g. "EN".
	Language     string
	WordsPerLine int
	// Color enables ANSI styling. When false the output is plain text.
	Color bool
}

// Printer renders bus events as console messages. It is safe for
// concurrent use.
type Printer struct {
	out      io.Writer
	prefix   string
	perLine  int
	renderer *lipgloss.Renderer

	prefixStyle  lipgloss.Style
	noticeStyle  lipgloss.Style
	successStyle lipgloss.Style
	failStyle    lipgloss.Style
	mutedStyle   lipgloss.Style

	mu sync.Mutex
}

// New creates a Printer.
func New(cfg Config) *Printer {
	if cfg.WordsPerLine <= 0 {
		cfg.WordsPerLine = DefaultWordsPerLine
	}
	if cfg.Language == "" {
		cfg.Language = "EN"
	}

	r := lipgloss.NewRenderer(cfg.Out)
	if cfg.Color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		out:          cfg.Out,
		prefix:       fmt.Sprintf("🗣️ [%s]", strings.ToUpper(cfg.Language)),
		perLine:      cfg.WordsPerLine,
		renderer:     r,
		prefixStyle:  r.NewStyle().Foreground(lipgloss.Color("245")),
		noticeStyle:  r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		successStyle: r.NewStyle().Foreground(lipgloss.Color("42")),
		failStyle:    r.NewStyle().Foreground(lipgloss.Color("203")),
		mutedStyle:   r.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
	}
}

// Attach subscribes the printer to every event on b.
func (p *Printer) Attach(b *bus.Bus) bus.SubscriptionID {
	return b.Subscribe("", p.HandleEvent)
}

// HandleEvent prints the message for one event. Events without a console
// message are ignored.
func (p *Printer) HandleEvent(e bus.Event) {
	switch e.Type {
	case bus.EventActivated:
		p.Print(p.noticeStyle, "🔔 Activation word detected: "+e.Utterance)
		p.Print(p.mutedStyle, fmt.Sprintf("🕒 Waiting for command (timeout %s s)…", seconds(e.Timeout)))

	case bus.EventTimeout:
		p.Print(p.noticeStyle, "⏱️ Timeout: No command received.")

	case bus.EventCommandResult:
		if e.Delay > 0 {
			p.line(p.mutedStyle, fmt.Sprintf("⏱️ Delay: %s seconds", seconds(e.Delay)))
		}
		res := e.Result
		if res == nil {
			return
		}
		if res.Recognized() {
			p.Print(p.successStyle, fmt.Sprintf("✅ Command recognized: %s → %s", res.Utterance, res.Response))
		} else {
			p.Print(p.failStyle, "❌ Unrecognized: "+res.Utterance)
		}
	}
}

// Print writes text wrapped at the configured words per line. Every line
// carries the language prefix.
func (p *Printer) Print(style lipgloss.Style, text string) {
	for _, chunk := range Wrap(text, p.perLine) {
		p.line(style, chunk)
	}
}

func (p *Printer) line(style lipgloss.Style, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", p.prefixStyle.Render(p.prefix), style.Render(text))
}

// Wrap splits text into chunks of at most n words. Whitespace between words
// is collapsed. Empty text yields no chunks.
func Wrap(text string, n int) []string {
	if n <= 0 {
		n = DefaultWordsPerLine
	}
	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+n-1)/n)
	for i := 0; i < len(words); i += n {
		end := min(i+n, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// seconds formats d in seconds rounded to two decimals, without trailing
// zeros.
func seconds(d time.Duration) string {
	s := math.Round(d.Seconds()*100) / 100
	return strconv.FormatFloat(s, 'f', -1, 64)
}
