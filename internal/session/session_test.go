package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voxcmd/internal/bus"
	"github.com/normanking/voxcmd/internal/sound"
	"github.com/normanking/voxcmd/pkg/activation"
	"github.com/normanking/voxcmd/pkg/command"
)

// scriptedSource replays a fixed list of results, then returns io.EOF.
type scriptedSource struct {
	mu     sync.Mutex
	steps  []step
	closed bool
}

type step struct {
	text string
	err  error
}

func (s *scriptedSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return "", io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.text, st.err
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakePlayer struct {
	mu     sync.Mutex
	inited bool
	closed bool
	cues   []sound.Cue
}

func (p *fakePlayer) Init(context.Context) error {
	p.mu.Lock()
	p.inited = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Play(c sound.Cue) {
	p.mu.Lock()
	p.cues = append(p.cues, c)
	p.mu.Unlock()
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// clock advances by a fixed step on every call.
type clock struct {
	t    time.Time
	step time.Duration
}

func (c *clock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func newMatcher(t *testing.T) *command.Matcher {
	t.Helper()
	reg, err := command.Compile([]command.Definition{
		{Pattern: "lights on", Response: "Turning the lights on"},
		{Pattern: "open {app}", Response: "Opening {app}"},
	})
	require.NoError(t, err)
	return command.NewMatcher(reg)
}

func newSession(t *testing.T, cfg activation.Config, src *scriptedSource, now func() time.Time) (*Session, *bus.Bus, *fakePlayer) {
	t.Helper()
	m, err := activation.New(cfg, newMatcher(t))
	require.NoError(t, err)

	b := bus.NewBus()
	p := &fakePlayer{}
	s, err := New(&Config{
		SessionID: "test-session",
		Source:    src,
		Machine:   m,
		Bus:       b,
		Player:    p,
		Logger:    zerolog.Nop(),
		Now:       now,
	})
	require.NoError(t, err)
	return s, b, p
}

func eventTypes(events []bus.Event) []bus.EventType {
	types := make([]bus.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestNew_RequiresCollaborators(t *testing.T) {
	m, err := activation.New(activation.Config{}, newMatcher(t))
	require.NoError(t, err)

	_, err = New(nil)
	assert.Error(t, err)
	_, err = New(&Config{Machine: m, Bus: bus.NewBus()})
	assert.Error(t, err)
	_, err = New(&Config{Source: &scriptedSource{}, Bus: bus.NewBus()})
	assert.Error(t, err)
	_, err = New(&Config{Source: &scriptedSource{}, Machine: m})
	assert.Error(t, err)

	s, err := New(&Config{Source: &scriptedSource{}, Machine: m, Bus: bus.NewBus()})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
}

func TestSession_GatedFlow(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{text: "what time is it"},
		{text: "  Hey COMPUTER "},
		{text: "computer"},
		{text: "Lights   On"},
		{text: "   "},
	}}
	clk := &clock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), step: time.Second}
	s, b, p := newSession(t, activation.Config{Enabled: true, Words: []string{"computer"}, Timeout: 5 * time.Second}, src, clk.Now)

	require.NoError(t, s.Run(context.Background()))
	history := b.GetHistory()
	require.NoError(t, b.Close())

	assert.Equal(t, []bus.EventType{
		bus.EventSessionStart,
		bus.EventUtterance,
		bus.EventUtterance, bus.EventActivated,
		bus.EventUtterance,
		bus.EventUtterance, bus.EventCommandResult, bus.EventDeactivated,
		bus.EventSessionEnd,
	}, eventTypes(history))

	activated := history[3]
	assert.Equal(t, "hey computer", activated.Utterance)
	assert.Equal(t, "computer", activated.Word)
	assert.Equal(t, 5*time.Second, activated.Timeout)
	assert.Equal(t, "test-session", activated.SessionID)

	result := history[6]
	require.NotNil(t, result.Result)
	assert.Equal(t, command.Exact, result.Result.Kind)
	assert.Equal(t, "lights on", result.Result.Utterance)
	assert.Equal(t, "Turning the lights on", result.Result.Response)
	assert.Equal(t, 2*time.Second, result.Delay)
	assert.Equal(t, "idle", result.State)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.True(t, p.inited)
	assert.True(t, p.closed)
}

func TestSession_ResetsMachineAndLogsTransitions(t *testing.T) {
	m, err := activation.New(activation.Config{Enabled: true, Words: []string{"computer"}, Timeout: 5 * time.Second}, newMatcher(t))
	require.NoError(t, err)

	var logs bytes.Buffer
	b := bus.NewBus()
	s, err := New(&Config{
		Source:  &scriptedSource{steps: []step{{text: "computer"}}},
		Machine: m,
		Bus:     b,
		Logger:  zerolog.New(&logs).Level(zerolog.DebugLevel),
	})
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	require.NoError(t, b.Close())

	assert.Equal(t, activation.Idle(), m.State(), "input ended while armed")
	assert.Contains(t, logs.String(), `"from":"idle","to":"armed(`)
	assert.Contains(t, logs.String(), `"to":"idle","message":"Activation state changed"`)
}

func TestSession_Timeout(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{text: "computer"},
		{text: "lights on"},
		{text: "lights on"},
	}}
	clk := &clock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), step: 6 * time.Second}
	s, b, _ := newSession(t, activation.Config{Enabled: true, Words: []string{"computer"}, Timeout: 5 * time.Second}, src, clk.Now)

	require.NoError(t, s.Run(context.Background()))
	history := b.GetHistory()
	require.NoError(t, b.Close())

	assert.Equal(t, []bus.EventType{
		bus.EventSessionStart,
		bus.EventUtterance, bus.EventActivated,
		bus.EventUtterance, bus.EventTimeout,
		bus.EventUtterance,
		bus.EventSessionEnd,
	}, eventTypes(history))
	assert.Equal(t, 6*time.Second, history[4].Delay)
}

func TestSession_UngatedParameterized(t *testing.T) {
	src := &scriptedSource{}
	s, b, _ := newSession(t, activation.Config{Enabled: false}, src, nil)

	out, ok := s.Handle("Open Firefox")
	require.True(t, ok)
	assert.Equal(t, activation.ActionCommand, out.Action)
	require.NotNil(t, out.Result)
	assert.Equal(t, "Opening firefox", out.Result.Response)
	assert.Equal(t, map[string]string{"app": "firefox"}, out.Result.Named)

	_, ok = s.Handle("\t ")
	assert.False(t, ok)

	assert.Equal(t, []bus.EventType{bus.EventUtterance, bus.EventCommandResult}, eventTypes(b.GetHistory()))
	require.NoError(t, b.Close())
}

func TestSession_SoundCues(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{text: "computer"},
		{text: "lights on"},
	}}
	s, b, p := newSession(t, activation.Config{Enabled: true, Words: []string{"computer"}}, src, nil)

	// The cue subscription is removed when Run returns, so observe cues
	// through a second wildcard subscriber that outlives it.
	var mu sync.Mutex
	var cues []sound.Cue
	b.Subscribe("", func(e bus.Event) {
		if c, ok := sound.CueFor(e.Type); ok {
			mu.Lock()
			cues = append(cues, c)
			mu.Unlock()
		}
	})

	require.NoError(t, s.Run(context.Background()))
	require.NoError(t, b.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []sound.Cue{sound.CueActivation, sound.CueDeactivation}, cues)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.LessOrEqual(t, len(p.cues), 2)
}

func TestSession_SourceErrors(t *testing.T) {
	boom := errors.New("connection refused")
	src := &scriptedSource{steps: []step{
		{err: boom},
		{err: boom},
		{text: "lights on"},
		{err: boom},
		{err: boom},
		{err: boom},
	}}
	m, err := activation.New(activation.Config{Enabled: false}, newMatcher(t))
	require.NoError(t, err)
	b := bus.NewBus()
	s, err := New(&Config{Source: src, Machine: m, Bus: b, Logger: zerolog.Nop(), MaxSourceErrors: 3})
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "3 consecutive source errors")

	history := b.GetHistory()
	require.NoError(t, b.Close())
	last := history[len(history)-1]
	assert.Equal(t, bus.EventSessionEnd, last.Type)
	assert.NotEmpty(t, last.Error)
}

func TestSession_ContextCancel(t *testing.T) {
	src := &scriptedSource{steps: []step{{text: "lights on"}}}
	s, b, _ := newSession(t, activation.Config{Enabled: false}, src, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}
