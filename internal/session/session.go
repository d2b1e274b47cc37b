// Package session runs the listening loop: it pulls utterances from an ASR
// source, passes them through the activation machine and publishes what
// happened on the event bus.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/normanking/voxcmd/internal/asr"
	"github.com/normanking/voxcmd/internal/bus"
	"github.com/normanking/voxcmd/internal/sound"
	"github.com/normanking/voxcmd/pkg/activation"
	"github.com/normanking/voxcmd/pkg/command"
)

// DefaultMaxSourceErrors is the number of consecutive source errors after
// which Run gives up.
const DefaultMaxSourceErrors = 10

// Config wires a Session.
type Config struct {
	// SessionID stamps every event. Generated when empty.
	SessionID  string
	Source     asr.Source
	Machine    *activation.Machine
	Bus        *bus.Bus
	Player     sound.Player
	Normalizer *asr.Normalizer
	Logger     zerolog.Logger
	// Now defaults to time.Now.
	Now             func() time.Time
	MaxSourceErrors int
}

// Session owns the activation machine and drives it from one goroutine.
type Session struct {
	id         string
	source     asr.Source
	machine    *activation.Machine
	bus        *bus.Bus
	player     sound.Player
	normalizer *asr.Normalizer
	log        zerolog.Logger
	now        func() time.Time
	maxErrors  int
}

// New creates a session. Source, Machine and Bus are required.
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: config is nil")
	}
	if cfg.Source == nil {
		return nil, errors.New("session: source is nil")
	}
	if cfg.Machine == nil {
		return nil, errors.New("session: machine is nil")
	}
	if cfg.Bus == nil {
		return nil, errors.New("session: bus is nil")
	}

	s := &Session{
		id:         cfg.SessionID,
		source:     cfg.Source,
		machine:    cfg.Machine,
		bus:        cfg.Bus,
		player:     cfg.Player,
		normalizer: cfg.Normalizer,
		log:        cfg.Logger,
		now:        cfg.Now,
		maxErrors:  cfg.MaxSourceErrors,
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.player == nil {
		s.player = sound.Nop{}
	}
	if s.normalizer == nil {
		s.normalizer = asr.NewNormalizer(language.English)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxErrors <= 0 {
		s.maxErrors = DefaultMaxSourceErrors
	}
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Run processes utterances until the source is exhausted, ctx is done or the
// source fails too many times in a row. A clean end of input returns nil.
// The machine is reset when Run returns.
func (s *Session) Run(ctx context.Context) error {
	if err := s.player.Init(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Sound playback unavailable")
	}
	cue := sound.Attach(s.player, s.bus)
	defer func() {
		_ = s.bus.Unsubscribe(cue)
		if err := s.player.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop sound player")
		}
	}()

	s.machine.OnStateChange(func(old, next activation.State) {
		s.log.Debug().Str("from", old.String()).Str("to", next.String()).Msg("Activation state changed")
	})
	defer s.machine.OnStateChange(nil)

	s.publish(bus.NewEvent(bus.EventSessionStart, s.id))
	s.log.Info().
		Str("session_id", s.id).
		Str("state", s.machine.State().String()).
		Strs("activation_words", s.machine.Words()).
		Dur("timeout", s.machine.Timeout()).
		Msg("Listening")

	err := s.loop(ctx)
	// An armed window never carries over into the next session.
	s.machine.Reset()

	end := bus.NewEvent(bus.EventSessionEnd, s.id)
	if err != nil {
		end.Error = err.Error()
	}
	s.publish(end)
	return err
}

func (s *Session) loop(ctx context.Context) error {
	failures := 0
	for {
		text, err := s.source.Next(ctx)
		switch {
		case err == nil:
			failures = 0
			s.Handle(text)
		case errors.Is(err, io.EOF):
			s.log.Info().Msg("Input ended")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failures++
			s.log.Warn().Err(err).Int("failures", failures).Msg("Failed to read utterance")
			if failures >= s.maxErrors {
				return fmt.Errorf("session: %d consecutive source errors: %w", failures, err)
			}
		}
	}
}

// Handle processes one raw utterance. It returns false when the utterance
// was empty after normalization and never reached the machine.
func (s *Session) Handle(raw string) (activation.Outcome, bool) {
	text := s.normalizer.Normalize(raw)
	if text == "" {
		return activation.Outcome{}, false
	}

	ev := s.event(bus.EventUtterance, text)
	s.publish(ev)

	out := s.machine.Handle(text, s.now())
	s.report(text, out)
	return out, true
}

func (s *Session) report(text string, out activation.Outcome) {
	switch out.Action {
	case activation.ActionIgnored:
		s.log.Debug().Str("text", text).Msg("Ignored: no activation word")
	case activation.ActionRepeated:
		s.log.Debug().Str("text", text).Msg("Ignoring repeated activation word")
	case activation.ActionActivated:
		s.log.Info().Str("text", text).Str("word", out.Word).Msg("Activation word detected")
	case activation.ActionTimedOut:
		s.log.Info().Str("text", text).Dur("elapsed", out.Delay).Msg("Timeout: no command received")
	case activation.ActionCommand:
		s.logResult(text, out)
	}

	for _, sig := range out.Signals {
		var ev bus.Event
		switch sig {
		case activation.SignalActivated:
			ev = s.event(bus.EventActivated, text)
			ev.Word = out.Word
			ev.Timeout = s.machine.Timeout()
		case activation.SignalCommandResult:
			ev = s.event(bus.EventCommandResult, text)
			ev.Result = out.Result
			ev.Delay = out.Delay
		case activation.SignalDeactivated:
			ev = s.event(bus.EventDeactivated, text)
		case activation.SignalTimeout:
			ev = s.event(bus.EventTimeout, text)
			ev.Delay = out.Delay
		default:
			continue
		}
		ev.State = out.Current.String()
		s.publish(ev)
	}
}

func (s *Session) logResult(text string, out activation.Outcome) {
	if out.Delay > 0 {
		s.log.Info().Str("text", text).Dur("delay", out.Delay).Msg("Received command")
	}
	res := out.Result
	if res == nil {
		return
	}
	switch res.Kind {
	case command.Fuzzy:
		s.log.Debug().Msgf("Fuzzy match: '%s' ≈ '%s' (confidence: %.2f)", text, res.PatternKey, res.Confidence)
	case command.Unrecognized:
		s.log.Info().Str("text", text).Msg("Unrecognized command")
		return
	}
	s.log.Info().
		Str("text", text).
		Str("kind", res.Kind.String()).
		Str("pattern", res.PatternKey).
		Str("response", res.Response).
		Msg("Command recognized")
}

func (s *Session) event(t bus.EventType, text string) bus.Event {
	ev := bus.NewEvent(t, s.id)
	ev.Utterance = text
	ev.State = s.machine.State().String()
	return ev
}

func (s *Session) publish(ev bus.Event) {
	if err := s.bus.Publish(ev); err != nil {
		s.log.Debug().Err(err).Str("type", string(ev.Type)).Msg("Event dropped")
	}
}
