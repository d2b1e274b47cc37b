// Package sound plays the activation and deactivation cues.
//
// Nothing is initialised at import time. The session calls Init when its
// loop starts and Close when it ends. Playback is fire-and-forget and a
// failure is only ever a warning.
package sound

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/normanking/voxcmd/internal/bus"
)

// Cue identifies a sound effect.
type Cue string

const (
	CueActivation   Cue = "activation"
	CueDeactivation Cue = "deactivation"
)

// CueFor maps a session event to the cue it should play.
func CueFor(t bus.EventType) (Cue, bool) {
	switch t {
	case bus.EventActivated:
		return CueActivation, true
	case bus.EventDeactivated, bus.EventTimeout:
		return CueDeactivation, true
	}
	return "", false
}

// Player plays cues.
type Player interface {
	Init(ctx context.Context) error
	Play(cue Cue)
	Close() error
}

// Runner starts an external command and waits for it.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Config configures a WavPlayer.
type Config struct {
	// Fs is used to validate sound files. Defaults to the OS filesystem.
	Fs  afero.Fs
	Dir string
	// Files maps cues to file names relative to Dir.
	Files map[Cue]string
	// Command is the player command line, e.g. "aplay -q". The file path is
	// appended. Empty picks afplay on macOS and aplay elsewhere.
	Command string
	Logger  zerolog.Logger
	// Runner defaults to running the command with os/exec.
	Runner Runner
}

type clip struct {
	path     string
	duration time.Duration
}

// WavPlayer validates WAV cues at Init and plays them through an external
// command.
type WavPlayer struct {
	fs      afero.Fs
	dir     string
	files   map[Cue]string
	command []string
	log     zerolog.Logger
	run     Runner

	mu     sync.RWMutex
	clips  map[Cue]clip
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWavPlayer creates a player. No file is touched until Init.
func NewWavPlayer(cfg *Config) (*WavPlayer, error) {
	if cfg == nil {
		return nil, errors.New("sound: config is nil")
	}

	p := &WavPlayer{
		fs:    cfg.Fs,
		dir:   cfg.Dir,
		files: cfg.Files,
		log:   cfg.Logger,
		run:   cfg.Runner,
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.run == nil {
		p.run = execRunner
	}
	if p.files == nil {
		p.files = map[Cue]string{
			CueActivation:   "activation.wav",
			CueDeactivation: "deactivation.wav",
		}
	}

	p.command = strings.Fields(cfg.Command)
	if len(p.command) == 0 {
		p.command = defaultCommand()
	}
	return p, nil
}

func defaultCommand() []string {
	if runtime.GOOS == "darwin" {
		return []string{"afplay"}
	}
	return []string{"aplay", "-q"}
}

// Init decodes every configured cue. Cues that are missing or not valid WAV
// files are logged and skipped at playback time.
func (p *WavPlayer) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.clips = make(map[Cue]clip, len(p.files))

	for cue, name := range p.files {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.dir, name)
		}
		d, err := p.probe(path)
		if err != nil {
			p.log.Warn().Err(err).Str("cue", string(cue)).Msg("Sound unavailable")
			continue
		}
		p.clips[cue] = clip{path: path, duration: d}
		p.log.Debug().Str("cue", string(cue)).Str("path", path).Dur("duration", d).Msg("Sound loaded")
	}
	return nil
}

func (p *WavPlayer) probe(path string) (time.Duration, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return 0, fmt.Errorf("%s: missing sample rate", path)
	}
	frames := buf.NumFrames()
	return time.Duration(frames) * time.Second / time.Duration(buf.Format.SampleRate), nil
}

// Available reports whether cue passed validation.
func (p *WavPlayer) Available(cue Cue) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.clips[cue]
	return ok
}

// Play starts playback of cue in the background.
func (p *WavPlayer) Play(cue Cue) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ctx == nil || p.ctx.Err() != nil {
		p.log.Warn().Str("cue", string(cue)).Msg("Failed to play sound: player not running")
		return
	}
	c, ok := p.clips[cue]
	if !ok {
		p.log.Warn().Str("cue", string(cue)).Msg("Failed to play sound: not loaded")
		return
	}

	args := append(append([]string{}, p.command[1:]...), c.path)
	ctx, cancel := context.WithTimeout(p.ctx, c.duration+2*time.Second)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		if err := p.run(ctx, p.command[0], args...); err != nil && !errors.Is(ctx.Err(), context.Canceled) {
			p.log.Warn().Err(err).Str("cue", string(cue)).Msg("Failed to play sound")
		}
	}()
}

// Close stops playback and waits for running players to exit.
func (p *WavPlayer) Close() error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Attach subscribes any Player to the cue events of b.
func Attach(p Player, b *bus.Bus) bus.SubscriptionID {
	return b.Subscribe("", func(e bus.Event) {
		if cue, ok := CueFor(e.Type); ok {
			p.Play(cue)
		}
	})
}

// Nop is a Player that does nothing, used when sounds are disabled.
type Nop struct{}

func (Nop) Init(context.Context) error { return nil }
func (Nop) Play(Cue)                   {}
func (Nop) Close() error               { return nil }
