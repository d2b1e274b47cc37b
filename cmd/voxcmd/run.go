package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/normanking/voxcmd/internal/asr"
	"github.com/normanking/voxcmd/internal/bus"
	"github.com/normanking/voxcmd/internal/config"
	"github.com/normanking/voxcmd/internal/console"
	"github.com/normanking/voxcmd/internal/metrics"
	"github.com/normanking/voxcmd/internal/session"
	"github.com/normanking/voxcmd/internal/sound"
	"github.com/normanking/voxcmd/pkg/activation"
	"github.com/normanking/voxcmd/pkg/command"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Listen for utterances (default)",
		Long: `Run reads utterances from the configured source (stdin or a WebSocket
transcript feed), gates them on the activation words and answers commands.`,
		RunE: a.runListen,
	}
}

// runListen wires the session and blocks until input ends or the process is
// interrupted.
func (a *app) runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := a.listen(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.out, "\n🛑 Stopping recognition...")
		return nil
	}
	return err
}

func (a *app) listen(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger("main")

	log.Info().Str("language", cfg.Language).Msg("Language selected")
	if cfg.UseActivation {
		log.Info().Strs("activation_words", cfg.ActivationWords).Float64("timeout_s", cfg.ActivationTimeout).Msg("Activation enabled")
	} else {
		log.Info().Msg("Activation disabled: every utterance is a command")
	}

	reg, err := loadRegistry(afero.NewOsFs(), cfg.Commands.Path, a.logger("commands"))
	if err != nil {
		return err
	}
	matcher := command.NewMatcher(reg, command.WithFuzzyCutoff(cfg.Commands.FuzzyCutoff))

	machine, err := activation.New(cfg.Activation(), matcher)
	if err != nil {
		return err
	}

	// ───────────────────────────────────────────────────────────────────────────
	// History and metrics
	// ───────────────────────────────────────────────────────────────────────────

	var store *metrics.Store
	if cfg.History.Enabled {
		store, err = metrics.OpenStore(cfg.History.Path)
		if err != nil {
			log.Warn().Err(err).Msg("Command history disabled")
			store = nil
		} else {
			defer store.Close()
		}
	}

	var mtr *metrics.Metrics
	if cfg.Metrics.Enabled {
		mtr = metrics.NewMetrics()
		mtr.RegistryCommands.Set(float64(reg.Len()))
		go func() {
			if err := mtr.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Warn().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server stopped")
			}
		}()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics on /metrics")
	}

	// The bus is closed before the store so queued history is written.
	eventBus := bus.NewBus()
	defer eventBus.Close()

	if store != nil || mtr != nil {
		metrics.NewCollector(eventBus, mtr, store, a.logger("metrics")).Start()
	}

	console.New(console.Config{
		Out:          a.out,
		Language:     cfg.Language,
		WordsPerLine: cfg.Output.WordsPerLine,
		Color:        cfg.Output.Color,
	}).Attach(eventBus)

	// ───────────────────────────────────────────────────────────────────────────
	// Commands hot reload
	// ───────────────────────────────────────────────────────────────────────────

	if cfg.Commands.Watch {
		w, err := command.NewWatcher(command.WatcherConfig{
			Path:    cfg.Commands.Path,
			Matcher: matcher,
			Logger:  a.logger("commands"),
			OnReload: func(r *command.Registry) {
				ev := bus.NewEvent(bus.EventRegistryReloaded, "")
				ev.Commands = r.Len()
				_ = eventBus.Publish(ev)
			},
		})
		if err != nil {
			log.Warn().Err(err).Msg("Commands file will not be reloaded")
		} else {
			defer w.Close()
			go func() {
				if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Msg("Commands watcher stopped")
				}
			}()
		}
	}

	// ───────────────────────────────────────────────────────────────────────────
	// Session
	// ───────────────────────────────────────────────────────────────────────────

	src, err := a.newSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	player, err := a.newPlayer(cfg)
	if err != nil {
		return err
	}

	sess, err := session.New(&session.Config{
		Source:          src,
		Machine:         machine,
		Bus:             eventBus,
		Player:          player,
		Normalizer:      asr.NewNormalizer(cfg.LanguageTag()),
		Logger:          a.logger("session"),
		MaxSourceErrors: cfg.ASR.MaxErrors,
	})
	if err != nil {
		return err
	}
	return sess.Run(ctx)
}

func (a *app) newSource(cfg *config.Config) (asr.Source, error) {
	switch strings.ToLower(cfg.ASR.Source) {
	case config.SourceWebSocket:
		src, err := asr.NewWebSocketSource(asr.WebSocketConfig{
			Endpoint:       cfg.ASR.Endpoint,
			ReconnectDelay: cfg.ASR.ReconnectDelay,
			Logger:         a.logger("asr"),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return asr.NewLineSource(a.in), nil
	}
}

func (a *app) newPlayer(cfg *config.Config) (sound.Player, error) {
	if !cfg.Sound.Enabled {
		return sound.Nop{}, nil
	}
	return sound.NewWavPlayer(&sound.Config{
		Dir: cfg.Sound.Dir,
		Files: map[sound.Cue]string{
			sound.CueActivation:   cfg.Sound.Activation,
			sound.CueDeactivation: cfg.Sound.Deactivation,
		},
		Command: cfg.Sound.Player,
		Logger:  a.logger("sound"),
	})
}
