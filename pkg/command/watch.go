package command

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Watcher reloads a commands file when it changes on disk and installs the
// new registry into a Matcher. A reload that fails, or that leaves no usable
// command, keeps the previous registry.
type Watcher struct {
	fs       afero.Fs
	path     string
	matcher  *Matcher
	log      zerolog.Logger
	onReload func(*Registry)

	watcher *fsnotify.Watcher
	once    sync.Once
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path of the commands file.
	Path string
	// Fs is used to read the file. Defaults to the OS filesystem.
	Fs      afero.Fs
	Matcher *Matcher
	Logger  zerolog.Logger
	// OnReload is called after a new registry has been installed.
	OnReload func(*Registry)
}

// NewWatcher starts watching the directory containing cfg.Path. Call Run to
// process events.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Matcher == nil {
		return nil, errors.New("command watcher: matcher is nil")
	}
	if cfg.Path == "" {
		return nil, errors.New("command watcher: path is empty")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("command watcher: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("command watcher: %w", err)
	}
	// Editors often replace the file instead of writing it in place, so the
	// directory is watched rather than the file.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("command watcher: watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		fs:       cfg.Fs,
		path:     path,
		matcher:  cfg.Matcher,
		log:      cfg.Logger,
		onReload: cfg.OnReload,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if _, err := w.Reload(); err != nil {
					w.log.Error().Err(err).Str("path", w.path).Msg("Commands reload failed, keeping previous registry")
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Commands watcher error")
		}
	}
}

// Reload reads and compiles the commands file and installs the result.
func (w *Watcher) Reload() (*Registry, error) {
	defs, err := Load(w.fs, w.path)
	if err != nil {
		return nil, err
	}
	reg, err := Compile(defs)
	if err != nil {
		return nil, err
	}
	for _, r := range reg.Rejected() {
		w.log.Warn().Err(r).Msg("Skipping command")
	}
	w.matcher.Swap(reg)
	w.log.Info().Int("commands", reg.Len()).Str("path", w.path).Msg("Commands reloaded")
	if w.onReload != nil {
		w.onReload(reg)
	}
	return reg, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() { err = w.watcher.Close() })
	return err
}
