package command

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{Path: "commands.json"})
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{Matcher: NewMatcher(nil)})
	assert.Error(t, err)
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ping": "pong"}`), 0o644))

	reg := mustCompile(t, Definition{Pattern: "ping", Response: "old"})
	m := NewMatcher(reg)

	var reloaded atomic.Int32
	w, err := NewWatcher(WatcherConfig{
		Path:     path,
		Matcher:  m,
		Logger:   zerolog.Nop(),
		OnReload: func(*Registry) { reloaded.Add(1) },
	})
	require.NoError(t, err)
	defer w.Close()

	got, err := w.Reload()
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, "pong", m.Resolve("ping").Response)
	assert.Equal(t, int32(1), reloaded.Load())
}

func TestWatcher_ReloadKeepsRegistryOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"{broken": "x"}`), 0o644))

	reg := mustCompile(t, Definition{Pattern: "ping", Response: "old"})
	m := NewMatcher(reg)

	w, err := NewWatcher(WatcherConfig{Path: path, Matcher: m, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Reload()
	require.ErrorIs(t, err, ErrRegistryEmpty)
	assert.Same(t, reg, m.Registry())
}

func TestWatcher_RunPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ping": "one"}`), 0o644))

	m := NewMatcher(mustCompile(t, Definition{Pattern: "ping", Response: "one"}))
	w, err := NewWatcher(WatcherConfig{Path: path, Matcher: m, Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte(`{"ping": "two"}`), 0o644))

	assert.Eventually(t, func() bool {
		return m.Resolve("ping").Response == "two"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
