package addon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type reloadCounter struct {
	calls chan struct{}
}

func (r *reloadCounter) Reload(context.Context) error {
	r.calls <- struct{}{}
	return nil
}

func TestWatcher_DebouncesReload(t *testing.T) {
	root := t.TempDir()
	addonDir := filepath.Join(root, "ui")
	require.NoError(t, os.MkdirAll(addonDir, 0o755))

	reloader := &reloadCounter{calls: make(chan struct{}, 10)}
	watcher := NewWatcher(reloader, []string{root}, 50*time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Give the watcher time to register the directories.
	time.Sleep(50 * time.Millisecond)

	manifest := filepath.Join(addonDir, "manifest.yaml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(manifest, []byte("name: ui\n"), 0o644))
	}

	select {
	case <-reloader.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reload after file changes")
	}

	// The burst collapses into a single reload.
	select {
	case <-reloader.calls:
		t.Error("expected only one reload for a burst of writes")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DefaultDebounce(t *testing.T) {
	w := NewWatcher(&reloadCounter{}, nil, 0, zaptest.NewLogger(t))
	assert.Equal(t, defaultDebounce, w.debounce)
}
