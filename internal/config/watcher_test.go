package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	path := writeConfig(t, `
sandbox:
  mode: subprocess
`)

	reloaded := make(chan *RuntimeConfig, 1)
	w := NewWatcher(path)
	w.debounce = 10 * time.Millisecond
	w.OnReload = func(cfg *RuntimeConfig) { reloaded <- cfg }
	w.OnError = func(err error) { t.Errorf("unexpected reload error: %v", err) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("sandbox:\n  mode: docker\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Sandbox.Mode != "docker" {
			t.Errorf("expected reloaded mode \"docker\", got %q", cfg.Sandbox.Mode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload within 2s")
	}
}

func TestWatcher_ReportsParseErrorsWithoutReload(t *testing.T) {
	path := writeConfig(t, `
sandbox:
  mode: subprocess
`)

	var gotErr error
	errCh := make(chan struct{}, 1)
	w := NewWatcher(path)
	w.debounce = 10 * time.Millisecond
	w.OnReload = func(cfg *RuntimeConfig) { t.Error("unexpected reload for invalid config") }
	w.OnError = func(err error) {
		gotErr = err
		errCh <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("sandbox:\n  mode: nope\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case <-errCh:
		if gotErr == nil {
			t.Fatal("expected a parse error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnError within 2s")
	}
}
