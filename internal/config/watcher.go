package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events a single save can produce
// (editors often write, chmod, and rename in quick succession) into one
// reload.
const watchDebounce = 200 * time.Millisecond

// Watcher reloads a RuntimeConfig from disk whenever its source file
// changes, handing each successfully parsed config to OnReload. Parse
// errors are reported via OnError and leave the last-good config in place.
type Watcher struct {
	path     string
	OnReload func(*RuntimeConfig)
	OnError  func(error)

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	debounce time.Duration
}

// NewWatcher builds a Watcher for path. Call Start to begin watching.
func NewWatcher(path string) *Watcher {
	return &Watcher{path: path, debounce: watchDebounce}
}

// Start begins watching path for changes, reloading and invoking OnReload
// (or OnError on a parse failure) for each change. It returns once the
// underlying file watch is established; reloads happen on a background
// goroutine until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = fw
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(watchCtx, fw)
	return nil
}

// Stop halts the watch and releases the underlying file descriptor.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			if w.OnError != nil {
				w.OnError(err)
			}
			return
		}
		if w.OnReload != nil {
			w.OnReload(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, reload)
		case _, ok := <-fw.Errors:
			if !ok {
				return
			}
		}
	}
}
