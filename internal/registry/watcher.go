package registry

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	. "github.com/fixxit/fixxit/internal/logging"
)

// Watcher monitors the enablement file and reloads the registry config
// when it changes, so tools can be toggled without restarting.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopCh   chan struct{}
	mu       sync.Mutex
	pending  *time.Timer
	stopped  bool
}

// NewWatcher creates a watcher for the registry's enablement file.
func NewWatcher(r *Registry, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	// Watch the containing directory: editors replace files on save and
	// a watch on the file itself is lost after rename.
	dir := filepath.Dir(r.configPath)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		registry: r,
		watcher:  fsWatcher,
		debounce: debounce,
		stopCh:   make(chan struct{}),
	}
	L_debug("watching tool config", "path", r.configPath)
	return w, nil
}

// Start begins watching. Spawns a goroutine internally.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			L_warn("tool config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.registry.configPath) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		L_info("tool config changed, reloading", "path", w.registry.configPath)
		if err := w.registry.ReloadConfig(); err != nil {
			L_warn("tool config reload failed", "error", err)
		}
	})
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	if w.pending != nil {
		w.pending.Stop()
	}
	w.watcher.Close()
}
