// Package watch monitors the pipeline definition file and reports writes
// so the orchestrator can hot-reload it between runs.
package watch

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called after the definition file changed and the
// debounce window elapsed
type ChangeCallback func(path string)

// DefinitionWatcher monitors a single pipeline definition file
type DefinitionWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	callback ChangeCallback
	debounce time.Duration

	timer  *time.Timer
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDefinitionWatcher creates a watcher for the given definition file.
// The parent directory is watched so editors that replace the file
// (write to temp, rename over) are still observed.
func NewDefinitionWatcher(path string, callback ChangeCallback) (*DefinitionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &DefinitionWatcher{
		watcher:  watcher,
		path:     abs,
		callback: callback,
		debounce: 500 * time.Millisecond, // Debounce rapid changes
	}, nil
}

// SetDebounce sets the debounce duration for batching file changes
func (w *DefinitionWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins watching for file changes
func (w *DefinitionWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
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
				log.Printf("[watch] error: %v", err)
			}
		}
	}()
}

// Stop stops watching for file changes
func (w *DefinitionWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}

func (w *DefinitionWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Reset or start debounce timer
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *DefinitionWatcher) flush() {
	if w.callback != nil {
		w.callback(w.path)
	}
}
