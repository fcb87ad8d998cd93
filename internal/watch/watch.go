// Package watch adapts the teacher's (oarkflow/supervisor) fsnotify-based
// debounced file watcher from env-file reload to certificate-rotation
// detection: changes under each watched directory are debounced and
// passed, with the directory's logical root name, to one callback. The
// run command watches only tls_path/client and restarts the daemon on a
// change there (SPEC_FULL.md §11).
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 500 * time.Millisecond

// Watcher debounces fsnotify events across a set of watched directories
// and dispatches them to a single callback per watched root.
type Watcher struct {
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	onEvent func(root, path string)
	roots   map[string]string // watched directory -> logical root name
	done    chan struct{}
}

// New creates a Watcher. onEvent is invoked (debounced per root) after a
// write/create/rename under any added root.
func New(onEvent func(root, path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		timers:  map[string]*time.Timer{},
		onEvent: onEvent,
		roots:   map[string]string{},
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// AddDir watches dir (non-recursively) under the logical name root —
// e.g. "tls" for tls_path/client, "config" for the settings file's
// directory.
func (w *Watcher) AddDir(root, dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.roots[dir] = root
	w.mu.Unlock()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce(filepath.Dir(event.Name), event.Name)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) debounce(dir, path string) {
	w.mu.Lock()
	root, ok := w.roots[dir]
	if !ok {
		w.mu.Unlock()
		return
	}
	if t, exists := w.timers[dir]; exists {
		t.Stop()
	}
	w.timers[dir] = time.AfterFunc(debounceDelay, func() {
		if w.onEvent != nil {
			w.onEvent(root, path)
		}
	})
	w.mu.Unlock()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
