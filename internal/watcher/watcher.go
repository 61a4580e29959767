// Package watcher monitors gallery folders for file changes so the catalog
// can be rescanned without user action.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

const debounceInterval = 2 * time.Second

// FSWatcher watches folders recursively through fsnotify. Rapid event
// bursts for the same path (partial writes, camera imports) are debounced
// so the callback fires once per settled file.
type FSWatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	callback func(path string, event EventType)
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
}

func NewFSWatcher(logger *slog.Logger) (*FSWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FSWatcher{
		logger:  logger,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds path and its subdirectories to the watch set. The event loop
// starts on the first call.
func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	if err := w.addRecursive(path); err != nil {
		return err
	}

	w.mu.Lock()
	if !w.started {
		w.started = true
		go w.run(ctx)
	}
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("watching folder", "path", path)
	}
	return nil
}

func (w *FSWatcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != root {
				return filepath.SkipDir
			}
			return w.fsw.Add(p)
		}
		return nil
	})
}

func (w *FSWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}
}

func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	// New directories need their own watch before files land in them.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(event.Name)
			return
		}
	}

	var kind EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		kind = EventCreate
	case event.Op.Has(fsnotify.Write):
		kind = EventModify
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		kind = EventDelete
	default:
		return
	}

	w.debounce(event.Name, kind)
}

func (w *FSWatcher) debounce(path string, kind EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceInterval, func() {
		w.mu.Lock()
		delete(w.pending, path)
		fn := w.callback
		w.mu.Unlock()

		if fn != nil {
			fn(path, kind)
		}
	})
}

// StubWatcher is a no-op Watcher for hosts where fsnotify is unavailable
// or watching is disabled.
type StubWatcher struct {
	logger   *slog.Logger
	mu       sync.Mutex
	callback func(path string, event EventType)
}

func NewStubWatcher(logger *slog.Logger) *StubWatcher {
	return &StubWatcher{logger: logger}
}

func (w *StubWatcher) Watch(ctx context.Context, path string) error {
	if w.logger != nil {
		w.logger.Info("watching disabled, folder will not auto-rescan", "path", path)
	}
	return nil
}

func (w *StubWatcher) Stop() error {
	return nil
}

func (w *StubWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Emit invokes the registered callback directly. Test helper.
func (w *StubWatcher) Emit(path string, event EventType) {
	w.mu.Lock()
	fn := w.callback
	w.mu.Unlock()
	if fn != nil {
		fn(path, event)
	}
}
