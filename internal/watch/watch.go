// Package watch implements real-time source-file monitoring for
// `build --watch`: debounced, recursive fsnotify watching that
// triggers a rebuild callback once events settle. Event batches are
// allocated per flush rather than pooled; a CLI watch session is
// short-lived and rebuild batches small, so the allocation pressure
// that pooling answers doesn't apply at this scope.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// MaxPendingEvents bounds the debouncer's backlog before it starts
// dropping the oldest pending events.
const MaxPendingEvents = 1000

// EventType classifies one file-system change.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
	EventRenamed
)

// ChangeEvent is one debounced, deduplicated file change.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
}

// HandlerFunc is invoked with one debounced batch of changes.
type HandlerFunc func(events []ChangeEvent) error

// Watcher watches a set of paths and invokes registered handlers with
// debounced, deduplicated batches of changes.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	mu        sync.RWMutex
	handlers  []HandlerFunc
	stopped   bool
}

// New creates a Watcher with the given debounce delay.
func New(debounceDelay time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw: fsw,
		debouncer: &debouncer{
			delay:  debounceDelay,
			events: make(chan ChangeEvent, 100),
			output: make(chan []ChangeEvent, 10),
		},
	}
	return w, nil
}

// AddHandler registers a callback invoked for every debounced batch.
func (w *Watcher) AddHandler(h HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// AddRecursive adds root and every subdirectory beneath it to the
// watch set, rejecting any path outside the current working directory.
func (w *Watcher) AddRecursive(root string) error {
	cleanRoot, err := validatePath(root)
	if err != nil {
		return fmt.Errorf("watch: invalid root path: %w", err)
	}

	return filepath.Walk(cleanRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		cleanPath, err := validatePath(path)
		if err != nil {
			return nil
		}
		return w.fsw.Add(cleanPath)
	})
}

func validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if !strings.HasPrefix(absPath, cwd) {
		return "", fmt.Errorf("path %s is outside current working directory", path)
	}
	return cleanPath, nil
}

// Start launches the watcher's background goroutines until ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.debouncer.run(ctx)
	go w.dispatchLoop(ctx)
	go w.watchLoop(ctx)
}

// Stop closes the underlying fsnotify watcher. Safe to call once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.fsw.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(event)
		case <-w.fsw.Errors:
			// A watch error doesn't stop the loop; the next event
			// still reaches handlers.
		}
	}
}

func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	var modTime time.Time
	if err == nil {
		modTime = info.ModTime()
	}

	var kind EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		kind = EventCreated
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		kind = EventDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		kind = EventRenamed
	default:
		kind = EventModified
	}

	change := ChangeEvent{Type: kind, Path: event.Name, ModTime: modTime}

	select {
	case w.debouncer.events <- change:
	default:
		// Backlog full: drop rather than block the fsnotify reader.
	}
}

func (w *Watcher) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-w.debouncer.output:
			w.mu.RLock()
			handlers := w.handlers
			w.mu.RUnlock()
			for _, h := range handlers {
				_ = h(batch)
			}
		}
	}
}
