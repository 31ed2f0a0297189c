// Package watcher recursively watches a directory tree and invalidates an
// Engine's cache prefix on every filesystem change. There is no
// debouncing or batching: invalidation is a cheap, idempotent call, so
// every event is handled as it arrives.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Invalidator is the subset of *engine.Engine this watcher depends on.
type Invalidator interface {
	InvalidatePrefix(prefix string)
}

// Watcher recursively watches a root directory and invalidates the
// engine's cache for every path that changes underneath it.
type Watcher struct {
	fsw    *fsnotify.Watcher
	eng    Invalidator
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a watcher bound to eng but does not start it; call Start
// with the root directory to watch.
func New(eng Invalidator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{fsw: fsw, eng: eng, ctx: ctx, cancel: cancel}, nil
}

// Start adds a recursive watch on root and begins processing events in a
// background goroutine.
func (w *Watcher) Start(root string) error {
	if err := w.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop cancels the event loop and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[realPath] {
			return filepath.SkipDir
		}
		visited[realPath] = true
		return w.fsw.Add(path)
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.eng.InvalidatePrefix(event.Name)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addWatches(event.Name)
		}
	}
}
