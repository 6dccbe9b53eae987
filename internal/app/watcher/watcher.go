// Package watcher turns directory contents and filesystem change
// notifications into a stream of unit-level Status events on the bus
// (§4.2).
package watcher

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"jigctl/internal/app/bus"
	"jigctl/internal/app/unit"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// Watcher holds a set of watched root directories and republishes changes
// beneath them as unit Status events.
type Watcher interface {
	// AddPath enumerates dir's direct children, emitting Added for every
	// recognised unit file, then installs a recursive change subscription.
	AddPath(dir string) error
	Close() error
}

type watcher struct {
	cfg     *config.Config
	bus     bus.EventBus
	fsw     *fsnotify.Watcher
	matcher Matcher
	log     logger.Logger

	mu     sync.RWMutex
	roots  map[string]struct{}
	closed bool
}

// NewWatcher creates a Watcher and starts its fsnotify event loop.
func NewWatcher(cfg *config.Config, b bus.EventBus, log logger.Logger) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m, err := NewMatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{
		cfg:     cfg,
		bus:     b,
		fsw:     fsw,
		matcher: m,
		log:     log.WithComponent("WATCHER"),
		roots:   map[string]struct{}{},
	}

	go w.processEvents()

	return w, nil
}

func (w *watcher) AddPath(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if _, exists := w.roots[absDir]; exists {
		return nil
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if w.matcher.Skip(entry.Name()) {
			continue
		}

		name, ok := unit.FromPath(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(absDir, entry.Name())
		w.bus.Publish(bus.StatusEvent(name, bus.Added(path)))
	}

	if err := w.addRecursive(absDir); err != nil {
		return err
	}

	w.roots[absDir] = struct{}{}
	w.log.Info().Str("dir", absDir).Msg("watching directory")

	return nil
}

// addRecursive installs an fsnotify watch on dir and every subdirectory so
// that new files appearing in nested directories are also observed (§4.2:
// "installs a recursive change subscription on dir").
func (w *watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if d.Name() != filepath.Base(dir) && w.matcher.Skip(d.Name()) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			w.log.Warn().Err(err).Str("dir", path).Msg("failed to watch directory")
		}

		return nil
	})
}

func (w *watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.roots = map[string]struct{}{}

	return w.fsw.Close()
}

func (w *watcher) processEvents() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.log.Error().Err(err).Msg("watcher backend error")
		}
	}
}

// handleEvent maps a single fsnotify event to an Added/Updated/Removed
// status, discarding anything whose path doesn't resolve to a UnitName
// (§4.2).
func (w *watcher) handleEvent(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)

	if w.matcher.Skip(base) {
		return
	}

	name, ok := unit.FromPath(base)
	if !ok {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.handleCreate(ev.Name, name)
	case ev.Has(fsnotify.Write):
		w.bus.Publish(bus.StatusEvent(name, bus.Updated(ev.Name)))
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.bus.Publish(bus.StatusEvent(name, bus.Removed(ev.Name)))
	}
}

func (w *watcher) handleCreate(path string, name unit.Name) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		w.mu.RLock()
		closed := w.closed
		w.mu.RUnlock()

		if !closed {
			if err := w.addRecursive(path); err != nil {
				w.log.Warn().Err(err).Str("dir", path).Msg("failed to watch new directory")
			}
		}

		return
	}

	w.bus.Publish(bus.StatusEvent(name, bus.Added(path)))
}
