package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Reloader rebuilds state from a directory.
type Reloader interface {
	ReloadFrom(ctx context.Context, dir string) error
}

// CatalogWatcher reloads the catalog when a YAML file under the watched
// directory changes. Bursts of events are collapsed into one reload.
type CatalogWatcher struct {
	target   Reloader
	logger   zerolog.Logger
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	onReload []func(error)
}

// NewCatalogWatcher creates a watcher. Call Watch to start it.
func NewCatalogWatcher(target Reloader, logger zerolog.Logger) *CatalogWatcher {
	return &CatalogWatcher{
		target:   target,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}
}

// OnReload registers a callback receiving the outcome of every reload
// triggered by the watcher.
func (w *CatalogWatcher) OnReload(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Watch starts watching dir and its subdirectories, replacing any
// previously watched directory.
func (w *CatalogWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil && w.dir == dir {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if w.watcher != nil {
		w.watcher.Close()
	}
	w.watcher = watcher
	w.dir = dir

	go w.loop(watcher, dir)

	w.logger.Info().Str("dir", dir).Msg("watching catalog for changes")
	return nil
}

// Stop stops watching.
func (w *CatalogWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
}

func (w *CatalogWatcher) loop(watcher *fsnotify.Watcher, dir string) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watcher.Add(event.Name)
				}
			}
			if !isCatalogEvent(event) {
				continue
			}

			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("catalog file changed")

			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() { w.reload(dir) })
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("catalog watcher error")
		}
	}
}

func (w *CatalogWatcher) reload(dir string) {
	err := w.target.ReloadFrom(context.Background(), dir)
	if err != nil {
		w.logger.Error().Err(err).Msg("catalog reload failed, keeping current generation")
	}

	w.mu.Lock()
	listeners := slices.Clone(w.onReload)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
}

func isCatalogEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
