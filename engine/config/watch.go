package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/Carmen-Shannon/hikari/engine/timing"
	"github.com/fsnotify/fsnotify"
)

type watcher struct {
	path   string
	queue  timing.Queue
	apply  func(Config)
	logger *slog.Logger

	fs   *fsnotify.Watcher
	last Config
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Watcher reloads a config file when it changes on disk.
type Watcher interface {
	// Close stops watching. Reloads already posted to the queue still run.
	Close()
}

var _ Watcher = &watcher{}

// Watch starts watching the config file at path. Every write that produces a valid configuration different
// from the last one is posted to queue, so apply runs on whichever goroutine drains it. Invalid files are
// logged and ignored.
//
// The parent directory is watched rather than the file, so editors that save through a rename keep working.
//
// Parameters:
//   - ctx: stops the watcher when cancelled
//   - path: the config file
//   - initial: the configuration currently in effect
//   - queue: the queue reloads are posted to
//   - apply: receives each reloaded configuration
//   - opts: variadic list of WatchBuilderOption functions
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the directory cannot be watched
func Watch(ctx context.Context, path string, initial Config, queue timing.Queue, apply func(Config), opts ...WatchBuilderOption) (Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	w := &watcher{
		path:   abs,
		queue:  queue,
		apply:  apply,
		logger: slog.Default(),
		last:   initial,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "config", "path", abs)

	w.fs, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := w.fs.Add(filepath.Dir(abs)); err != nil {
		w.fs.Close()
		return nil, fmt.Errorf("config: %w", err)
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

func (w *watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring invalid config", "error", err)
		return
	}
	if reflect.DeepEqual(cfg, w.last) {
		return
	}
	w.last = cfg
	w.logger.Info("config reloaded")
	w.queue.PostState(func(state any) {
		w.apply(state.(Config))
	}, cfg)
}

func (w *watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.fs.Close()
		w.wg.Wait()
	})
}
