package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Watcher reloads the dataset when its file is written or replaced. The
// parent directory is watched so editors that rename over the file are seen.
// Events rejected by the limiter are left to the scheduler's freshness check.
type Watcher struct {
	path     string
	reloader Reloader
	limiter  *rate.Limiter
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	started  bool
	done     chan struct{}
}

func NewWatcher(path string, reloader Reloader, minInterval time.Duration, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	return &Watcher{
		path:     abs,
		reloader: reloader,
		limiter:  rate.NewLimiter(limit, 1),
		watcher:  fw,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("Watching dataset file", zap.String("path", w.path))
	w.started = true
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if !w.limiter.Allow() {
				w.logger.Debug("Dataset change throttled", zap.String("op", event.Op.String()))
				continue
			}
			w.reload(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Dataset watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reload(ctx context.Context, event fsnotify.Event) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	reloaded, err := w.reloader.ReloadIfModified(ctx)
	if err != nil {
		w.logger.Error("Reload after file change failed",
			zap.String("op", event.Op.String()),
			zap.Error(err))
		return
	}
	if reloaded {
		w.logger.Info("Dataset reloaded after file change", zap.String("op", event.Op.String()))
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}
