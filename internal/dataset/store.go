package dataset

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

const loadTimeout = 2 * time.Minute

type DatasetLoader interface {
	Load(ctx context.Context, source string) (*models.Dataset, error)
}

// Store owns the process-wide dataset. The snapshot is loaded on first use
// and replaced wholesale on Reload; a snapshot is never mutated.
type Store struct {
	loader DatasetLoader
	source string
	logger *zap.Logger
	group  singleflight.Group

	mu       sync.RWMutex
	current  *models.Dataset
	version  uint64
	modTime  time.Time
	lastLoad time.Time
	lastErr  error
}

func NewStore(loader DatasetLoader, source string, logger *zap.Logger) *Store {
	return &Store{
		loader: loader,
		source: source,
		logger: logger,
	}
}

func (s *Store) Source() string {
	return s.source
}

// Get returns the current snapshot and its version, loading it if needed.
// Concurrent first callers share a single load. Failed loads are not cached.
func (s *Store) Get(ctx context.Context) (*models.Dataset, uint64, error) {
	s.mu.RLock()
	ds, version := s.current, s.version
	s.mu.RUnlock()

	if ds != nil {
		return ds, version, nil
	}

	if err := s.load(ctx, false); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.version, nil
}

// Reload reads the source again and swaps in the new snapshot. On failure the
// previous snapshot stays in place.
func (s *Store) Reload(ctx context.Context) error {
	return s.load(ctx, true)
}

func (s *Store) load(ctx context.Context, force bool) error {
	key := "load"
	if force {
		key = "reload"
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		if !force {
			s.mu.RLock()
			loaded := s.current != nil
			s.mu.RUnlock()
			if loaded {
				return nil, nil
			}
		}

		modTime := s.sourceModTime()

		// The flight outlives any single caller, so it only keeps ctx values.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		ds, err := s.loader.Load(loadCtx, s.source)

		s.mu.Lock()
		defer s.mu.Unlock()

		s.lastErr = err
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset from %s: %w", s.source, err)
		}

		s.current = ds
		s.version++
		s.modTime = modTime
		s.lastLoad = time.Now()
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Dataset load shared with concurrent caller", zap.String("source", s.source))
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) sourceModTime() time.Time {
	if IsRemote(s.source) {
		return time.Time{}
	}
	info, err := os.Stat(s.source)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Modified reports whether the local source file changed since the current
// snapshot was loaded. Remote sources and unloaded stores report false.
func (s *Store) Modified() (bool, error) {
	if IsRemote(s.source) {
		return false, nil
	}

	s.mu.RLock()
	loaded := s.current != nil
	modTime := s.modTime
	s.mu.RUnlock()

	if !loaded {
		return false, nil
	}

	info, err := os.Stat(s.source)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return info.ModTime().After(modTime), nil
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

func (s *Store) LastLoadTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLoad
}

func (s *Store) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"source":    s.source,
		"loaded":    s.current != nil,
		"version":   s.version,
		"last_load": s.lastLoad,
		"rows":      s.current.Len(),
	}
	if s.lastErr != nil {
		stats["last_error"] = s.lastErr.Error()
	}
	return stats
}
