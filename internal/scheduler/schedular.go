package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reloader swaps in a fresh dataset snapshot when the source has changed.
type Reloader interface {
	ReloadIfModified(ctx context.Context) (bool, error)
}

// Cleaner drops expired entries and reports how many were removed.
type Cleaner interface {
	Cleanup() int
}

const runTimeout = 60 * time.Second

type Scheduler struct {
	reloader        Reloader
	cache           Cleaner
	logger          *zap.Logger
	freshness       time.Duration
	cleanupInterval time.Duration

	cron        *cron.Cron
	freshnessID cron.EntryID
	inFlight    atomic.Bool
	background  sync.WaitGroup

	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	lastReload time.Time
	reloads    int
	failures   int
}

func NewScheduler(reloader Reloader, cache Cleaner, freshness, cleanupInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reloader:        reloader,
		cache:           cache,
		logger:          logger,
		freshness:       freshness,
		cleanupInterval: cleanupInterval,
		cron:            cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	id, err := s.cron.AddFunc(every(s.freshness), s.checkFreshness)
	if err != nil {
		return fmt.Errorf("failed to schedule freshness check: %w", err)
	}
	s.freshnessID = id

	if s.cache != nil {
		if _, err := s.cron.AddFunc(every(s.cleanupInterval), s.cleanupCache); err != nil {
			return fmt.Errorf("failed to schedule cache cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started",
		zap.Duration("freshness_interval", s.freshness),
		zap.Duration("cleanup_interval", s.cleanupInterval))

	// Run immediately on start
	s.goCheckFreshness()
	return nil
}

// goCheckFreshness runs a check outside cron; Stop waits for it.
func (s *Scheduler) goCheckFreshness() {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.checkFreshness()
	}()
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// checkFreshness reloads the dataset when its source changed. Overlapping
// runs are skipped.
func (s *Scheduler) checkFreshness() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("Skipping freshness check, previous run still in progress")
		return
	}
	defer s.inFlight.Store(false)

	startTime := time.Now()
	s.mu.Lock()
	s.lastRun = startTime
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	reloaded, err := s.reloader.ReloadIfModified(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		s.logger.Error("Scheduled freshness check failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	if reloaded {
		s.reloads++
		s.lastReload = time.Now()
		s.logger.Info("Dataset changed on disk, reloaded",
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	s.logger.Debug("Dataset unchanged")
}

func (s *Scheduler) cleanupCache() {
	if removed := s.cache.Cleanup(); removed > 0 {
		s.logger.Debug("Expired cache entries removed", zap.Int("removed", removed))
	}
}

// Stop halts the schedule and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.background.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out", zap.Error(ctx.Err()))
	}
}

func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering freshness check")
	s.goCheckFreshness()
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nextRun time.Time
	if s.running {
		nextRun = s.cron.Entry(s.freshnessID).Next
	}

	return map[string]interface{}{
		"running":            s.running,
		"freshness_interval": s.freshness.String(),
		"cleanup_interval":   s.cleanupInterval.String(),
		"last_run":           s.lastRun,
		"next_run":           nextRun,
		"last_reload":        s.lastReload,
		"reloads":            s.reloads,
		"failures":           s.failures,
		"in_flight":          s.inFlight.Load(),
	}
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
