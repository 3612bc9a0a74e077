package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/pipeline"
	"go.uber.org/zap"
)

type CacheItem struct {
	Data      pipeline.Output
	ExpiresAt time.Time
}

// ResultCache holds pipeline outputs keyed by dataset version and canonical
// filter. Entries for an older version are never returned because the
// version is part of the key.
type ResultCache struct {
	mu              sync.RWMutex
	items           map[string]CacheItem
	logger          *zap.Logger
	defaultDuration time.Duration
	maxSize         int
	hits            int
	misses          int
	now             func() time.Time
}

func NewResultCache(defaultDuration time.Duration, maxSize int, logger *zap.Logger) *ResultCache {
	return &ResultCache{
		items:           make(map[string]CacheItem),
		logger:          logger,
		defaultDuration: defaultDuration,
		maxSize:         maxSize,
		now:             time.Now,
	}
}

// CacheKey hashes the canonical form of spec together with the dataset version.
func CacheKey(version uint64, spec models.FilterSpec, previewRows int) (string, error) {
	body, err := json.Marshal(spec.Canonical())
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	sum := sha256.Sum256(body)
	return fmt.Sprintf("v%d:p%d:%s", version, previewRows, hex.EncodeToString(sum[:])), nil
}

func (c *ResultCache) Set(key string, out pipeline.Output) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if cache is too large
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	expiresAt := c.now().Add(c.defaultDuration)
	c.items[key] = CacheItem{
		Data:      out,
		ExpiresAt: expiresAt,
	}

	c.logger.Debug("Pipeline result cached",
		zap.String("key", key),
		zap.Time("expires_at", expiresAt))
}

func (c *ResultCache) Get(key string) (pipeline.Output, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		c.record(false)
		return pipeline.Output{}, false
	}

	if c.now().After(item.ExpiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.misses++
		c.mu.Unlock()
		return pipeline.Output{}, false
	}

	c.record(true)
	return item.Data, true
}

func (c *ResultCache) record(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.logger.Debug("Evicted oldest pipeline result from cache",
			zap.String("key", oldestKey))
	}
}

// Cleanup drops expired entries and returns how many were removed.
func (c *ResultCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0

	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned expired cache items",
			zap.Int("count", expiredCount))
	}
	return expiredCount
}

// Purge empties the cache, e.g. after a dataset reload.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]CacheItem)
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ResultCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"items":            len(c.items),
		"hits":             c.hits,
		"misses":           c.misses,
		"max_size":         c.maxSize,
		"default_duration": c.defaultDuration.String(),
	}
}
