// Package cache keeps recent pass predictions so repeated chat commands
// from the same place reuse one search.
//
// Entries are keyed by command scope, observer, elevation mask, pass count
// and a start time rounded down to the step. Each entry remembers the
// catalog version it was computed from. A background sweep evicts expired
// entries, and a lookup under a newer catalog version drops the entry.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Forken21/botsat/internal/metrics"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/transform"
)

// Config holds pass cache settings.
type Config struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`         // entry lifetime (default: 10m)
	Step       time.Duration `yaml:"step"`        // start time rounding (default: 1m)
	MaxEntries int           `yaml:"max_entries"` // oldest entry is evicted beyond this
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		TTL:        10 * time.Minute,
		Step:       time.Minute,
		MaxEntries: 1024,
	}
}

// Key identifies one cached prediction.
type Key struct {
	Scope string
	Lat   float64
	Lon   float64
	Alt   float64
	MinEl float64
	Count int
	Start int64 // unix seconds, rounded to the step
}

type entry struct {
	result   passes.Result
	version  string
	storedAt time.Time
}

// PassCache is an in-memory cache of pass predictions.
// Safe for concurrent use by multiple goroutines.
type PassCache struct {
	mu      sync.RWMutex
	entries map[Key]*entry

	config Config
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	outdated  atomic.Int64
	evictions atomic.Int64
}

// New creates a pass cache.
func New(config Config, logger *slog.Logger) *PassCache {
	d := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = d.TTL
	}
	if config.Step <= 0 {
		config.Step = d.Step
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = d.MaxEntries
	}

	logger.Info("pass cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"step_seconds", config.Step.Seconds(),
		"max_entries", config.MaxEntries,
	)

	return &PassCache{
		entries: make(map[Key]*entry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary, in UTC.
func (c *PassCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Key builds the lookup key for a prediction starting at start.
func (c *PassCache) Key(scope string, obs transform.Observer, minEl float64, count int, start time.Time) Key {
	return Key{
		Scope: scope,
		Lat:   obs.LatDeg,
		Lon:   obs.LonDeg,
		Alt:   obs.AltM,
		MinEl: minEl,
		Count: count,
		Start: c.RoundToStep(start).Unix(),
	}
}

// Get returns the cached result for k if it was computed from the given
// catalog version and has not expired. The returned result shares memory
// with the cache and must not be modified.
func (c *PassCache) Get(k Key, version string) (passes.Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	switch {
	case !ok || c.now().Sub(e.storedAt) >= c.config.TTL:
		c.misses.Add(1)
		metrics.IncPassCache("miss")
		return passes.Result{}, false
	case e.version != version:
		c.outdated.Add(1)
		metrics.IncPassCache("outdated")
		c.drop(k, e)
		return passes.Result{}, false
	}

	c.hits.Add(1)
	metrics.IncPassCache("hit")
	return e.result, true
}

// Put stores a result computed from the given catalog version.
func (c *PassCache) Put(k Key, version string, res passes.Result) {
	e := &entry{result: res, version: version, storedAt: c.now()}

	evicted := 0
	c.mu.Lock()
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.config.MaxEntries {
		c.evictOldestLocked()
		evicted = 1
	}
	c.entries[k] = e
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(1)
		metrics.AddPassCacheEvictions(1)
	}
	c.updateMetrics()
}

// evictOldestLocked removes the least recently stored entry. Caller must hold mu.
func (c *PassCache) evictOldestLocked() {
	var (
		oldestKey Key
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// drop removes k if it still holds e.
func (c *PassCache) drop(k Key, e *entry) {
	c.mu.Lock()
	if c.entries[k] == e {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	c.updateMetrics()
}

// evictExpired removes entries older than the TTL.
func (c *PassCache) evictExpired() int {
	cutoff := c.now().Add(-c.config.TTL)
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.storedAt.After(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddPassCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("pass cache eviction", "entries_removed", removed)
	}
	return removed
}

// Stats holds cache counters.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Outdated  int64
	Evictions int64
}

// Stats returns current cache statistics.
func (c *PassCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Outdated:  c.outdated.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *PassCache) updateMetrics() {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	metrics.SetPassCacheEntries(n)
}
