package cache

import (
	"context"
	"time"
)

// Run evicts expired entries every half TTL until ctx is cancelled.
func (c *PassCache) Run(ctx context.Context) {
	interval := c.config.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("pass cache sweeper stopped")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *PassCache) tick() {
	removed := c.evictExpired()
	if removed == 0 {
		return
	}
	s := c.Stats()
	c.logger.Debug("pass cache swept",
		"entries", s.Entries,
		"hits", s.Hits,
		"misses", s.Misses,
		"outdated", s.Outdated,
	)
}
