package config

import (
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// applyEnv overlays BOTSAT_* variables. Malformed numbers and durations
// are logged and ignored; a malformed auth switch is an error.
func (c *Config) applyEnv(logger *slog.Logger, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	positiveInt := func(key string, dst *int) {
		v := getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := parseDuration(v)
		if err != nil || d <= 0 {
			logger.Warn("invalid "+key+" value, using default", "value", v, "default", dst.String())
			return
		}
		*dst = d
	}
	boolean := func(key string, dst *bool) bool {
		v := getenv(key)
		if v == "" {
			return true
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false
		}
		*dst = b
		return true
	}

	str("BOTSAT_LOG_LEVEL", &c.LogLevel)
	str("BOTSAT_HTTP_ADDR", &c.HTTP.Addr)
	if !boolean("BOTSAT_TRUST_PROXY", &c.HTTP.TrustProxy) {
		logger.Warn("invalid BOTSAT_TRUST_PROXY value, using default", "value", getenv("BOTSAT_TRUST_PROXY"))
	}

	if !boolean("BOTSAT_AUTH_ENABLED", &c.Auth.Enabled) {
		return errors.New("BOTSAT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
	}
	str("BOTSAT_AUTH_TOKEN", &c.Auth.Token)

	duration("BOTSAT_CATALOG_MAX_AGE", &c.Catalog.MaxAge)
	duration("BOTSAT_CATALOG_REFRESH_INTERVAL", &c.Catalog.RefreshInterval)
	str("BOTSAT_CATALOG_CACHE_DIR", &c.Catalog.CacheDir)
	positiveInt("BOTSAT_CATALOG_MAX_FILES", &c.Catalog.MaxFiles)

	duration("BOTSAT_FINDER_CAP", &c.Finder.Cap)

	positiveInt("BOTSAT_PROP_WORKERS", &c.Propagation.Workers)
	duration("BOTSAT_PROP_MAX_HORIZON", &c.Propagation.MaxHorizon)

	str("BOTSAT_LOCATION_BACKEND", &c.Location.Backend)
	str("BOTSAT_REDIS_URL", &c.Location.RedisURL)
	duration("BOTSAT_LOCATION_TTL", &c.Location.TTL)

	positiveInt("BOTSAT_STREAM_MAX_CONCURRENT", &c.Stream.MaxConcurrentPerIP)
	duration("BOTSAT_STREAM_KEEPALIVE_INTERVAL", &c.Stream.KeepaliveInterval)

	if !boolean("BOTSAT_PASS_CACHE_ENABLED", &c.PassCache.Enabled) {
		logger.Warn("invalid BOTSAT_PASS_CACHE_ENABLED value, using default", "value", getenv("BOTSAT_PASS_CACHE_ENABLED"))
	}
	duration("BOTSAT_PASS_CACHE_TTL", &c.PassCache.TTL)
	positiveInt("BOTSAT_PASS_CACHE_MAX_ENTRIES", &c.PassCache.MaxEntries)

	return nil
}

// parseDuration accepts Go duration syntax or a plain number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
