// Package config loads service settings from an optional YAML file and
// BOTSAT_* environment variables. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Forken21/botsat/internal/auth"
	"github.com/Forken21/botsat/internal/cache"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/stream"
	"github.com/Forken21/botsat/internal/tle"
)

// Location store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete service configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        auth.Config       `yaml:"auth"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Finder      passes.Config     `yaml:"finder"`
	Propagation PropagationConfig `yaml:"propagation"`
	Location    LocationConfig    `yaml:"location"`
	Stream      stream.Config     `yaml:"stream"`
	PassCache   cache.Config      `yaml:"pass_cache"`
}

type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

type CatalogConfig struct {
	MaxAge          time.Duration `yaml:"max_age"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CacheDir        string        `yaml:"cache_dir"`
	MaxFiles        int           `yaml:"max_files"`
	Groups          []tle.Group   `yaml:"groups"`
}

type PropagationConfig struct {
	MaxHorizon time.Duration `yaml:"max_horizon"`
	Workers    int           `yaml:"workers"`
}

type LocationConfig struct {
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "debug",
		HTTP:     HTTPConfig{Addr: ":8080"},
		Catalog: CatalogConfig{
			// RefreshInterval follows MaxAge unless set.
			MaxAge:   tle.DefaultMaxAge,
			CacheDir: "/tmp/botsat/tle",
			MaxFiles: 5,
			Groups:   tle.DefaultGroups(),
		},
		Finder: passes.DefaultConfig(),
		Propagation: PropagationConfig{
			MaxHorizon: propagation.DefaultMaxHorizon,
			Workers:    runtime.NumCPU(),
		},
		Location: LocationConfig{Backend: BackendMemory},
		Stream: stream.Config{
			MaxConcurrentPerIP: 10,
			KeepaliveInterval:  30 * time.Second,
		},
		PassCache: cache.DefaultConfig(),
	}
}

// Load reads the file named by BOTSAT_CONFIG (if set), overlays the
// environment, validates the result and logs it.
func Load(logger *slog.Logger) (Config, error) {
	return load(logger, os.Getenv)
}

func load(logger *slog.Logger, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("BOTSAT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(logger, getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.log(logger)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate fills zero values with defaults and rejects impossible settings.
func (c *Config) Validate() error {
	d := Default()
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = d.HTTP.Addr
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New("auth.token is required when auth is enabled"))
	}

	if c.Catalog.MaxAge <= 0 {
		c.Catalog.MaxAge = d.Catalog.MaxAge
	}
	if c.Catalog.RefreshInterval <= 0 {
		c.Catalog.RefreshInterval = c.Catalog.MaxAge
	}
	if c.Catalog.MaxFiles <= 0 {
		c.Catalog.MaxFiles = d.Catalog.MaxFiles
	}
	if len(c.Catalog.Groups) == 0 {
		c.Catalog.Groups = d.Catalog.Groups
	}
	seen := make(map[string]bool, len(c.Catalog.Groups))
	for i, g := range c.Catalog.Groups {
		switch {
		case g.Name == "":
			errs = append(errs, fmt.Errorf("catalog.groups[%d]: name is required", i))
		case seen[g.Name]:
			errs = append(errs, fmt.Errorf("catalog.groups[%d]: duplicate group %q", i, g.Name))
		case g.URL == "":
			errs = append(errs, fmt.Errorf("catalog.groups[%d]: url is required", i))
		}
		seen[g.Name] = true
	}

	if c.Finder.FineStep > 0 && c.Finder.CoarseStep > 0 && c.Finder.FineStep > c.Finder.CoarseStep {
		errs = append(errs, fmt.Errorf("finder.fine_step %v exceeds coarse_step %v", c.Finder.FineStep, c.Finder.CoarseStep))
	}
	if c.Finder.Cap < 0 || c.Finder.Chunk < 0 {
		errs = append(errs, errors.New("finder.cap and finder.chunk must not be negative"))
	}

	if c.Propagation.Workers <= 0 {
		c.Propagation.Workers = d.Propagation.Workers
	}
	if c.Propagation.MaxHorizon <= 0 {
		c.Propagation.MaxHorizon = d.Propagation.MaxHorizon
	}

	switch c.Location.Backend {
	case "":
		c.Location.Backend = BackendMemory
	case BackendMemory:
	case BackendRedis:
		if c.Location.RedisURL == "" {
			errs = append(errs, errors.New("location.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("location.backend %q: want memory or redis", c.Location.Backend))
	}
	if c.Location.TTL < 0 {
		errs = append(errs, errors.New("location.ttl must not be negative"))
	}

	if c.Stream.MaxConcurrentPerIP <= 0 {
		c.Stream.MaxConcurrentPerIP = d.Stream.MaxConcurrentPerIP
	}
	if c.Stream.KeepaliveInterval <= 0 {
		c.Stream.KeepaliveInterval = d.Stream.KeepaliveInterval
	}
	c.Stream.TrustProxy = c.HTTP.TrustProxy

	if c.PassCache.TTL < 0 || c.PassCache.Step < 0 {
		errs = append(errs, errors.New("pass_cache.ttl and pass_cache.step must not be negative"))
	}
	if c.PassCache.TTL == 0 {
		c.PassCache.TTL = d.PassCache.TTL
	}
	if c.PassCache.Step == 0 {
		c.PassCache.Step = d.PassCache.Step
	}
	if c.PassCache.MaxEntries <= 0 {
		c.PassCache.MaxEntries = d.PassCache.MaxEntries
	}

	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelDebug, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

func (c *Config) log(logger *slog.Logger) {
	groups := make([]string, len(c.Catalog.Groups))
	for i, g := range c.Catalog.Groups {
		groups[i] = g.Name
	}
	logger.Info("config",
		"http_addr", c.HTTP.Addr,
		"auth_enabled", c.Auth.Enabled,
		"groups", groups,
		"catalog_max_age", c.Catalog.MaxAge.String(),
		"cache_dir", c.Catalog.CacheDir,
		"workers", c.Propagation.Workers,
		"max_horizon", c.Propagation.MaxHorizon.String(),
		"location_backend", c.Location.Backend,
		"stream_max_concurrent_per_ip", c.Stream.MaxConcurrentPerIP,
		"pass_cache_enabled", c.PassCache.Enabled,
		"pass_cache_ttl", c.PassCache.TTL.String(),
	)
}
