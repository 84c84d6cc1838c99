package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Forken21/botsat/internal/api"
	"github.com/Forken21/botsat/internal/cache"
	"github.com/Forken21/botsat/internal/config"
	"github.com/Forken21/botsat/internal/health"
	"github.com/Forken21/botsat/internal/location"
	"github.com/Forken21/botsat/internal/metrics"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/stream"
	"github.com/Forken21/botsat/internal/tle"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if lvl, err := cfg.Level(); err == nil {
		level.Set(lvl)
	}

	groupNames := make([]string, len(cfg.Catalog.Groups))
	for i, g := range cfg.Catalog.Groups {
		groupNames[i] = g.Name
	}
	store := tle.NewStore(groupNames...)
	refresher := tle.NewRefresher(
		store,
		tle.NewFetcher(logger),
		tle.NewCache(cfg.Catalog.CacheDir, cfg.Catalog.MaxFiles),
		tle.RefresherConfig{
			Groups:   cfg.Catalog.Groups,
			MaxAge:   cfg.Catalog.MaxAge,
			Interval: cfg.Catalog.RefreshInterval,
		},
		logger,
	)

	prop := propagation.NewPropagator(propagation.Config{
		Workers:    cfg.Propagation.Workers,
		MaxHorizon: cfg.Propagation.MaxHorizon,
	}, logger)
	finder := passes.NewFinder(cfg.Finder, prop)

	checks := []health.Check{func(context.Context) error {
		if len(store.LoadedGroups()) == 0 {
			return errors.New("no catalog loaded")
		}
		return nil
	}}

	var locations location.Store
	switch cfg.Location.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.Location.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		rs := location.NewRedisStore(client, location.WithTTL(cfg.Location.TTL))
		checks = append(checks, rs.Ping)
		locations = rs
	default:
		locations = location.NewMemoryStore()
	}

	streamHandler := stream.NewHandler(cfg.Stream, logger)

	var passCache *cache.PassCache
	if cfg.PassCache.Enabled {
		passCache = cache.New(cfg.PassCache, logger)
	}

	srv := api.NewServer(cfg.HTTP.Addr, logger, cfg.Auth, api.Deps{
		Store:      store,
		Refresher:  refresher,
		Propagator: prop,
		Finder:     finder,
		Locations:  locations,
		Stream:     streamHandler,
		Checks:     checks,
		Cache:      passCache,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm from cache, then keep catalogs fresh in the background.
	go func() {
		if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("catalog refresher stopped", "error", err)
		}
	}()

	if passCache != nil {
		go passCache.Run(ctx)
	}

	// Background goroutine to update catalog age gauges.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				for _, g := range store.LoadedGroups() {
					cat := store.Get(g)
					metrics.SetCatalog(g, cat.Age(now), cat.Len())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"location_backend", cfg.Location.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
