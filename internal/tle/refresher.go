package tle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Forken21/botsat/internal/metrics"
)

// ErrUnknownGroup is returned for a group that is not configured.
var ErrUnknownGroup = errors.New("unknown group")

// RefresherConfig holds catalog refresh settings.
type RefresherConfig struct {
	Groups   []Group
	MaxAge   time.Duration // snapshot age that triggers a refresh (default: 2h)
	Interval time.Duration // background refresh tick (default: MaxAge)
}

// Refresher keeps the Store populated: warm from the disk cache, refresh
// from the network when a snapshot goes stale. Refreshes of one group are
// serialised; different groups refresh independently.
type Refresher struct {
	store  *Store
	source Source
	cache  *Cache // optional
	groups map[string]Group
	order  []string
	maxAge time.Duration
	tick   time.Duration
	logger *slog.Logger
	now    func() time.Time

	locks map[string]*sync.Mutex
}

// NewRefresher creates a Refresher for cfg.Groups. cache may be nil.
func NewRefresher(store *Store, source Source, cache *Cache, cfg RefresherConfig, logger *slog.Logger) *Refresher {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.MaxAge
	}
	r := &Refresher{
		store:  store,
		source: source,
		cache:  cache,
		groups: make(map[string]Group, len(cfg.Groups)),
		maxAge: cfg.MaxAge,
		tick:   cfg.Interval,
		logger: logger.With("component", "tle_refresher"),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sync.Mutex, len(cfg.Groups)),
	}
	for _, g := range cfg.Groups {
		if _, dup := r.groups[g.Name]; !dup {
			r.order = append(r.order, g.Name)
		}
		r.groups[g.Name] = g
		r.locks[g.Name] = &sync.Mutex{}
	}
	return r
}

// Groups returns the configured groups in configuration order.
func (r *Refresher) Groups() []Group {
	out := make([]Group, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.groups[name])
	}
	return out
}

// MaxAge returns the staleness threshold.
func (r *Refresher) MaxAge() time.Duration {
	return r.maxAge
}

// Refresh fetches, loads and swaps in a new snapshot for group, then writes
// the raw text to the disk cache. On any failure the previous snapshot stays
// in place and the error is returned.
func (r *Refresher) Refresh(ctx context.Context, group string) (*Catalog, error) {
	g, ok := r.groups[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}

	mu := r.locks[group]
	mu.Lock()
	defer mu.Unlock()

	return r.refreshLocked(ctx, g)
}

func (r *Refresher) refreshLocked(ctx context.Context, g Group) (*Catalog, error) {
	ctx, span := otel.Tracer("botsat/tle").Start(ctx, "tle.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("group", g.Name), attribute.String("url", g.URL))

	start := time.Now()
	raw, err := r.source.Fetch(ctx, g)
	if err != nil {
		metrics.ObserveRefresh(g.Name, "fetch_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		r.logger.Warn("catalog fetch failed", "group", g.Name, "error", err)
		return nil, err
	}

	fetchedAt := r.now()
	cat, err := Load(g.Name, g.URL, raw, fetchedAt)
	if err != nil {
		metrics.ObserveRefresh(g.Name, "parse_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		r.logger.Warn("catalog parse failed", "group", g.Name, "error", err)
		return nil, err
	}
	cat = cat.Filter(g.Filter)
	if cat.Len() == 0 {
		err := &ParseError{Err: fmt.Errorf("%w: nothing matches filter %q", ErrNoRecords, g.Filter)}
		metrics.ObserveRefresh(g.Name, "empty")
		span.SetStatus(codes.Error, "empty")
		r.logger.Warn("catalog refresh produced no satellites", "group", g.Name, "filter", g.Filter)
		return nil, err
	}

	r.store.Swap(cat)
	metrics.ObserveRefresh(g.Name, "ok")
	metrics.SetCatalog(g.Name, 0, cat.Len())
	span.SetAttributes(attribute.Int("satellites", cat.Len()), attribute.Int("parse_errors", len(cat.ParseErrors)))

	if r.cache != nil {
		if err := r.cache.Write(g.Name, raw, fetchedAt); err != nil {
			r.logger.Warn("failed to write catalog cache", "group", g.Name, "error", err)
		}
	}

	r.logger.Info("catalog refreshed",
		"group", g.Name,
		"satellites", cat.Len(),
		"parse_errors", len(cat.ParseErrors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cat, nil
}

// EnsureFresh returns the group's snapshot, refreshing it first when it is
// missing or older than MaxAge at now. When the refresh fails but an older
// snapshot exists, that snapshot is returned together with the error.
func (r *Refresher) EnsureFresh(ctx context.Context, group string, now time.Time) (*Catalog, error) {
	if _, ok := r.groups[group]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	if cat := r.store.Get(group); cat != nil && !cat.IsStale(now, r.maxAge) {
		return cat, nil
	}

	mu := r.locks[group]
	mu.Lock()
	defer mu.Unlock()

	// Another caller may have refreshed while we waited.
	current := r.store.Get(group)
	if current != nil && !current.IsStale(now, r.maxAge) {
		return current, nil
	}

	cat, err := r.refreshLocked(ctx, r.groups[group])
	if err != nil {
		return current, err
	}
	return cat, nil
}

// Warm loads every group that has no snapshot from its newest cache file.
// Groups without a usable cache file are logged and left empty.
func (r *Refresher) Warm(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	for _, name := range r.order {
		if r.store.Get(name) != nil {
			continue
		}
		g.Go(func() error {
			raw, ts, err := r.cache.LoadLatest(name)
			if err != nil {
				r.logger.Info("no cached catalog", "group", name, "error", err)
				return nil
			}
			cat, err := Load(name, "cache", raw, ts)
			if err != nil {
				r.logger.Warn("cached catalog unusable", "group", name, "error", err)
				return nil
			}
			cat = cat.Filter(r.groups[name].Filter)
			r.store.Swap(cat)
			metrics.SetCatalog(name, r.now().Sub(ts), cat.Len())
			r.logger.Info("catalog loaded from cache",
				"group", name,
				"satellites", cat.Len(),
				"fetched_at", ts.Format(time.RFC3339),
			)
			return nil
		})
	}
	return g.Wait()
}

// Run warms the store from disk, refreshes every stale group, then keeps
// refreshing on the configured interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.Warm(ctx); err != nil {
		return err
	}
	r.refreshStale(ctx)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshStale(ctx)
		}
	}
}

func (r *Refresher) refreshStale(ctx context.Context) {
	now := r.now()
	for _, name := range r.order {
		if ctx.Err() != nil {
			return
		}
		cat, err := r.EnsureFresh(ctx, name, now)
		if cat != nil {
			metrics.SetCatalog(name, cat.Age(now), cat.Len())
		}
		if err != nil && cat != nil {
			r.logger.Warn("serving stale catalog", "group", name, "age", cat.Age(now).String())
		}
	}
}
