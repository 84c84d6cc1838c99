package passes

import (
	"cmp"
	"context"
	"encoding/json"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Forken21/botsat/internal/metrics"
	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

var tracer = otel.Tracer("botsat/passes")

// Request holds the parameters for a multi-satellite pass prediction.
type Request struct {
	Observer     transform.Observer
	Sets         []*tle.ElementSet
	Start        time.Time
	MinElevation float64 // degrees
	MaxPasses    int     // per satellite
	Concurrency  int     // default runtime.NumCPU()
}

// SatelliteError records a satellite whose search failed.
type SatelliteError struct {
	Name string
	Kind string // see propagation.ErrorKind
	Err  error
}

func (e SatelliteError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e SatelliteError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the failure for API responses.
func (e SatelliteError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Satellite string `json:"satellite"`
		Kind      string `json:"kind"`
		Error     string `json:"error"`
	}{e.Name, e.Kind, e.Err.Error()})
}

// Result is the merged outcome of a Predict call.
type Result struct {
	Entries  []Entry          `json:"entries"`
	Failures []SatelliteError `json:"failures"`
}

// Predict runs the finder for every satellite in parallel, bounded by
// req.Concurrency, and merges the passes. A failing satellite is reported
// in Failures and keeps the passes found before the failure; the others
// are unaffected. Satellites not yet started when ctx is cancelled are
// reported as failures with ctx's error.
func (f *Finder) Predict(ctx context.Context, req Request) Result {
	ctx, span := tracer.Start(ctx, "passes.Predict")
	defer span.End()
	span.SetAttributes(
		attribute.Int("satellites", len(req.Sets)),
		attribute.Float64("min_elevation", req.MinElevation),
		attribute.Int("max_passes", req.MaxPasses),
	)

	started := time.Now()
	defer func() { metrics.ObservePassSearch(time.Since(started)) }()

	limit := req.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	var (
		mu       sync.Mutex
		found    = make(map[string][]Pass, len(req.Sets))
		failures []SatelliteError
	)
	fail := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, SatelliteError{Name: name, Kind: propagation.ErrorKind(err), Err: err})
	}

	// Failures are collected, not returned, so one satellite never
	// cancels the others.
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, es := range req.Sets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				fail(es.Name, err)
				return nil
			}
			ps, err := f.FindPasses(es, req.Observer, req.Start, req.MinElevation, req.MaxPasses)
			if err != nil {
				fail(es.Name, err)
			}
			if len(ps) > 0 {
				mu.Lock()
				found[es.Name] = ps
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(failures, func(a, b SatelliteError) int {
		return cmp.Compare(a.Name, b.Name)
	})
	res := Result{Entries: Merge(found), Failures: failures}

	span.SetAttributes(
		attribute.Int("passes", len(res.Entries)),
		attribute.Int("failures", len(res.Failures)),
	)
	if len(res.Failures) > 0 {
		span.SetStatus(codes.Error, "some satellites failed")
	}
	return res
}
