package propagation

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Forken21/botsat/internal/metrics"
	"github.com/Forken21/botsat/internal/sgp4"
	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

// DefaultMaxHorizon is how far from epoch a prediction stays trustworthy.
const DefaultMaxHorizon = 48 * time.Hour

// ErrInvalidOutput is returned when the model produced NaN or infinite values.
var ErrInvalidOutput = errors.New("non-finite propagation output")

// Config holds propagation settings.
type Config struct {
	Workers    int           // worker pool size (default: runtime.NumCPU())
	MaxHorizon time.Duration // advisory distance from epoch (default: 48h)
}

// Propagate computes the TEME state of es at the instant at. The element
// set's model was initialised at load time, so this is a pure function of
// its arguments. Errors carry the satellite name.
func Propagate(es *tle.ElementSet, at time.Time) (transform.StateVector, error) {
	tsince := at.Sub(es.Epoch).Minutes()

	pos, vel, err := es.Model().Propagate(tsince)
	if err != nil {
		return transform.StateVector{}, fmt.Errorf("propagating %s: %w", es.Name, err)
	}

	sv := transform.StateVector{
		Time:     at,
		Position: transform.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: transform.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !sv.Position.Finite() || !sv.Velocity.Finite() {
		return transform.StateVector{}, fmt.Errorf("propagating %s at %+.1f min: %w", es.Name, tsince, ErrInvalidOutput)
	}
	return sv, nil
}

// Look propagates es to at and returns its look angle from obs.
func Look(es *tle.ElementSet, obs transform.Observer, at time.Time) (transform.LookAngle, error) {
	sv, err := Propagate(es, at)
	if err != nil {
		return transform.LookAngle{}, err
	}
	return transform.ToLookAngle(sv, obs, at), nil
}

// ErrorKind classifies a propagation error for metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, sgp4.ErrDecayed):
		return "decayed"
	case errors.Is(err, sgp4.ErrKeplerNotConverged):
		return "kepler"
	case errors.Is(err, sgp4.ErrModelLimits):
		return "model_limits"
	case errors.Is(err, ErrInvalidOutput):
		return "invalid_output"
	default:
		return "other"
	}
}

// Propagator wraps Propagate with the operational concerns: an advisory
// when a prediction reaches further from epoch than MaxHorizon, error
// metrics, and a worker pool for batch queries.
type Propagator struct {
	pool       *WorkerPool
	maxHorizon time.Duration
	logger     *slog.Logger

	warned sync.Map // name@epoch -> struct{}
}

// NewPropagator creates a propagator from cfg, filling defaults.
func NewPropagator(cfg Config, logger *slog.Logger) *Propagator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = DefaultMaxHorizon
	}
	logger = logger.With("component", "propagation")
	p := &Propagator{
		maxHorizon: cfg.MaxHorizon,
		logger:     logger,
	}
	p.pool = NewWorkerPool(cfg.Workers, p, logger)
	return p
}

// MaxHorizon returns the advisory horizon.
func (p *Propagator) MaxHorizon() time.Duration {
	return p.maxHorizon
}

// Propagate is the package-level Propagate plus the horizon advisory and
// error accounting. The advisory never changes the result.
func (p *Propagator) Propagate(es *tle.ElementSet, at time.Time) (transform.StateVector, error) {
	p.checkHorizon(es, at)
	sv, err := Propagate(es, at)
	if err != nil {
		metrics.IncPropagationError(ErrorKind(err))
	}
	return sv, err
}

// Look is the package-level Look with the Propagator's accounting.
func (p *Propagator) Look(es *tle.ElementSet, obs transform.Observer, at time.Time) (transform.LookAngle, error) {
	sv, err := p.Propagate(es, at)
	if err != nil {
		return transform.LookAngle{}, err
	}
	return transform.ToLookAngle(sv, obs, at), nil
}

// CheckHorizon reports whether [start, end] stays within MaxHorizon of the
// element epoch, logging the advisory once per satellite when it does not.
func (p *Propagator) CheckHorizon(es *tle.ElementSet, start, end time.Time) bool {
	ok := p.within(es, start) && p.within(es, end)
	if !ok {
		p.advise(es, start)
	}
	return ok
}

// Pool returns the batch worker pool.
func (p *Propagator) Pool() *WorkerPool {
	return p.pool
}

func (p *Propagator) checkHorizon(es *tle.ElementSet, at time.Time) {
	if !p.within(es, at) {
		p.advise(es, at)
	}
}

func (p *Propagator) within(es *tle.ElementSet, at time.Time) bool {
	d := at.Sub(es.Epoch)
	if d < 0 {
		d = -d
	}
	return d <= p.maxHorizon
}

func (p *Propagator) advise(es *tle.ElementSet, at time.Time) {
	key := es.Name + "@" + es.Epoch.UTC().Format(time.RFC3339)
	if _, seen := p.warned.LoadOrStore(key, struct{}{}); seen {
		return
	}
	metrics.IncHorizonExceeded()
	p.logger.Warn("prediction beyond element set horizon",
		"satellite", es.Name,
		"epoch", es.Epoch.UTC().Format(time.RFC3339),
		"at", at.UTC().Format(time.RFC3339),
		"max_horizon", p.maxHorizon.String(),
	)
}
