package passes

import (
	"iter"
	"time"

	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

// Config controls the pass search.
type Config struct {
	CoarseStep           time.Duration `yaml:"coarse_step"`
	FineStep             time.Duration `yaml:"fine_step"`
	Chunk                time.Duration `yaml:"chunk"`
	Cap                  time.Duration `yaml:"cap"`
	ToleranceDeg         float64       `yaml:"tolerance_deg"`
	MaxBisections        int           `yaml:"max_bisections"`
	CulminationTolerance time.Duration `yaml:"culmination_tolerance"`
}

// DefaultConfig returns the default search settings.
func DefaultConfig() Config {
	return Config{
		CoarseStep:           60 * time.Second,
		FineStep:             10 * time.Second,
		Chunk:                24 * time.Hour,
		Cap:                  7 * 24 * time.Hour,
		ToleranceDeg:         0.01,
		MaxBisections:        50,
		CulminationTolerance: time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CoarseStep <= 0 {
		c.CoarseStep = d.CoarseStep
	}
	if c.FineStep <= 0 {
		c.FineStep = d.FineStep
	}
	if c.Chunk <= 0 {
		c.Chunk = d.Chunk
	}
	if c.Cap <= 0 {
		c.Cap = d.Cap
	}
	if c.Chunk > c.Cap {
		c.Chunk = c.Cap
	}
	if c.ToleranceDeg <= 0 {
		c.ToleranceDeg = d.ToleranceDeg
	}
	if c.MaxBisections <= 0 {
		c.MaxBisections = d.MaxBisections
	}
	if c.CulminationTolerance <= 0 {
		c.CulminationTolerance = d.CulminationTolerance
	}
	return c
}

type lookFunc func(es *tle.ElementSet, obs transform.Observer, at time.Time) (transform.LookAngle, error)

// Finder locates passes of a satellite over an observer. It is safe for
// concurrent use.
type Finder struct {
	cfg  Config
	prop *propagation.Propagator
	look lookFunc
}

// NewFinder creates a finder. prop may be nil, in which case propagation
// runs without the horizon advisory and error metrics.
func NewFinder(cfg Config, prop *propagation.Propagator) *Finder {
	f := &Finder{cfg: cfg.withDefaults(), prop: prop, look: propagation.Look}
	if prop != nil {
		f.look = prop.Look
	}
	return f
}

// Config returns the effective settings.
func (f *Finder) Config() Config {
	return f.cfg
}

// Passes returns the passes of es over obs rising after start with an
// elevation above minEl, in time order. The sequence is lazy: each pass
// is computed when pulled. Ranging again restarts the search from start.
//
// A satellite already above minEl at start is mid-pass; that pass is
// skipped. A pass that has not set within the search cap is not yielded.
// A propagation failure is yielded once as (Pass{}, err) and ends the
// sequence.
func (f *Finder) Passes(es *tle.ElementSet, obs transform.Observer, start time.Time, minEl float64) iter.Seq2[Pass, error] {
	return func(yield func(Pass, error) bool) {
		if f.prop != nil {
			f.prop.CheckHorizon(es, start, start.Add(f.cfg.Chunk))
		}
		s := f.newSearch(es, obs, start, minEl)
		for {
			p, ok, err := s.next()
			if err != nil {
				yield(Pass{}, err)
				return
			}
			if !ok || !yield(p, nil) {
				return
			}
		}
	}
}

// FindPasses collects at most maxCount passes. On failure it returns the
// passes found so far together with the error.
func (f *Finder) FindPasses(es *tle.ElementSet, obs transform.Observer, start time.Time, minEl float64, maxCount int) ([]Pass, error) {
	found := make([]Pass, 0, max(0, min(maxCount, 16)))
	if maxCount <= 0 {
		return found, nil
	}
	for p, err := range f.Passes(es, obs, start, minEl) {
		if err != nil {
			return found, err
		}
		found = append(found, p)
		if len(found) == maxCount {
			break
		}
	}
	return found, nil
}

// search is the state of one walk through time.
type search struct {
	f     *Finder
	es    *tle.ElementSet
	obs   transform.Observer
	minEl float64

	limit   time.Time // start + cap
	horizon time.Time // extended one chunk at a time up to limit
	start   time.Time

	prev   transform.LookAngle
	primed bool
	done   bool
}

func (f *Finder) newSearch(es *tle.ElementSet, obs transform.Observer, start time.Time, minEl float64) *search {
	return &search{
		f:       f,
		es:      es,
		obs:     obs,
		minEl:   minEl,
		start:   start,
		limit:   start.Add(f.cfg.Cap),
		horizon: start.Add(f.cfg.Chunk),
	}
}

func (s *search) eval(t time.Time) (transform.LookAngle, error) {
	return s.f.look(s.es, s.obs, t)
}

func (s *search) above(la transform.LookAngle) bool {
	return la.ElevationDeg > s.minEl
}

// next returns the next complete pass, or ok == false when the search is
// exhausted.
func (s *search) next() (p Pass, ok bool, err error) {
	if s.done {
		return Pass{}, false, nil
	}
	defer func() {
		if err != nil || !ok {
			s.done = true
		}
	}()

	if !s.primed {
		s.primed = true
		if s.prev, err = s.eval(s.start); err != nil {
			return Pass{}, false, err
		}
		// Mid-pass at start: no rise inside the window, skip it.
		for s.above(s.prev) {
			t := s.prev.Time.Add(s.f.cfg.FineStep)
			if t.After(s.limit) {
				return Pass{}, false, nil
			}
			if s.prev, err = s.eval(t); err != nil {
				return Pass{}, false, err
			}
		}
	}

	rise, first, found, err := s.scanForRise()
	if err != nil || !found {
		return Pass{}, false, err
	}

	// Fine-step through the pass, keeping the best sample and the times
	// of its neighbours as the bracket for the culmination search.
	best := first
	lo, hi := rise.Time, time.Time{}
	cur := first
	var set transform.LookAngle
	for {
		if !cur.Time.Before(s.limit) {
			// Still up at the cap.
			return Pass{}, false, nil
		}
		t := cur.Time.Add(s.f.cfg.FineStep)
		if t.After(s.limit) {
			t = s.limit
		}
		nxt, err := s.eval(t)
		if err != nil {
			return Pass{}, false, err
		}
		switch {
		case nxt.ElevationDeg > best.ElevationDeg:
			best, lo, hi = nxt, cur.Time, time.Time{}
		case hi.IsZero():
			hi = nxt.Time
		}
		if !s.above(nxt) {
			if set, _, err = s.bisect(cur, nxt); err != nil {
				return Pass{}, false, err
			}
			break
		}
		cur = nxt
	}

	if hi.After(set.Time) {
		hi = set.Time
	}
	culm, err := s.refinePeak(lo, hi)
	if err != nil {
		return Pass{}, false, err
	}
	if culm.ElevationDeg <= best.ElevationDeg {
		culm = best
	}

	if s.prev, err = s.eval(set.Time.Add(time.Second)); err != nil {
		return Pass{}, false, err
	}
	return newPass(s.es.Name, rise, culm, set), true, nil
}

// scanForRise coarse-steps from s.prev until the elevation crosses minEl
// upwards. It returns the refined rise and the first sample above minEl.
func (s *search) scanForRise() (rise, first transform.LookAngle, found bool, err error) {
	for {
		if !s.prev.Time.Before(s.horizon) {
			if !s.horizon.Before(s.limit) {
				return rise, first, false, nil
			}
			s.horizon = s.horizon.Add(s.f.cfg.Chunk)
			if s.horizon.After(s.limit) {
				s.horizon = s.limit
			}
		}
		t := s.prev.Time.Add(s.f.cfg.CoarseStep)
		if t.After(s.horizon) {
			t = s.horizon
		}
		cur, err := s.eval(t)
		if err != nil {
			return rise, first, false, err
		}
		if !s.above(s.prev) && s.above(cur) {
			below, above, err := s.bisect(s.prev, cur)
			if err != nil {
				return rise, first, false, err
			}
			s.prev = cur
			return below, above, true, nil
		}
		s.prev = cur
	}
}
