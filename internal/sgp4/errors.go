package sgp4

import (
	"errors"
	"fmt"
)

var (
	// ErrDecayed reports a non-physical orbit: eccentricity at or past 1,
	// or a perigee or radius below the Earth's surface.
	ErrDecayed = errors.New("orbit decayed")
	// ErrKeplerNotConverged reports that Kepler's equation did not converge
	// within the iteration bound.
	ErrKeplerNotConverged = errors.New("kepler equation did not converge")
	// ErrModelLimits reports elements the near-Earth model cannot handle.
	ErrModelLimits = errors.New("elements outside near-earth model limits")
)

// PropagationError carries the time since epoch at which propagation failed.
type PropagationError struct {
	Tsince float64 // minutes since epoch
	Err    error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("sgp4 at %+.3f min from epoch: %v", e.Tsince, e.Err)
}

func (e *PropagationError) Unwrap() error {
	return e.Err
}

func decayed(tsince float64, format string, args ...any) error {
	return &PropagationError{Tsince: tsince, Err: fmt.Errorf("%w: "+format, append([]any{ErrDecayed}, args...)...)}
}
