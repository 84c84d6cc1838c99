package passes

import (
	"math"
	"time"

	"github.com/Forken21/botsat/internal/transform"
)

// invPhi is 1/φ, the golden-section ratio.
var invPhi = (math.Sqrt(5) - 1) / 2

// bisect narrows the bracket [a, b], whose endpoints lie on opposite sides
// of minEl, until the sample below the threshold is within tolerance of
// it. It returns the final below and above samples.
func (s *search) bisect(a, b transform.LookAngle) (below, above transform.LookAngle, err error) {
	lo, hi := a, b
	for range s.f.cfg.MaxBisections {
		below, above = s.split(lo, hi)
		if math.Abs(below.ElevationDeg-s.minEl) <= s.f.cfg.ToleranceDeg {
			return below, above, nil
		}
		mid, err := s.eval(lo.Time.Add(hi.Time.Sub(lo.Time) / 2))
		if err != nil {
			return below, above, err
		}
		if s.above(mid) == s.above(lo) {
			lo = mid
		} else {
			hi = mid
		}
	}
	below, above = s.split(lo, hi)
	return below, above, nil
}

func (s *search) split(a, b transform.LookAngle) (below, above transform.LookAngle) {
	if s.above(a) {
		return b, a
	}
	return a, b
}

// refinePeak maximises elevation over [lo, hi] by golden-section search,
// stopping once the bracket is narrower than the culmination tolerance.
func (s *search) refinePeak(lo, hi time.Time) (transform.LookAngle, error) {
	span := hi.Sub(lo).Seconds()
	tol := s.f.cfg.CulminationTolerance.Seconds()
	at := func(x float64) time.Time {
		return lo.Add(time.Duration(x * float64(time.Second)))
	}
	// Near the zenith the curve has a cusp; keep the highest sample.
	var best transform.LookAngle
	sampled := false
	elev := func(x float64) (float64, error) {
		la, err := s.eval(at(x))
		if err == nil && (!sampled || la.ElevationDeg > best.ElevationDeg) {
			best, sampled = la, true
		}
		return la.ElevationDeg, err
	}

	a, b := 0.0, span
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, err := elev(c)
	if err != nil {
		return transform.LookAngle{}, err
	}
	fd, err := elev(d)
	if err != nil {
		return transform.LookAngle{}, err
	}
	for b-a > tol {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			if fc, err = elev(c); err != nil {
				return transform.LookAngle{}, err
			}
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			if fd, err = elev(d); err != nil {
				return transform.LookAngle{}, err
			}
		}
	}
	if _, err := elev((a + b) / 2); err != nil {
		return transform.LookAngle{}, err
	}
	return best, nil
}
