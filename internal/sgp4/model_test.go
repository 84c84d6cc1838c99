package sgp4

import (
	"errors"
	"math"
	"testing"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Test case 88888 from Spacetrack Report #3, WGS-72.
var str3Elements = Elements{
	InclinationDeg: 72.8435,
	RAANDeg:        115.9689,
	Eccentricity:   0.0086731,
	ArgPerigeeDeg:  52.6988,
	MeanAnomalyDeg: 110.5714,
	MeanMotion:     16.05824518,
	BStar:          0.66816e-4,
}

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  30270-3 0  9999"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49815311447215"
)

var issElements = Elements{
	InclinationDeg: 51.6416,
	RAANDeg:        247.4627,
	Eccentricity:   0.0006703,
	ArgPerigeeDeg:  130.5360,
	MeanAnomalyDeg: 325.0288,
	MeanMotion:     15.49815311,
	BStar:          0.30270e-3,
}

func mustModel(t *testing.T, el Elements) *Model {
	t.Helper()
	m, err := New(el)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestPropagateReferenceVectors(t *testing.T) {
	m := mustModel(t, str3Elements)

	tests := []struct {
		tsince float64
		pos    Vector
	}{
		{0, Vector{2328.96975262, -5995.22051338, 1719.97297192}},
		{360, Vector{2456.10706534, -6071.93855503, 1222.89768554}},
		{720, Vector{2567.56229695, -6112.50383923, 713.96374435}},
		{1080, Vector{2663.08964352, -6115.48290885, 196.40072867}},
		{1440, Vector{2742.55398832, -6079.67009123, -326.39012649}},
	}

	for _, tt := range tests {
		pos, _, err := m.Propagate(tt.tsince)
		if err != nil {
			t.Fatalf("t=%.0f: %v", tt.tsince, err)
		}
		d := Vector{pos.X - tt.pos.X, pos.Y - tt.pos.Y, pos.Z - tt.pos.Z}.Norm()
		if d > 1e-3 {
			t.Errorf("t=%.0f: position = %+v, want %+v (off by %.6f km)", tt.tsince, pos, tt.pos, d)
		}
	}
}

func TestPropagateReferenceVelocity(t *testing.T) {
	m := mustModel(t, str3Elements)

	tests := []struct {
		tsince float64
		vel    Vector
	}{
		{0, Vector{2.91207328, -0.98341796, -7.09081621}},
		{360, Vector{2.67939004, -0.44829081, -7.22879215}},
	}

	for _, tt := range tests {
		_, vel, err := m.Propagate(tt.tsince)
		if err != nil {
			t.Fatalf("t=%.0f: %v", tt.tsince, err)
		}
		d := Vector{vel.X - tt.vel.X, vel.Y - tt.vel.Y, vel.Z - tt.vel.Z}.Norm()
		if d > 1e-6 {
			t.Errorf("t=%.0f: velocity = %+v, want %+v", tt.tsince, vel, tt.vel)
		}
	}
}

func TestModelDerivedQuantities(t *testing.T) {
	m := mustModel(t, issElements)

	if p := m.PeriodMinutes(); p < 92 || p > 94 {
		t.Errorf("PeriodMinutes = %.2f, want ~92.9", p)
	}
	if h := m.PerigeeKm(); h < 400 || h > 430 {
		t.Errorf("PerigeeKm = %.1f, want ~413", h)
	}
	if m.Simple() {
		t.Error("ISS perigee is above 220 km, full drag model expected")
	}
	if a := m.SemiMajorAxisKm(); a < EarthRadiusKm+400 || a > EarthRadiusKm+440 {
		t.Errorf("SemiMajorAxisKm = %.1f", a)
	}
}

func TestModelLowPerigeeUsesSimpleDrag(t *testing.T) {
	el := issElements
	el.MeanMotion = 16.3
	el.Eccentricity = 0.0005
	m := mustModel(t, el)

	if h := m.PerigeeKm(); h < 150 || h >= 220 {
		t.Fatalf("PerigeeKm = %.1f, want between 150 and 220", h)
	}
	if !m.Simple() {
		t.Error("perigee below 220 km should select the truncated drag model")
	}
	if _, _, err := m.Propagate(0); err != nil {
		t.Errorf("Propagate at epoch: %v", err)
	}
}

func TestPropagateRadiusBand(t *testing.T) {
	m := mustModel(t, issElements)

	for tsince := 0.0; tsince <= 1440; tsince += 7 {
		pos, vel, err := m.Propagate(tsince)
		if err != nil {
			t.Fatalf("t=%.0f: %v", tsince, err)
		}
		if r := pos.Norm(); r < 6700 || r > 6850 {
			t.Fatalf("t=%.0f: radius %.1f km outside LEO band", tsince, r)
		}
		if v := vel.Norm(); v < 7.5 || v > 7.9 {
			t.Fatalf("t=%.0f: speed %.3f km/s outside LEO band", tsince, v)
		}
	}
}

func TestPropagateMatchesGoSatellite(t *testing.T) {
	m := mustModel(t, issElements)
	sat := satellite.TLEToSat(issLine1, issLine2, satellite.GravityWGS72)

	// Epoch is 2024-04-09 12:00:00 UTC.
	tests := []struct {
		tsince                       float64
		year, mon, day, hour, minute int
	}{
		{0, 2024, 4, 9, 12, 0},
		{90, 2024, 4, 9, 13, 30},
		{1440, 2024, 4, 10, 12, 0},
		{-720, 2024, 4, 9, 0, 0},
	}

	for _, tt := range tests {
		pos, _, err := m.Propagate(tt.tsince)
		if err != nil {
			t.Fatalf("t=%.0f: %v", tt.tsince, err)
		}
		ref, _ := satellite.Propagate(sat, tt.year, tt.mon, tt.day, tt.hour, tt.minute, 0)
		d := Vector{pos.X - ref.X, pos.Y - ref.Y, pos.Z - ref.Z}.Norm()
		if d > 1.0 {
			t.Errorf("t=%.0f: differs from go-satellite by %.3f km", tt.tsince, d)
		}
	}
}

func TestNewRejectsDeepSpace(t *testing.T) {
	// Geostationary mean motion.
	el := Elements{InclinationDeg: 0.05, Eccentricity: 0.0002, MeanMotion: 1.0027, BStar: 0}
	_, err := New(el)
	if !errors.Is(err, ErrModelLimits) {
		t.Fatalf("New(GEO) error = %v, want ErrModelLimits", err)
	}
}

func TestNewRejectsInvalidElements(t *testing.T) {
	tests := []struct {
		name string
		el   Elements
		want error
	}{
		{"zero mean motion", Elements{InclinationDeg: 51.6, MeanMotion: 0}, ErrModelLimits},
		{"negative eccentricity", Elements{InclinationDeg: 51.6, Eccentricity: -0.1, MeanMotion: 15}, ErrDecayed},
		{"hyperbolic", Elements{InclinationDeg: 51.6, Eccentricity: 1.2, MeanMotion: 15}, ErrDecayed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.el)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPropagateDecayedAtEpoch(t *testing.T) {
	// 18 rev/day puts the recovered perigee inside the Earth.
	m := mustModel(t, Elements{InclinationDeg: 51.6, RAANDeg: 100, Eccentricity: 0.001, MeanMotion: 18, BStar: 1e-4})

	_, _, err := m.Propagate(0)
	if !errors.Is(err, ErrDecayed) {
		t.Fatalf("error = %v, want ErrDecayed", err)
	}
	var perr *PropagationError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not *PropagationError", err)
	}
	if perr.Tsince != 0 {
		t.Errorf("Tsince = %v, want 0", perr.Tsince)
	}
}

func TestPropagateDecaysUnderDrag(t *testing.T) {
	m := mustModel(t, Elements{InclinationDeg: 51.6, RAANDeg: 100, Eccentricity: 0.0005, MeanMotion: 16.2, BStar: 0.05})

	pos, _, err := m.Propagate(0)
	if err != nil {
		t.Fatalf("t=0: %v", err)
	}
	if r := pos.Norm(); r < 6500 || r > 6700 {
		t.Errorf("t=0: radius %.1f km", r)
	}

	_, _, err = m.Propagate(1440)
	if !errors.Is(err, ErrDecayed) {
		t.Fatalf("t=1440: error = %v, want ErrDecayed", err)
	}
}

func TestSolveKepler(t *testing.T) {
	e, err := solveKepler(0.5, 0.01, 0.0)
	if err != nil {
		t.Fatalf("solveKepler: %v", err)
	}
	// E - e sin E = M for the circular-ish case.
	if got := e - 0.01*math.Sin(e); math.Abs(got-0.5) > 1e-7 {
		t.Errorf("residual M = %.10f, want 0.5", got)
	}

	if _, err := solveKepler(0.5, 0.99, 0); err != nil {
		t.Errorf("high eccentricity: %v", err)
	}
}

func TestSolveKeplerNotConverged(t *testing.T) {
	_, err := solveKepler(1e-4, 0.9999, 0)
	if !errors.Is(err, ErrKeplerNotConverged) {
		t.Fatalf("error = %v, want ErrKeplerNotConverged", err)
	}
}
