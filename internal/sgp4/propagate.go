package sgp4

import (
	"math"
)

// Vector is a Cartesian triple.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Propagate advances the model tsince minutes from epoch and returns the
// TEME position (km) and velocity (km/s).
func (m *Model) Propagate(tsince float64) (pos, vel Vector, err error) {
	// Secular gravity and atmospheric drag.
	xmdf := m.mo + m.xmdot*tsince
	omgadf := m.argp + m.omgdot*tsince
	xnoddf := m.raan + m.xnodot*tsince
	omega := omgadf
	xmp := xmdf
	tsq := tsince * tsince
	xnode := xnoddf + m.xnodcf*tsq
	tempa := 1 - m.c1*tsince
	tempe := m.bstar * m.c4 * tsince
	templ := m.t2cof * tsq

	if !m.simple {
		delomg := m.omgcof * tsince
		delm := m.xmcof * (math.Pow(1+m.eta*math.Cos(xmdf), 3) - m.delmo)
		temp := delomg + delm
		xmp = xmdf + temp
		omega = omgadf - temp
		tcube := tsq * tsince
		tfour := tsince * tcube
		tempa = tempa - m.d2*tsq - m.d3*tcube - m.d4*tfour
		tempe += m.bstar * m.c5 * (math.Sin(xmp) - m.sinmo)
		templ += m.t3cof*tcube + tfour*(m.t4cof+tsince*m.t5cof)
	}

	if tempa <= 0 {
		return Vector{}, Vector{}, decayed(tsince, "drag term collapsed semi-major axis")
	}
	a := m.aodp * tempa * tempa
	e := m.ecc - tempe
	if e >= 1 || e < -0.001 {
		return Vector{}, Vector{}, decayed(tsince, "eccentricity %g", e)
	}
	if e < 1e-6 {
		e = 1e-6
	}
	if a*(1-e) < 1 {
		return Vector{}, Vector{}, decayed(tsince, "perigee radius %.1f km below surface", a*(1-e)*EarthRadiusKm)
	}
	xl := xmp + omega + xnode + m.xnodp*templ
	beta2 := 1 - e*e
	xn := xke / math.Pow(a, 1.5)

	// Long-period periodics.
	axn := e * math.Cos(omega)
	temp := 1 / (a * beta2)
	xll := temp * m.xlcof * axn
	aynl := temp * m.aycof
	xlt := xl + xll
	ayn := e*math.Sin(omega) + aynl

	elsq := axn*axn + ayn*ayn
	if elsq >= 1 {
		return Vector{}, Vector{}, decayed(tsince, "perturbed eccentricity squared %g", elsq)
	}

	capu := math.Mod(xlt-xnode, twoPi)
	epw, err := solveKepler(capu, axn, ayn)
	if err != nil {
		return Vector{}, Vector{}, &PropagationError{Tsince: tsince, Err: err}
	}

	sinepw, cosepw := math.Sincos(epw)
	ecose := axn*cosepw + ayn*sinepw
	esine := axn*sinepw - ayn*cosepw

	// Short-period preliminary quantities.
	pl := a * (1 - elsq)
	if pl < 0 {
		return Vector{}, Vector{}, decayed(tsince, "semi-latus rectum %g", pl)
	}
	r := a * (1 - ecose)
	rdot := xke * math.Sqrt(a) * esine / r
	rfdot := xke * math.Sqrt(pl) / r
	betal := math.Sqrt(1 - elsq)
	temp3 := 1 / (1 + betal)
	cosu := a / r * (cosepw - axn + ayn*esine*temp3)
	sinu := a / r * (sinepw - ayn - axn*esine*temp3)
	u := math.Atan2(sinu, cosu)
	sin2u := 2 * sinu * cosu
	cos2u := 2*cosu*cosu - 1

	// Short-period periodics.
	temp1 := ck2 / pl
	temp2 := temp1 / pl
	rk := r*(1-1.5*temp2*betal*m.x3thm1) + 0.5*temp1*m.x1mth2*cos2u
	uk := u - 0.25*temp2*m.x7thm1*sin2u
	xnodek := xnode + 1.5*temp2*m.cosio*sin2u
	xinck := m.incl + 1.5*temp2*m.cosio*m.sinio*cos2u
	rdotk := rdot - xn*temp1*m.x1mth2*sin2u
	rfdotk := rfdot + xn*temp1*(m.x1mth2*cos2u+1.5*m.x3thm1)

	if rk < 1 {
		return Vector{}, Vector{}, decayed(tsince, "radius %.1f km below surface", rk*EarthRadiusKm)
	}

	// Orientation vectors.
	sinuk, cosuk := math.Sincos(uk)
	sinik, cosik := math.Sincos(xinck)
	sinnok, cosnok := math.Sincos(xnodek)
	xmx := -sinnok * cosik
	xmy := cosnok * cosik
	ux := xmx*sinuk + cosnok*cosuk
	uy := xmy*sinuk + sinnok*cosuk
	uz := sinik * sinuk
	vx := xmx*cosuk - cosnok*sinuk
	vy := xmy*cosuk - sinnok*sinuk
	vz := sinik * cosuk

	pos = Vector{
		X: rk * ux * EarthRadiusKm,
		Y: rk * uy * EarthRadiusKm,
		Z: rk * uz * EarthRadiusKm,
	}
	vf := EarthRadiusKm / 60.0
	vel = Vector{
		X: (rdotk*ux + rfdotk*vx) * vf,
		Y: (rdotk*uy + rfdotk*vy) * vf,
		Z: (rdotk*uz + rfdotk*vz) * vf,
	}
	return pos, vel, nil
}

// solveKepler solves the modified Kepler equation for the eccentric
// longitude with a bounded Newton iteration.
func solveKepler(capu, axn, ayn float64) (float64, error) {
	epw := capu
	for range maxKeplerIterations {
		sinepw, cosepw := math.Sincos(epw)
		ecose := axn*cosepw + ayn*sinepw
		esine := axn*sinepw - ayn*cosepw
		step := (capu - epw + esine) / (1 - ecose)
		if step > maxKeplerStep {
			step = maxKeplerStep
		} else if step < -maxKeplerStep {
			step = -maxKeplerStep
		}
		epw += step
		if math.Abs(step) < keplerTolerance {
			return epw, nil
		}
	}
	return 0, ErrKeplerNotConverged
}
