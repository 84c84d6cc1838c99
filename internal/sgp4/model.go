package sgp4

import (
	"fmt"
	"math"
)

// Elements are mean orbital elements in two-line element set units.
type Elements struct {
	InclinationDeg float64
	RAANDeg        float64
	Eccentricity   float64
	ArgPerigeeDeg  float64
	MeanAnomalyDeg float64
	MeanMotion     float64 // revolutions per day
	BStar          float64 // drag term, 1/Earth radii
}

// Model is an initialised SGP4 model for one element set. The coefficients
// are derived once in New and never change, so a Model is safe for
// concurrent use.
type Model struct {
	// Epoch elements, radians and radians/minute.
	incl, raan, ecc, argp, mo, bstar float64

	// Recovered (un-Kozai'd) mean motion and semi-major axis (Earth radii).
	xnodp, aodp float64

	simple    bool // perigee below 220 km: truncated drag terms
	perigeeKm float64

	eta, cosio, sinio      float64
	x3thm1, x1mth2, x7thm1 float64
	c1, c4, c5             float64
	d2, d3, d4             float64
	xmdot, omgdot, xnodot  float64
	omgcof, xmcof, xnodcf  float64
	t2cof, t3cof, t4cof    float64
	t5cof                  float64
	xlcof, aycof           float64
	delmo, sinmo           float64
}

// New validates el and computes the model coefficients.
func New(el Elements) (*Model, error) {
	if !(el.MeanMotion > 0) {
		return nil, &PropagationError{Err: fmt.Errorf("%w: mean motion %g rev/day", ErrModelLimits, el.MeanMotion)}
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return nil, &PropagationError{Err: fmt.Errorf("%w: eccentricity %g", ErrDecayed, el.Eccentricity)}
	}

	m := &Model{
		incl:  el.InclinationDeg * math.Pi / 180,
		raan:  el.RAANDeg * math.Pi / 180,
		ecc:   el.Eccentricity,
		argp:  el.ArgPerigeeDeg * math.Pi / 180,
		mo:    el.MeanAnomalyDeg * math.Pi / 180,
		bstar: el.BStar,
	}

	xno := el.MeanMotion * twoPi / minutesPerDay
	eo := m.ecc

	// Recover original mean motion and semi-major axis from the input elements.
	a1 := math.Pow(xke/xno, twoThirds)
	m.cosio = math.Cos(m.incl)
	theta2 := m.cosio * m.cosio
	m.x3thm1 = 3*theta2 - 1
	eosq := eo * eo
	betao2 := 1 - eosq
	betao := math.Sqrt(betao2)
	del1 := 1.5 * ck2 * m.x3thm1 / (a1 * a1 * betao * betao2)
	ao := a1 * (1 - del1*(0.5*twoThirds+del1*(1+134.0/81.0*del1)))
	delo := 1.5 * ck2 * m.x3thm1 / (ao * ao * betao * betao2)
	m.xnodp = xno / (1 + delo)
	m.aodp = ao / (1 - delo)

	if twoPi/m.xnodp >= deepSpacePeriod {
		return nil, &PropagationError{Err: fmt.Errorf("%w: period %.1f min requires deep-space terms", ErrModelLimits, twoPi/m.xnodp)}
	}

	m.perigeeKm = (m.aodp*(1-eo) - 1) * EarthRadiusKm
	m.simple = m.aodp*(1-eo) < 220/EarthRadiusKm+1

	// Below 156 km perigee the atmosphere shell parameters are lowered.
	s4 := sParam
	qoms24 := qoms2t
	if m.perigeeKm < 156 {
		s4 = m.perigeeKm - 78
		if m.perigeeKm <= 98 {
			s4 = 20
		}
		q := (120 - s4) / EarthRadiusKm
		qoms24 = q * q * q * q
		s4 = s4/EarthRadiusKm + 1
	}

	pinvsq := 1 / (m.aodp * m.aodp * betao2 * betao2)
	tsi := 1 / (m.aodp - s4)
	m.eta = m.aodp * eo * tsi
	etasq := m.eta * m.eta
	eeta := eo * m.eta
	psisq := math.Abs(1 - etasq)
	coef := qoms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)

	c2 := coef1 * m.xnodp * (m.aodp*(1+1.5*etasq+eeta*(4+etasq)) +
		0.75*ck2*tsi/psisq*m.x3thm1*(8+3*etasq*(8+etasq)))
	m.c1 = m.bstar * c2
	m.sinio = math.Sin(m.incl)

	var c3 float64
	if eo > 1e-4 {
		c3 = coef * tsi * a3ovk2 * m.xnodp * m.sinio / eo
	}
	m.x1mth2 = 1 - theta2

	m.c4 = 2 * m.xnodp * coef1 * m.aodp * betao2 *
		(m.eta*(2+0.5*etasq) + eo*(0.5+2*etasq) -
			2*ck2*tsi/(m.aodp*psisq)*
				(-3*m.x3thm1*(1-2*eeta+etasq*(1.5-0.5*eeta))+
					0.75*m.x1mth2*(2*etasq-eeta*(1+etasq))*math.Cos(2*m.argp)))
	m.c5 = 2 * coef1 * m.aodp * betao2 * (1 + 2.75*(etasq+eeta) + eeta*etasq)

	// Secular rates from J2 and J4.
	theta4 := theta2 * theta2
	temp1 := 3 * ck2 * pinvsq * m.xnodp
	temp2 := temp1 * ck2 * pinvsq
	temp3 := 1.25 * ck4 * pinvsq * pinvsq * m.xnodp
	m.xmdot = m.xnodp + 0.5*temp1*betao*m.x3thm1 + 0.0625*temp2*betao*(13-78*theta2+137*theta4)
	x1m5th := 1 - 5*theta2
	m.omgdot = -0.5*temp1*x1m5th + 0.0625*temp2*(7-114*theta2+395*theta4) + temp3*(3-36*theta2+49*theta4)
	xhdot1 := -temp1 * m.cosio
	m.xnodot = xhdot1 + (0.5*temp2*(4-19*theta2)+2*temp3*(3-7*theta2))*m.cosio

	m.omgcof = m.bstar * c3 * math.Cos(m.argp)
	if eo > 1e-4 {
		m.xmcof = -twoThirds * coef * m.bstar / eeta
	}
	m.xnodcf = 3.5 * betao2 * xhdot1 * m.c1
	m.t2cof = 1.5 * m.c1

	// Long-period coefficients; guard the 1+cos(i) singularity at i = 180 deg.
	den := 1 + m.cosio
	if math.Abs(den) < 1.5e-12 {
		den = 1.5e-12
	}
	m.xlcof = 0.125 * a3ovk2 * m.sinio * (3 + 5*m.cosio) / den
	m.aycof = 0.25 * a3ovk2 * m.sinio
	m.delmo = math.Pow(1+m.eta*math.Cos(m.mo), 3)
	m.sinmo = math.Sin(m.mo)
	m.x7thm1 = 7*theta2 - 1

	if !m.simple {
		c1sq := m.c1 * m.c1
		m.d2 = 4 * m.aodp * tsi * c1sq
		temp := m.d2 * tsi * m.c1 / 3
		m.d3 = (17*m.aodp + s4) * temp
		m.d4 = 0.5 * temp * m.aodp * tsi * (221*m.aodp + 31*s4) * m.c1
		m.t3cof = m.d2 + 2*c1sq
		m.t4cof = 0.25 * (3*m.d3 + m.c1*(12*m.d2+10*c1sq))
		m.t5cof = 0.2 * (3*m.d4 + 12*m.c1*m.d3 + 6*m.d2*m.d2 + 15*c1sq*(2*m.d2+c1sq))
	}

	return m, nil
}

// PerigeeKm returns the perigee altitude above the equatorial radius at epoch.
func (m *Model) PerigeeKm() float64 { return m.perigeeKm }

// SemiMajorAxisKm returns the recovered mean semi-major axis at epoch.
func (m *Model) SemiMajorAxisKm() float64 { return m.aodp * EarthRadiusKm }

// PeriodMinutes returns the anomalistic period implied by the recovered mean motion.
func (m *Model) PeriodMinutes() float64 { return twoPi / m.xnodp }

// Simple reports whether the truncated low-perigee drag model is in use.
func (m *Model) Simple() bool { return m.simple }
