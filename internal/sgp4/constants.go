// Package sgp4 implements the near-Earth SGP4 analytical propagator
// (Spacetrack Report #3, Hoots & Roehrich 1980) with WGS-72 constants.
//
// Deep-space (SDP4) terms are not modelled; element sets with an orbital
// period of 225 minutes or more are rejected at initialisation.
package sgp4

import "math"

// WGS-72 geopotential constants, the set the element-set producers fit against.
const (
	EarthRadiusKm = 6378.135 // xkmper, equatorial radius (km)
	muKm3s2       = 398600.8 // gravitational parameter (km^3/s^2)

	j2 = 1.082616e-3
	j3 = -2.53881e-6
	j4 = -1.65597e-6

	ck2    = 0.5 * j2
	ck4    = -0.375 * j4
	a3ovk2 = -j3 / ck2

	// Density function parameters for the 78..120 km atmosphere shell.
	qoms2tBase = (120.0 - 78.0) / EarthRadiusKm
	qoms2t     = qoms2tBase * qoms2tBase * qoms2tBase * qoms2tBase
	sParam     = 1.0 + 78.0/EarthRadiusKm

	twoThirds     = 2.0 / 3.0
	twoPi         = 2.0 * math.Pi
	minutesPerDay = 1440.0

	// deepSpacePeriod is the orbital period (minutes) above which SDP4 is required.
	deepSpacePeriod = 225.0
)

// xke is sqrt(GM) in Earth radii^1.5 per minute.
var xke = 60.0 / math.Sqrt(EarthRadiusKm*EarthRadiusKm*EarthRadiusKm/muKm3s2)

const (
	maxKeplerIterations = 10
	keplerTolerance     = 1e-8 // radians
	maxKeplerStep       = 0.95 // cap on a single Newton step (radians)
)
