// Package transform turns SGP4 output into what an observer on the ground sees.
//
// TEME (True Equator Mean Equinox) is rotated to ECEF by GMST alone
// (TEME → PEF ≈ ECEF). Polar motion and the equation of the equinoxes are
// ignored, which costs at most ~50 m, far below what a pass time needs.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"
)

// Vec3 is a Cartesian triple in kilometres (or km/s for velocities).
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) sub(w Vec3) Vec3 {
	return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

func (v Vec3) dot(w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Finite reports whether no component is NaN or infinite.
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// StateVector is a satellite state in the TEME frame at a given instant.
type StateVector struct {
	Time     time.Time
	Position Vec3 // km
	Velocity Vec3 // km/s
}

// ECEF is an Earth-fixed position and velocity.
type ECEF struct {
	Position Vec3 // km
	Velocity Vec3 // km/s, relative to the rotating Earth
}

// TEMEToECEF rotates sv into the Earth-fixed frame at sv.Time.
func TEMEToECEF(sv StateVector) ECEF {
	return TEMEToECEFWithGMST(sv, GMST(sv.Time))
}

// TEMEToECEFWithGMST rotates sv using a precomputed GMST angle (radians).
// Batch callers compute GMST once per instant.
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(sv StateVector, gmst float64) ECEF {
	sinG, cosG := math.Sincos(gmst)
	p, v := sv.Position, sv.Velocity

	pos := Vec3{
		X: p.X*cosG + p.Y*sinG,
		Y: -p.X*sinG + p.Y*cosG,
		Z: p.Z,
	}
	// ω × r = [-ω y, ω x, 0]
	vel := Vec3{
		X: v.X*cosG + v.Y*sinG + OmegaEarth*pos.Y,
		Y: -v.X*sinG + v.Y*cosG - OmegaEarth*pos.X,
		Z: v.Z,
	}
	return ECEF{Position: pos, Velocity: vel}
}
