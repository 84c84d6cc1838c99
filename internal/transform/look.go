package transform

import (
	"math"
	"time"
)

// LookAngle is where a satellite appears from an observer at Time.
type LookAngle struct {
	Time         time.Time
	AzimuthDeg   float64 // [0, 360), 0 = north, clockwise
	ElevationDeg float64 // [-90, 90], 0 = horizon
	RangeKm      float64
	RangeRateKmS float64 // positive when receding
}

// ToLookAngle computes the look angle of sv from obs at the instant at.
func ToLookAngle(sv StateVector, obs Observer, at time.Time) LookAngle {
	la := ToLookAngleWithGMST(sv, obs, GMST(at))
	la.Time = at
	return la
}

// ToLookAngleWithGMST is ToLookAngle with a precomputed GMST (radians).
// The returned Time is sv.Time.
//
// The range vector is projected onto SEZ (South, East, Zenith) per
// Vallado Section 4.4.
func ToLookAngleWithGMST(sv StateVector, obs Observer, gmst float64) LookAngle {
	sat := TEMEToECEFWithGMST(sv, gmst)
	r := sat.Position.sub(obs.ecef)

	south := obs.sinLat*obs.cosLon*r.X + obs.sinLat*obs.sinLon*r.Y - obs.cosLat*r.Z
	east := -obs.sinLon*r.X + obs.cosLon*r.Y
	zenith := obs.cosLat*obs.cosLon*r.X + obs.cosLat*obs.sinLon*r.Y + obs.sinLat*r.Z

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	el := math.Asin(math.Max(-1, math.Min(1, zenith/rng)))

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	azDeg := az * 180.0 / math.Pi
	if azDeg >= 360 {
		azDeg = 0
	}

	return LookAngle{
		Time:         sv.Time,
		AzimuthDeg:   azDeg,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeKm:      rng,
		RangeRateKmS: sat.Velocity.dot(r) / rng,
	}
}
