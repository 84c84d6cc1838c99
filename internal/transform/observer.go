package transform

import (
	"errors"
	"fmt"
	"math"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ErrInvalidLocation is wrapped by ValidateGeodetic failures.
var ErrInvalidLocation = errors.New("invalid observer location")

// Observer is a fixed ground location. The ECEF position and the SEZ
// rotation terms are computed once so they can be reused across many
// look-angle evaluations. Observer values are immutable.
type Observer struct {
	LatDeg float64 // geodetic latitude, [-90, 90]
	LonDeg float64 // longitude, [-180, 180]
	AltM   float64 // metres above the WGS-84 ellipsoid

	ecef                           Vec3 // km
	sinLat, cosLat, sinLon, cosLon float64
}

// ValidateGeodetic checks latitude and longitude ranges in degrees.
func ValidateGeodetic(latDeg, lonDeg, altM float64) error {
	switch {
	case math.IsNaN(latDeg) || latDeg < -90 || latDeg > 90:
		return fmt.Errorf("%w: latitude %g outside [-90, 90]", ErrInvalidLocation, latDeg)
	case math.IsNaN(lonDeg) || lonDeg < -180 || lonDeg > 180:
		return fmt.Errorf("%w: longitude %g outside [-180, 180]", ErrInvalidLocation, lonDeg)
	case math.IsNaN(altM) || math.IsInf(altM, 0):
		return fmt.Errorf("%w: altitude %g", ErrInvalidLocation, altM)
	}
	return nil
}

// NewObserver validates the geodetic coordinates and precomputes the
// observer's ECEF position.
func NewObserver(latDeg, lonDeg, altM float64) (Observer, error) {
	if err := ValidateGeodetic(latDeg, lonDeg, altM); err != nil {
		return Observer{}, err
	}

	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	h := altM / 1000.0

	return Observer{
		LatDeg: latDeg,
		LonDeg: lonDeg,
		AltM:   altM,
		ecef: Vec3{
			X: (n + h) * cosLat * cosLon,
			Y: (n + h) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + h) * sinLat,
		},
		sinLat: sinLat,
		cosLat: cosLat,
		sinLon: sinLon,
		cosLon: cosLon,
	}, nil
}

// ECEF returns the observer's Earth-fixed position in km.
func (o Observer) ECEF() Vec3 {
	return o.ecef
}

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, altitude in km).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltKm float64
}

// ECEFToGeodetic converts an ECEF position (km) to geodetic coordinates with
// Bowring's iteration, which settles in 2-3 rounds for orbital radii.
func ECEFToGeodetic(p Vec3) GeodeticPoint {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)
	lat := math.Atan2(p.Z, rho*(1-wgs84E2))

	for range 5 {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, rho)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = rho/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}
