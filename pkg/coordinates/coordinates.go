// Package coordinates provides the spherical-earth geometry used to derive
// aircraft motion between position samples.
package coordinates

import "math"

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the Earth's mean radius in meters
	EarthRadiusMeters = 6371000.0

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// MetersToFeet converts meters to feet
	MetersToFeet = 3.28084

	// MetersPerSecondToKnots converts m/s to knots
	MetersPerSecondToKnots = 1.943844
)

// Geographic represents a position on Earth's surface.
// Latitude and longitude are not range checked anywhere in this package:
// out-of-range values flow through the formulas unchanged.
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64

	// Altitude in meters
	Altitude float64
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians,
		g.Longitude * DegreesToRadians,
		g.Altitude
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	// math.Mod(-1e-15, 360) + 360 rounds to 360
	if az >= 360.0 {
		az = 0
	}
	return az
}

// NormalizeAngle normalizes an angle to the [-180, 180] range.
func NormalizeAngle(angle float64) float64 {
	for angle > 180.0 {
		angle -= 360.0
	}
	for angle < -180.0 {
		angle += 360.0
	}
	return angle
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees [0, 360), where 0 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1, _ := from.ToRadians()
	lat2, lon2, _ := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// GroundDistanceMeters calculates the great-circle distance between two points.
// Uses the Haversine formula; altitude is ignored.
func GroundDistanceMeters(from, to Geographic) float64 {
	lat1, lon1, _ := from.ToRadians()
	lat2, lon2, _ := to.ToRadians()

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceNauticalMiles returns the great-circle distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return GroundDistanceMeters(from, to) / 1852.0
}

// SlantDistanceMeters is the straight-line distance combining the ground
// distance and the altitude change between the two points.
func SlantDistanceMeters(from, to Geographic) float64 {
	ground := GroundDistanceMeters(from, to)
	dAlt := to.Altitude - from.Altitude
	return math.Sqrt(ground*ground + dAlt*dAlt)
}

// FlightPathAngle returns the climb angle in degrees between two points:
// atan2(altitude change, ground distance). Positive = climbing.
//
// This is the angle of the flight path relative to the local horizontal,
// not the aircraft's body pitch attitude (which also includes angle of attack).
func FlightPathAngle(from, to Geographic) float64 {
	ground := GroundDistanceMeters(from, to)
	return math.Atan2(to.Altitude-from.Altitude, ground) * RadiansToDegrees
}

// Lerp linearly interpolates between a and b.
// fraction=0 returns a, fraction=1 returns b.
func Lerp(a, b, fraction float64) float64 {
	return a + (b-a)*fraction
}

// LerpAzimuth interpolates between two azimuths along the shortest arc.
// 350° -> 10° at 0.5 gives 0°, not 180°. Result is in [0, 360).
func LerpAzimuth(from, to, fraction float64) float64 {
	delta := NormalizeAngle(to - from)
	return NormalizeAzimuth(from + delta*fraction)
}

// InterpolateGreatCircle finds a point along a great circle path.
// fraction=0 returns start point, fraction=1 returns end point.
// Altitude is interpolated linearly.
//
// Uses spherical linear interpolation (slerp) formula.
func InterpolateGreatCircle(from, to Geographic, fraction float64) Geographic {
	lat1Rad, lon1Rad, _ := from.ToRadians()
	lat2Rad, lon2Rad, _ := to.ToRadians()

	alt := Lerp(from.Altitude, to.Altitude, fraction)

	// Angular distance, clamped against rounding just above 1
	cosD := math.Sin(lat1Rad)*math.Sin(lat2Rad) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lon2Rad-lon1Rad)
	d := math.Acos(math.Max(-1, math.Min(1, cosD)))

	// Points very close together: slerp degenerates, plain lerp is exact enough
	if d < 1e-10 {
		return Geographic{
			Latitude:  Lerp(from.Latitude, to.Latitude, fraction),
			Longitude: Lerp(from.Longitude, to.Longitude, fraction),
			Altitude:  alt,
		}
	}

	a := math.Sin((1-fraction)*d) / math.Sin(d)
	b := math.Sin(fraction*d) / math.Sin(d)

	x := a*math.Cos(lat1Rad)*math.Cos(lon1Rad) + b*math.Cos(lat2Rad)*math.Cos(lon2Rad)
	y := a*math.Cos(lat1Rad)*math.Sin(lon1Rad) + b*math.Cos(lat2Rad)*math.Sin(lon2Rad)
	z := a*math.Sin(lat1Rad) + b*math.Sin(lat2Rad)

	latRad := math.Atan2(z, math.Sqrt(x*x+y*y))
	lonRad := math.Atan2(y, x)

	return Geographic{
		Latitude:  latRad * RadiansToDegrees,
		Longitude: lonRad * RadiansToDegrees,
		Altitude:  alt,
	}
}
