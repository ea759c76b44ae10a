package trajectory

import (
	"fmt"
	"math"
	"sort"

	"github.com/fleray/Flight-Simulator/pkg/coordinates"
)

// BearingMode selects how bearings are blended between two points.
type BearingMode int

const (
	// BearingLinear interpolates the raw degree values. Between 350° and 10°
	// this sweeps back through 180°.
	BearingLinear BearingMode = iota

	// BearingShortestArc interpolates along the smaller angle, so 350° to 10°
	// passes through 0°.
	BearingShortestArc
)

// PathMode selects how positions are blended between two points.
type PathMode int

const (
	// PathLinear interpolates latitude and longitude independently.
	PathLinear PathMode = iota

	// PathGreatCircle follows the great circle between the two points.
	PathGreatCircle
)

// ParseBearingMode converts a config value ("linear" or "shortest") to a BearingMode.
// An empty string selects BearingLinear.
func ParseBearingMode(s string) (BearingMode, error) {
	switch s {
	case "", "linear":
		return BearingLinear, nil
	case "shortest", "shortest_arc":
		return BearingShortestArc, nil
	default:
		return BearingLinear, fmt.Errorf("unknown bearing mode %q (expected linear or shortest)", s)
	}
}

func (m BearingMode) String() string {
	if m == BearingShortestArc {
		return "shortest"
	}
	return "linear"
}

// ParsePathMode converts a config value ("linear" or "great_circle") to a PathMode.
// An empty string selects PathLinear.
func ParsePathMode(s string) (PathMode, error) {
	switch s {
	case "", "linear":
		return PathLinear, nil
	case "great_circle", "greatcircle":
		return PathGreatCircle, nil
	default:
		return PathLinear, fmt.Errorf("unknown path mode %q (expected linear or great_circle)", s)
	}
}

func (m PathMode) String() string {
	if m == PathGreatCircle {
		return "great_circle"
	}
	return "linear"
}

// Interpolator computes the aircraft state between recorded points.
// The zero value reproduces plain linear interpolation of every field.
type Interpolator struct {
	Bearing BearingMode
	Path    PathMode
}

// Interpolate returns the aircraft state at ts using linear interpolation.
// See Interpolator.At.
func Interpolate(points []AircraftPoint, ts float64) *AircraftPoint {
	return Interpolator{}.At(points, ts)
}

// At returns the aircraft state at ts, or nil when points is empty.
//
// points must be sorted by ascending timestamp. Queries at or before the
// first point return a copy of the first point, and queries at or after the
// last point return a copy of the last: there is no extrapolation.
//
// Between two points, longitude, latitude, altitude, bearing and pitch are
// interpolated with fraction (ts - prev.Timestamp) / (next.Timestamp - prev.Timestamp).
// Speed, hints and the raw row are taken from the earlier point. The result
// is always a fresh value; points is never modified.
func (in Interpolator) At(points []AircraftPoint, ts float64) *AircraftPoint {
	prevIdx, nextIdx, f, ok := Fraction(points, ts)
	if !ok {
		return nil
	}
	if prevIdx == nextIdx {
		p := points[prevIdx]
		return &p
	}
	return in.between(points[prevIdx], points[nextIdx], f)
}

// between blends prev towards next by fraction f.
func (in Interpolator) between(prev, next AircraftPoint, f float64) *AircraftPoint {
	p := prev

	switch in.Path {
	case PathGreatCircle:
		g := coordinates.InterpolateGreatCircle(prev.Geographic(), next.Geographic(), f)
		p.Lat, p.Lon, p.Alt = g.Latitude, g.Longitude, g.Altitude
	default:
		p.Lon = coordinates.Lerp(prev.Lon, next.Lon, f)
		p.Lat = coordinates.Lerp(prev.Lat, next.Lat, f)
		p.Alt = coordinates.Lerp(prev.Alt, next.Alt, f)
	}

	switch in.Bearing {
	case BearingShortestArc:
		p.Bearing = coordinates.LerpAzimuth(prev.Bearing, next.Bearing, f)
	default:
		p.Bearing = coordinates.Lerp(prev.Bearing, next.Bearing, f)
	}

	p.Pitch = coordinates.Lerp(prev.Pitch, next.Pitch, f)
	p.Position = [3]float64{p.Lon, p.Lat, p.Alt}

	return &p
}

// Fraction returns where ts falls between the bracketing points, along with
// their indices. For clamped queries prevIdx == nextIdx and f is 0.
// A NaN ts clamps to the first point. ok is false when points is empty.
func Fraction(points []AircraftPoint, ts float64) (prevIdx, nextIdx int, f float64, ok bool) {
	n := len(points)
	if n == 0 {
		return 0, 0, 0, false
	}
	if math.IsNaN(ts) || ts <= points[0].Timestamp {
		return 0, 0, 0, true
	}
	if ts >= points[n-1].Timestamp {
		return n - 1, n - 1, 0, true
	}

	// First point with timestamp >= ts; the clamps above keep it in [1, n-1]
	idx := sort.Search(n, func(i int) bool {
		return points[i].Timestamp >= ts
	})
	prev, next := points[idx-1], points[idx]

	// Only reachable with unsorted points
	if !(next.Timestamp > prev.Timestamp) {
		return idx - 1, idx - 1, 0, true
	}
	return idx - 1, idx, (ts - prev.Timestamp) / (next.Timestamp - prev.Timestamp), true
}
