// Package trajectory turns recorded trace samples into an animatable flight
// path: it derives bearing, pitch and speed between consecutive samples and
// interpolates the aircraft state at any time within the recording.
//
// All functions in this package are pure. A Trajectory is never mutated
// after Build returns it; rebuild it when the source document changes.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/fleray/Flight-Simulator/pkg/coordinates"
	"github.com/fleray/Flight-Simulator/pkg/trace"
)

// ErrOutOfOrder is reported by CheckOrder when timestamps decrease.
var ErrOutOfOrder = errors.New("trace samples are not in time order")

// AircraftPoint is a sample enriched with the motion derived towards the
// next sample.
type AircraftPoint struct {
	Sample

	// Bearing is the direction of travel in degrees [0, 360), 0 = North
	Bearing float64 `json:"bearing"`

	// Pitch is the flight-path angle in degrees: atan2(climb, ground distance).
	// Positive = climbing. This is not the aircraft's body pitch attitude,
	// which would also include angle of attack.
	Pitch float64 `json:"pitch"`

	// Speed is the 3D speed in m/s
	Speed float64 `json:"speed"`

	// Position is [lon, lat, alt], the order map renderers expect
	Position [3]float64 `json:"position"`
}

// Trajectory is the derived flight path of one trace document.
type Trajectory struct {
	// Path is the [lon, lat, alt] polyline of every sample in input order
	Path [][3]float64

	// Aircraft holds one enriched point per sample, same order as Path
	Aircraft []AircraftPoint

	// MinTimestamp and MaxTimestamp are the timestamps of the first and
	// last points, both 0 for an empty trajectory
	MinTimestamp float64
	MaxTimestamp float64
}

// Len returns the number of points.
func (t Trajectory) Len() int {
	return len(t.Aircraft)
}

// IsEmpty reports whether the trajectory has no points.
func (t Trajectory) IsEmpty() bool {
	return len(t.Aircraft) == 0
}

// Duration returns MaxTimestamp - MinTimestamp.
func (t Trajectory) Duration() float64 {
	return t.MaxTimestamp - t.MinTimestamp
}

// Build derives the trajectory of doc.
//
// A nil document or one whose trace is not an array yields an empty
// Trajectory. Rows are used in file order: Build neither sorts nor
// deduplicates, so callers that cannot trust their input should run
// CheckOrder on the result.
//
// For every sample except the last:
//   - Bearing is the heading hint when present, otherwise the initial
//     great-circle bearing to the next sample
//   - Pitch is the flight-path angle to the next sample
//   - Speed is the speed hint when present, otherwise the slant distance to
//     the next sample divided by the elapsed time (0 when no time elapsed)
//
// The last sample has no leg to derive from: its bearing and speed fall
// back to the hints (or 0) and its pitch is 0.
func Build(doc *trace.Document) Trajectory {
	samples := Samples(doc)
	if len(samples) == 0 {
		return Trajectory{
			Path:     [][3]float64{},
			Aircraft: []AircraftPoint{},
		}
	}

	path := make([][3]float64, len(samples))
	aircraft := make([]AircraftPoint, len(samples))

	for i, s := range samples {
		pos := [3]float64{s.Lon, s.Lat, s.Alt}
		path[i] = pos

		point := AircraftPoint{
			Sample:   s,
			Bearing:  hintOr(s.HeadingHint, 0),
			Speed:    hintOr(s.SpeedHint, 0),
			Position: pos,
		}

		if i < len(samples)-1 {
			deriveLeg(&point, samples[i+1])
		}

		aircraft[i] = point
	}

	return Trajectory{
		Path:         path,
		Aircraft:     aircraft,
		MinTimestamp: aircraft[0].Timestamp,
		MaxTimestamp: aircraft[len(aircraft)-1].Timestamp,
	}
}

// deriveLeg fills in the motion of p towards next.
func deriveLeg(p *AircraftPoint, next Sample) {
	from := p.Geographic()
	to := next.Geographic()

	if p.HeadingHint == nil {
		p.Bearing = coordinates.Bearing(from, to)
	}

	p.Pitch = coordinates.FlightPathAngle(from, to)

	if p.SpeedHint == nil {
		p.Speed = legSpeed(from, to, next.Timestamp-p.Timestamp)
	}
}

// legSpeed returns the slant distance covered per second, or 0 when
// elapsed is not positive.
func legSpeed(from, to coordinates.Geographic, elapsed float64) float64 {
	if !(elapsed > 0) {
		return 0
	}
	return coordinates.SlantDistanceMeters(from, to) / elapsed
}

func hintOr(hint *float64, def float64) float64 {
	if hint != nil {
		return *hint
	}
	return def
}

// CheckOrder returns an error wrapping ErrOutOfOrder when a point's
// timestamp is lower than its predecessor's. Equal timestamps are allowed.
func CheckOrder(t Trajectory) error {
	for i := 1; i < len(t.Aircraft); i++ {
		prev, cur := t.Aircraft[i-1].Timestamp, t.Aircraft[i].Timestamp
		if cur < prev {
			return fmt.Errorf("%w: point %d at %s precedes point %d at %s",
				ErrOutOfOrder, i+1, formatSeconds(cur), i, formatSeconds(prev))
		}
	}
	return nil
}

// Label is the text drawn next to a point of the path.
type Label struct {
	Text     string     `json:"text"`
	Position [3]float64 `json:"position"`
}

// Labels numbers the points of t from 1 in path order.
func Labels(t Trajectory) []Label {
	labels := make([]Label, len(t.Aircraft))
	for i, p := range t.Aircraft {
		labels[i] = Label{
			Text:     strconv.Itoa(i + 1),
			Position: p.Position,
		}
	}
	return labels
}

// Bounds returns the geographic bounding box of the path as
// (minLon, minLat, maxLon, maxLat). NaN coordinates are skipped.
// ok is false when no point has usable coordinates.
func Bounds(t Trajectory) (minLon, minLat, maxLon, maxLat float64, ok bool) {
	minLon, minLat = math.Inf(1), math.Inf(1)
	maxLon, maxLat = math.Inf(-1), math.Inf(-1)

	for _, p := range t.Path {
		lon, lat := p[0], p[1]
		if math.IsNaN(lon) || math.IsNaN(lat) {
			continue
		}
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
		ok = true
	}

	if !ok {
		return 0, 0, 0, 0, false
	}
	return minLon, minLat, maxLon, maxLat, true
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64) + "s"
}
