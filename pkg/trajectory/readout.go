package trajectory

import (
	"fmt"
	"math"
	"strconv"
)

// Readout is the part of an AircraftPoint a display needs: where to draw the
// aircraft, how to orient it, and the values for a text readout.
type Readout struct {
	Timestamp Float    `json:"timestamp"`
	Position  [3]Float `json:"position"`
	Bearing   Float    `json:"bearing"`
	Pitch     Float    `json:"pitch"`
	Speed     Float    `json:"speed"`
	Alt       Float    `json:"alt"`
}

// NewReadout extracts the readout of p. A nil point gives a nil readout.
func NewReadout(p *AircraftPoint) *Readout {
	if p == nil {
		return nil
	}
	return &Readout{
		Timestamp: Float(p.Timestamp),
		Position:  [3]Float{Float(p.Position[0]), Float(p.Position[1]), Float(p.Position[2])},
		Bearing:   Float(p.Bearing),
		Pitch:     Float(p.Pitch),
		Speed:     Float(p.Speed),
		Alt:       Float(p.Alt),
	}
}

// Orientation returns the model rotation as [pitch, yaw, roll] in degrees.
// Yaw is the negated bearing since renderers rotate counter-clockwise.
func (r Readout) Orientation() [3]float64 {
	return [3]float64{
		zeroIfNaN(float64(r.Pitch)),
		-zeroIfNaN(float64(r.Bearing)),
		0,
	}
}

// String formats the readout on a single line, e.g.
//
//	Timestamp: 25 | Speed: 142.3 m/s | Altitude: 1350 m | Bearing: 112.5° | Pitch: 0.0°
func (r Readout) String() string {
	return fmt.Sprintf("Timestamp: %s | Speed: %.1f m/s | Altitude: %s m | Bearing: %.1f° | Pitch: %.1f°",
		strconv.FormatFloat(float64(r.Timestamp), 'f', -1, 64),
		float64(r.Speed),
		strconv.FormatFloat(float64(r.Alt), 'f', -1, 64),
		float64(r.Bearing),
		float64(r.Pitch),
	)
}

// Float is a float64 that encodes NaN and infinities as JSON null, since
// bad coordinates in a trace propagate as NaN.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
