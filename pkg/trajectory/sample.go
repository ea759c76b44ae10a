package trajectory

import (
	"github.com/fleray/Flight-Simulator/pkg/coordinates"
	"github.com/fleray/Flight-Simulator/pkg/trace"
)

// Sample is one normalized trace row.
type Sample struct {
	// Timestamp is the document base timestamp plus the row offset, in seconds
	Timestamp float64 `json:"timestamp"`

	// Lat and Lon are passed through from the row without range checks.
	// Non-numeric values become NaN.
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Alt in meters (0 when the row has no numeric altitude)
	Alt float64 `json:"alt"`

	// SpeedHint is the recorded speed in m/s, nil when absent
	SpeedHint *float64 `json:"speed_hint,omitempty"`

	// HeadingHint is the recorded heading in degrees, nil when absent
	HeadingHint *float64 `json:"heading_hint,omitempty"`

	// Raw is the unmodified source row
	Raw trace.Row `json:"-"`
}

// Geographic returns the sample's location.
func (s Sample) Geographic() coordinates.Geographic {
	return coordinates.Geographic{
		Latitude:  s.Lat,
		Longitude: s.Lon,
		Altitude:  s.Alt,
	}
}

// Samples normalizes the rows of doc. A nil document, or one without a
// trace array, yields no samples.
func Samples(doc *trace.Document) []Sample {
	if !doc.HasTrace() {
		return nil
	}

	samples := make([]Sample, len(doc.Trace))
	for i, row := range doc.Trace {
		samples[i] = sampleFromRow(doc.BaseTimestamp, row)
	}
	return samples
}

func sampleFromRow(base float64, row trace.Row) Sample {
	return Sample{
		Timestamp:   base + row.Field(trace.FieldOffset).NumberOr(0),
		Lat:         row.Field(trace.FieldLat).NumberOrNaN(),
		Lon:         row.Field(trace.FieldLon).NumberOrNaN(),
		Alt:         row.Field(trace.FieldAlt).NumberOr(0),
		SpeedHint:   row.Field(trace.FieldSpeed).NumberPtr(),
		HeadingHint: row.Field(trace.FieldHeading).NumberPtr(),
		Raw:         row,
	}
}
