package trajectory

import (
	"math"
	"reflect"
	"testing"

	"github.com/fleray/Flight-Simulator/pkg/trace"
)

func TestInterpolate(t *testing.T) {
	points := Build(trace.Sample()).Aircraft

	t.Run("Empty input", func(t *testing.T) {
		if p := Interpolate(nil, 10); p != nil {
			t.Errorf("Expected nil, got %+v", p)
		}
		if p := Interpolate([]AircraftPoint{}, 0); p != nil {
			t.Errorf("Expected nil, got %+v", p)
		}
	})

	t.Run("Exact endpoints", func(t *testing.T) {
		if p := Interpolate(points, points[0].Timestamp); !reflect.DeepEqual(*p, points[0]) {
			t.Errorf("Expected first point, got %+v", p)
		}
		last := points[len(points)-1]
		if p := Interpolate(points, last.Timestamp); !reflect.DeepEqual(*p, last) {
			t.Errorf("Expected last point, got %+v", p)
		}
	})

	t.Run("Clamped outside the range", func(t *testing.T) {
		before := Interpolate(points, -1000)
		after := Interpolate(points, 1e9)
		if before == nil || after == nil {
			t.Fatal("Expected clamped points, got nil")
		}
		if !reflect.DeepEqual(*before, points[0]) {
			t.Errorf("Expected first point, got %+v", before)
		}
		if !reflect.DeepEqual(*after, points[len(points)-1]) {
			t.Errorf("Expected last point, got %+v", after)
		}
	})

	t.Run("NaN query clamps to the first point", func(t *testing.T) {
		for _, in := range []Interpolator{{}, {Bearing: BearingShortestArc, Path: PathGreatCircle}} {
			p := in.At(points, math.NaN())
			if p == nil {
				t.Fatalf("%+v: expected the first point, got nil", in)
			}
			if !reflect.DeepEqual(*p, points[0]) {
				t.Errorf("%+v: expected the first point, got %+v", in, p)
			}
		}

		prev, next, f, ok := Fraction(points, math.NaN())
		if !ok || prev != 0 || next != 0 || f != 0 {
			t.Errorf("Expected clamp to index 0, got %d %d %v %v", prev, next, f, ok)
		}
	})

	t.Run("Result is a copy", func(t *testing.T) {
		p := Interpolate(points, 0)
		p.Bearing = 999
		if points[0].Bearing == 999 {
			t.Error("Modifying the result changed the input")
		}
	})

	t.Run("Exact sample in the middle", func(t *testing.T) {
		p := Interpolate(points, 20)
		if math.Abs(p.Lat-points[2].Lat) > 1e-9 || math.Abs(p.Lon-points[2].Lon) > 1e-9 || math.Abs(p.Alt-points[2].Alt) > 1e-9 {
			t.Errorf("Expected sample 3 position, got %v", p.Position)
		}
	})

	t.Run("Midpoint of a leg", func(t *testing.T) {
		prev, next := points[2], points[3]
		p := Interpolate(points, 25)

		check := func(name string, got, a, b float64) {
			t.Helper()
			if want := (a + b) / 2; math.Abs(got-want) > 1e-9 {
				t.Errorf("%s: expected %f, got %f", name, want, got)
			}
		}
		check("lat", p.Lat, prev.Lat, next.Lat)
		check("lon", p.Lon, prev.Lon, next.Lon)
		check("alt", p.Alt, prev.Alt, next.Alt)
		check("bearing", p.Bearing, prev.Bearing, next.Bearing)
		check("pitch", p.Pitch, prev.Pitch, next.Pitch)

		if p.Speed != prev.Speed {
			t.Errorf("Expected speed copied from earlier point %f, got %f", prev.Speed, p.Speed)
		}
		if p.Timestamp != prev.Timestamp {
			t.Errorf("Expected timestamp copied from earlier point %f, got %f", prev.Timestamp, p.Timestamp)
		}
		if p.Position != [3]float64{p.Lon, p.Lat, p.Alt} {
			t.Errorf("Expected position rebuilt from interpolated values, got %v", p.Position)
		}
	})

	t.Run("Monotonic within a leg", func(t *testing.T) {
		prevLat, prevLon, prevAlt := math.Inf(-1), math.Inf(-1), math.Inf(-1)
		for ts := 10.0; ts <= 20.0; ts += 0.5 {
			p := Interpolate(points, ts)
			if p.Lat < prevLat || p.Lon < prevLon || p.Alt < prevAlt {
				t.Fatalf("Not monotonic at t=%v: %v", ts, p.Position)
			}
			prevLat, prevLon, prevAlt = p.Lat, p.Lon, p.Alt
		}
	})

	t.Run("Single point", func(t *testing.T) {
		one := Build(&trace.Document{Trace: []trace.Row{trace.RowOf(5, 1, 2, 3)}}).Aircraft
		for _, ts := range []float64{0, 5, 10} {
			if p := Interpolate(one, ts); p == nil || p.Timestamp != 5 {
				t.Errorf("t=%v: expected the only point, got %+v", ts, p)
			}
		}
	})

	t.Run("Duplicate timestamps", func(t *testing.T) {
		dup := Build(&trace.Document{Trace: []trace.Row{
			trace.RowOf(0, 0, 0, 0),
			trace.RowOf(10, 1, 0, 0),
			trace.RowOf(10, 2, 0, 0),
			trace.RowOf(20, 3, 0, 0),
		}}).Aircraft

		p := Interpolate(dup, 10)
		if p.Lat != 1 {
			t.Errorf("Expected first point at the duplicate timestamp, got lat %f", p.Lat)
		}
		p = Interpolate(dup, 15)
		if math.Abs(p.Lat-2.5) > 1e-9 {
			t.Errorf("Expected lat 2.5, got %f", p.Lat)
		}
	})
}

// TestInterpolateSample is the end-to-end scenario over the bundled flight.
func TestInterpolateSample(t *testing.T) {
	tr := Build(trace.Sample())
	if len(tr.Aircraft) != 5 {
		t.Fatalf("Expected 5 points, got %d", len(tr.Aircraft))
	}
	for i := 1; i < len(tr.Aircraft); i++ {
		if tr.Aircraft[i].Timestamp <= tr.Aircraft[i-1].Timestamp {
			t.Errorf("Timestamps not strictly increasing at %d", i)
		}
	}
	if tr.MinTimestamp != 0 || tr.MaxTimestamp != 40 {
		t.Errorf("Expected bounds 0..40, got %v..%v", tr.MinTimestamp, tr.MaxTimestamp)
	}

	prevIdx, nextIdx, f, ok := Fraction(tr.Aircraft, 25)
	if !ok || prevIdx != 2 || nextIdx != 3 || f != 0.5 {
		t.Errorf("Expected bracket (2, 3) at 0.5, got (%d, %d) at %v", prevIdx, nextIdx, f)
	}

	p := Interpolate(tr.Aircraft, 25)
	a, b := tr.Aircraft[2], tr.Aircraft[3]
	for i := 0; i < 3; i++ {
		lo, hi := math.Min(a.Position[i], b.Position[i]), math.Max(a.Position[i], b.Position[i])
		if p.Position[i] < lo || p.Position[i] > hi {
			t.Errorf("Position[%d] = %f outside [%f, %f]", i, p.Position[i], lo, hi)
		}
	}
	if math.Abs(p.Alt-1350) > 1e-9 {
		t.Errorf("Expected altitude 1350, got %f", p.Alt)
	}
	// Heading hints 90 and 135
	if math.Abs(p.Bearing-112.5) > 1e-9 {
		t.Errorf("Expected bearing 112.5, got %f", p.Bearing)
	}
}

func TestInterpolatorModes(t *testing.T) {
	points := Build(&trace.Document{Trace: []trace.Row{
		trace.RowOf(0, 0, 0, 0, nil, 350),
		trace.RowOf(10, 0, 10, 0, nil, 10),
	}}).Aircraft

	t.Run("Linear bearing sweeps backwards", func(t *testing.T) {
		p := Interpolate(points, 5)
		if math.Abs(p.Bearing-180) > 1e-9 {
			t.Errorf("Expected 180, got %f", p.Bearing)
		}
	})

	t.Run("Shortest arc bearing crosses north", func(t *testing.T) {
		p := Interpolator{Bearing: BearingShortestArc}.At(points, 5)
		if math.Abs(p.Bearing) > 1e-9 {
			t.Errorf("Expected 0, got %f", p.Bearing)
		}
		p = Interpolator{Bearing: BearingShortestArc}.At(points, 2.5)
		if math.Abs(p.Bearing-355) > 1e-9 {
			t.Errorf("Expected 355, got %f", p.Bearing)
		}
	})

	t.Run("Great circle path", func(t *testing.T) {
		p := Interpolator{Path: PathGreatCircle}.At(points, 5)
		if math.Abs(p.Lon-5) > 1e-9 || math.Abs(p.Lat) > 1e-9 {
			t.Errorf("Expected (0, 5) on the equator, got (%f, %f)", p.Lat, p.Lon)
		}
		if p.Position != [3]float64{p.Lon, p.Lat, p.Alt} {
			t.Errorf("Expected position rebuilt, got %v", p.Position)
		}
	})

	t.Run("Great circle departs from linear away from the equator", func(t *testing.T) {
		high := Build(&trace.Document{Trace: []trace.Row{
			trace.RowOf(0, 60, 0, 0),
			trace.RowOf(10, 60, 40, 0),
		}}).Aircraft
		gc := Interpolator{Path: PathGreatCircle}.At(high, 5)
		lin := Interpolate(high, 5)
		if gc.Lat <= lin.Lat {
			t.Errorf("Expected great circle to bulge poleward, got %f vs %f", gc.Lat, lin.Lat)
		}
	})
}

func TestParseModes(t *testing.T) {
	tests := []struct {
		input   string
		bearing BearingMode
		ok      bool
	}{
		{"", BearingLinear, true},
		{"linear", BearingLinear, true},
		{"shortest", BearingShortestArc, true},
		{"circular", BearingLinear, false},
	}
	for _, tt := range tests {
		m, err := ParseBearingMode(tt.input)
		if (err == nil) != tt.ok || m != tt.bearing {
			t.Errorf("ParseBearingMode(%q) = %v, %v", tt.input, m, err)
		}
	}

	if m, err := ParsePathMode("great_circle"); err != nil || m != PathGreatCircle {
		t.Errorf("ParsePathMode(great_circle) = %v, %v", m, err)
	}
	if _, err := ParsePathMode("spline"); err == nil {
		t.Error("Expected error for unknown path mode")
	}
	if BearingShortestArc.String() != "shortest" || PathGreatCircle.String() != "great_circle" {
		t.Error("Unexpected mode names")
	}
}
