package main

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// column describes one column of the point table.
type column struct {
	title string
	value func(i int, p *trajectory.AircraftPoint) string
}

var columns = []column{
	{"#", func(i int, _ *trajectory.AircraftPoint) string { return strconv.Itoa(i + 1) }},
	{"Time", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Timestamp, 1) }},
	{"Lat", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Lat, 5) }},
	{"Lon", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Lon, 5) }},
	{"Alt m", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Alt, 0) }},
	{"Bearing°", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Bearing, 1) }},
	{"Pitch°", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Pitch, 2) }},
	{"Speed m/s", func(_ int, p *trajectory.AircraftPoint) string { return formatValue(p.Speed, 1) }},
	{"Hint spd", func(_ int, p *trajectory.AircraftPoint) string { return formatHint(p.SpeedHint) }},
	{"Hint hdg", func(_ int, p *trajectory.AircraftPoint) string { return formatHint(p.HeadingHint) }},
}

// formatValue prints v with the given precision, or "—" for NaN.
func formatValue(v float64, prec int) string {
	if math.IsNaN(v) {
		return "—"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatHint(v *float64) string {
	if v == nil {
		return "null"
	}
	return formatValue(*v, 1)
}

// cellColor highlights values derived from NaN coordinates.
func cellColor(text string) tcell.Color {
	if text == "—" {
		return tcell.ColorRed
	}
	return tcell.ColorWhite
}

// rowCells returns the table cells of point i.
func rowCells(i int, p *trajectory.AircraftPoint) []string {
	cells := make([]string, len(columns))
	for c, col := range columns {
		cells[c] = col.value(i, p)
	}
	return cells
}

// errNotTimestamp is returned by parseQueryTime for input that is not a usable time.
var errNotTimestamp = errors.New("not a timestamp")

// parseQueryTime reads a query timestamp typed by the user.
// NaN parses as a float but names no instant, so it is rejected.
func parseQueryTime(text string) (float64, error) {
	ts, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(ts) {
		return 0, errNotTimestamp
	}
	return ts, nil
}
