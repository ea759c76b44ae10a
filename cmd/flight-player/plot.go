package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// Terminal characters are about twice as tall as they are wide, so one row
// covers the same distance as two columns.
const aspectRatio = 0.5

type cellKind int

const (
	cellEmpty cellKind = iota
	cellPath
	cellPoint
	cellLabel
	cellAircraft
)

var cellStyles = map[cellKind]lipgloss.Style{
	cellPath:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	cellPoint:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
	cellLabel:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	cellAircraft: lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
}

type cell struct {
	r    rune
	kind cellKind
}

// projection maps lon/lat onto a w×h character grid. Longitudes are scaled by
// the cosine of the middle latitude so the track keeps its shape.
type projection struct {
	w, h             int
	minLon, maxLat   float64
	lonScale, scale  float64
	offsetX, offsetY float64
}

// newProjection fits the bounds of t into a w×h grid. ok is false when the
// trajectory has no usable coordinates or the grid is too small.
func newProjection(t trajectory.Trajectory, w, h int) (projection, bool) {
	minLon, minLat, maxLon, maxLat, ok := trajectory.Bounds(t)
	if !ok || w < 3 || h < 3 {
		return projection{}, false
	}

	lonScale := math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	spanX := (maxLon - minLon) * lonScale
	spanY := maxLat - minLat

	usableW := float64(w - 1)
	usableH := float64(h - 1)

	// Columns per degree; a single point (or a straight line) uses the other axis
	scale := math.Inf(1)
	if spanX > 0 {
		scale = usableW / spanX
	}
	if spanY > 0 {
		scale = math.Min(scale, usableH/(spanY*aspectRatio))
	}
	if math.IsInf(scale, 1) {
		scale = 1
	}

	p := projection{
		w:        w,
		h:        h,
		minLon:   minLon,
		maxLat:   maxLat,
		lonScale: lonScale,
		scale:    scale,
	}
	p.offsetX = (usableW - spanX*scale) / 2
	p.offsetY = (usableH - spanY*scale*aspectRatio) / 2
	return p, true
}

// toScreen returns the grid cell of a position. ok is false for NaN
// coordinates and positions outside the grid.
func (p projection) toScreen(lon, lat float64) (x, y int, ok bool) {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, false
	}
	fx := p.offsetX + (lon-p.minLon)*p.lonScale*p.scale
	fy := p.offsetY + (p.maxLat-lat)*p.scale*aspectRatio
	x, y = int(math.Round(fx)), int(math.Round(fy))
	if x < 0 || x >= p.w || y < 0 || y >= p.h {
		return 0, 0, false
	}
	return x, y, true
}

// headingArrow picks the arrow closest to a bearing in degrees.
func headingArrow(bearing float64) rune {
	if math.IsNaN(bearing) {
		return '✈'
	}
	arrows := []rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return arrows[int(math.Round(b/45))%8]
}

// canvas is a character grid the map is drawn on.
type canvas struct {
	w, h  int
	cells [][]cell
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]cell, h)}
	for y := range c.cells {
		c.cells[y] = make([]cell, w)
		for x := range c.cells[y] {
			c.cells[y][x] = cell{r: ' '}
		}
	}
	return c
}

// set draws r at (x, y) unless a cell of higher priority is already there.
func (c *canvas) set(x, y int, r rune, kind cellKind) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return
	}
	if c.cells[y][x].kind > kind {
		return
	}
	c.cells[y][x] = cell{r: r, kind: kind}
}

// line draws a segment with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1 int, r rune, kind cellKind) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		c.set(x0, y0, r, kind)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *canvas) text(x, y int, s string, kind cellKind) {
	for i, r := range []rune(s) {
		c.set(x+i, y, r, kind)
	}
}

// String renders the grid with one style per cell kind.
func (c *canvas) String() string {
	var b strings.Builder
	for y, row := range c.cells {
		for _, cl := range row {
			if style, ok := cellStyles[cl.kind]; ok {
				b.WriteString(style.Render(string(cl.r)))
			} else {
				b.WriteRune(cl.r)
			}
		}
		if y < c.h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawMap draws the path polyline, numbered points and the aircraft at current.
func drawMap(t trajectory.Trajectory, current *trajectory.AircraftPoint, w, h int) *canvas {
	c := newCanvas(w, h)
	proj, ok := newProjection(t, w, h)
	if !ok {
		c.text(0, h/2, "no plottable positions", cellLabel)
		return c
	}

	prevX, prevY, prevOK := 0, 0, false
	for _, p := range t.Path {
		x, y, ok := proj.toScreen(p[0], p[1])
		if ok && prevOK {
			c.line(prevX, prevY, x, y, '·', cellPath)
		}
		prevX, prevY, prevOK = x, y, ok
	}

	for _, l := range trajectory.Labels(t) {
		x, y, ok := proj.toScreen(l.Position[0], l.Position[1])
		if !ok {
			continue
		}
		c.set(x, y, '•', cellPoint)
		c.text(x+1, y, l.Text, cellLabel)
	}

	if current != nil {
		if x, y, ok := proj.toScreen(current.Lon, current.Lat); ok {
			c.set(x, y, headingArrow(current.Bearing), cellAircraft)
		}
	}
	return c
}

// progressBar draws a scrub bar of the given width with a knob at f in [0, 1].
func progressBar(f float64, width int) string {
	if width < 2 {
		return ""
	}
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	knob := int(math.Round(f * float64(width-1)))
	return strings.Repeat("━", knob) + "●" + strings.Repeat("─", width-1-knob)
}

func formatTime(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 1, 64) + "s"
}
