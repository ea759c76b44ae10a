// Package playback drives a time cursor over a trajectory.
//
// The trajectory math is pure and owns no timer. A Player holds the cursor
// (play/pause/seek/speed), a Ticker supplies wall-clock ticks, and a Session
// holds the currently loaded document.
package playback

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// Player is a time cursor over one trajectory. Safe for concurrent use.
type Player struct {
	mu sync.Mutex

	tr     trajectory.Trajectory
	interp trajectory.Interpolator

	// cursor is the current time in trajectory seconds
	cursor  float64
	speed   float64
	playing bool
	loop    bool
}

// NewPlayer creates a paused player positioned at the start of tr.
func NewPlayer(tr trajectory.Trajectory, interp trajectory.Interpolator) *Player {
	return &Player{
		tr:     tr,
		interp: interp,
		cursor: tr.MinTimestamp,
		speed:  1,
	}
}

// SetTrajectory replaces the trajectory, rewinds to its start and pauses.
func (p *Player) SetTrajectory(tr trajectory.Trajectory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tr = tr
	p.cursor = tr.MinTimestamp
	p.playing = false
}

// SetInterpolator changes how states between samples are computed.
func (p *Player) SetInterpolator(interp trajectory.Interpolator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interp = interp
}

// CanPlay reports whether there is anything to animate (at least two points).
func (p *Player) CanPlay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tr.Len() > 1
}

// Play starts playback. Playing from the end restarts from the beginning.
// Returns false when the trajectory has fewer than two points.
func (p *Player) Play() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tr.Len() <= 1 {
		return false
	}
	if p.cursor >= p.tr.MaxTimestamp {
		p.cursor = p.tr.MinTimestamp
	}
	p.playing = true
	return true
}

// Pause stops playback at the current time.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// Toggle switches between playing and paused and returns the new state.
func (p *Player) Toggle() bool {
	if p.Playing() {
		p.Pause()
		return false
	}
	return p.Play()
}

// Playing reports whether playback is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetLoop makes playback wrap to the start instead of stopping at the end.
func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = loop
}

// SetSpeed sets the playback rate in trajectory seconds per wall-clock
// second. Non-positive and non-finite values are ignored.
func (p *Player) SetSpeed(speed float64) {
	if !(speed > 0) || math.IsInf(speed, 0) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = speed
}

// Speed returns the playback rate.
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Seek moves the cursor to ts, clamped to the trajectory's time range, and
// pauses playback as a manual scrub does.
func (p *Player) Seek(ts float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = p.clamp(ts)
	p.playing = false
}

// SeekFraction seeks to a position given as a fraction of the duration,
// 0 = start and 1 = end.
func (p *Player) SeekFraction(f float64) {
	p.mu.Lock()
	lo, hi := p.tr.MinTimestamp, p.tr.MaxTimestamp
	p.mu.Unlock()
	p.Seek(lo + (hi-lo)*f)
}

// Step moves the cursor by n samples (negative = backwards) and pauses.
// From a time between two samples, Step(1) lands on the later sample and
// Step(-1) on the earlier one.
func (p *Player) Step(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	points := p.tr.Aircraft
	if len(points) == 0 || n == 0 {
		return
	}
	p.playing = false

	// Index of the first sample strictly after the cursor
	after := sort.Search(len(points), func(i int) bool {
		return points[i].Timestamp > p.cursor
	})

	var idx int
	if n > 0 {
		idx = after + n - 1
	} else {
		// Index of the first sample at or after the cursor
		at := sort.Search(len(points), func(i int) bool {
			return points[i].Timestamp >= p.cursor
		})
		idx = at + n
	}

	idx = max(0, min(len(points)-1, idx))
	p.cursor = points[idx].Timestamp
}

// Advance moves a playing cursor forward by elapsed wall-clock time scaled
// by the speed. Reaching the end stops playback unless looping is on.
// Advance is a no-op while paused. Returns the current time.
func (p *Player) Advance(elapsed time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return p.cursor
	}

	p.cursor += elapsed.Seconds() * p.speed
	if p.cursor >= p.tr.MaxTimestamp {
		if p.loop && p.tr.Duration() > 0 {
			p.cursor = p.tr.MinTimestamp + math.Mod(p.cursor-p.tr.MinTimestamp, p.tr.Duration())
		} else {
			p.cursor = p.tr.MaxTimestamp
			p.playing = false
		}
	}
	return p.cursor
}

// Time returns the cursor position in trajectory seconds.
func (p *Player) Time() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Progress returns the cursor position as a fraction of the duration.
// An empty or zero-length trajectory reports 0.
func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.tr.Duration()
	if !(d > 0) {
		return 0
	}
	return (p.cursor - p.tr.MinTimestamp) / d
}

// Current returns the interpolated aircraft state at the cursor, or nil for
// an empty trajectory.
func (p *Player) Current() *trajectory.AircraftPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interp.At(p.tr.Aircraft, p.cursor)
}

// Index returns the index of the last sample at or before the cursor.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	points := p.tr.Aircraft
	i := sort.Search(len(points), func(i int) bool {
		return points[i].Timestamp > p.cursor
	})
	return max(0, i-1)
}

// Trajectory returns the trajectory being played.
func (p *Player) Trajectory() trajectory.Trajectory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tr
}

func (p *Player) clamp(ts float64) float64 {
	if math.IsNaN(ts) || ts < p.tr.MinTimestamp {
		return p.tr.MinTimestamp
	}
	if ts > p.tr.MaxTimestamp {
		return p.tr.MaxTimestamp
	}
	return ts
}
