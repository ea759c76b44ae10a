package playback

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/fleray/Flight-Simulator/pkg/trace"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// Session holds the currently loaded trace document and its trajectory.
// It starts out with the bundled sample document. A failed load leaves the
// previous trajectory in place. Safe for concurrent use.
type Session struct {
	mu sync.RWMutex

	cache  *trajectory.Cache
	interp trajectory.Interpolator
	logger *log.Logger
	onBuild func(tr trajectory.Trajectory, cacheHit bool)

	doc      *trace.Document
	tr       trajectory.Trajectory
	isSample bool
	version  uint64
	lastErr  error
}

// Snapshot is a consistent view of the session at one version.
type Snapshot struct {
	Document   *trace.Document
	Trajectory trajectory.Trajectory
	IsSample   bool
	Version    uint64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCache memoizes builds in c instead of a private cache.
func WithCache(c *trajectory.Cache) SessionOption {
	return func(s *Session) {
		s.cache = c
	}
}

// WithInterpolator sets how At computes states between samples.
func WithInterpolator(in trajectory.Interpolator) SessionOption {
	return func(s *Session) {
		s.interp = in
	}
}

// WithLogger sets the logger used for load warnings. The default discards output.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBuildObserver registers fn to be called after every build with the
// result and whether the cache served it.
func WithBuildObserver(fn func(tr trajectory.Trajectory, cacheHit bool)) SessionOption {
	return func(s *Session) {
		s.onBuild = fn
	}
}

// NewSession creates a session showing the bundled sample document.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = trajectory.NewCache(trajectory.DefaultCacheSize)
	}

	s.setDocument(trace.Sample(), true)
	return s
}

// Load parses data as a trace document and makes it current.
//
// On failure the previous document and trajectory are kept and the error is
// returned; UserMessage turns it into text for display. The returned
// Snapshot describes the loaded document even if another load follows.
func (s *Session) Load(data []byte) (Snapshot, error) {
	doc, err := trace.Parse(data)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Printf("⚠️  Rejected trace document: %v", err)
		return Snapshot{}, err
	}
	return s.LoadDocument(doc), nil
}

// LoadDocument makes doc current. A nil document resets to the sample.
func (s *Session) LoadDocument(doc *trace.Document) Snapshot {
	if doc == nil {
		return s.Reset()
	}
	return s.setDocument(doc, false)
}

// Reset goes back to the bundled sample document.
func (s *Session) Reset() Snapshot {
	return s.setDocument(trace.Sample(), true)
}

func (s *Session) setDocument(doc *trace.Document, isSample bool) Snapshot {
	tr, hit := s.cache.Build(doc)
	if s.onBuild != nil {
		s.onBuild(tr, hit)
	}

	if err := trajectory.CheckOrder(tr); err != nil {
		s.logger.Printf("⚠️  Trace %s: %v; playback between unordered samples is undefined", doc.ICAO, err)
	}

	s.mu.Lock()
	s.doc = doc
	s.tr = tr
	s.isSample = isSample
	s.version++
	s.lastErr = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Printf("✓ Loaded trace %q: %d points, %.0fs (cached=%v, version=%d)",
		doc.ICAO, tr.Len(), tr.Duration(), hit, snap.Version)
	return snap
}

// Snapshot returns the current document, trajectory and version together.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{Document: s.doc, Trajectory: s.tr, IsSample: s.isSample, Version: s.version}
}

// Trajectory returns the current trajectory.
func (s *Session) Trajectory() trajectory.Trajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tr
}

// Document returns the current document.
func (s *Session) Document() *trace.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// At returns the interpolated aircraft state at ts, clamped to the
// trajectory's time range. Returns nil when the trajectory is empty.
func (s *Session) At(ts float64) *trajectory.AircraftPoint {
	s.mu.RLock()
	points, interp := s.tr.Aircraft, s.interp
	s.mu.RUnlock()
	return interp.At(points, ts)
}

// Interpolator returns the interpolation settings in use.
func (s *Session) Interpolator() trajectory.Interpolator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interp
}

// IsSample reports whether the bundled sample is showing.
func (s *Session) IsSample() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSample
}

// Version increases every time a new document becomes current.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// LastError returns the error of the most recent failed load, or nil when
// the last load succeeded.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// UserMessage converts a load error into a short message for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, trace.ErrInvalidJSON):
		return "Invalid JSON file."
	case errors.Is(err, trace.ErrInvalidDocument):
		return "Invalid trace file: expected a JSON object."
	case errors.Is(err, trace.ErrTraceNotArray):
		return "Invalid trace file: \"trace\" must be an array."
	default:
		return fmt.Sprintf("Could not load trace: %v", err)
	}
}
