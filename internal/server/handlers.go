package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleray/Flight-Simulator/internal/auth"
	"github.com/fleray/Flight-Simulator/internal/db"
	"github.com/fleray/Flight-Simulator/internal/metrics"
	"github.com/fleray/Flight-Simulator/pkg/playback"
	"github.com/fleray/Flight-Simulator/pkg/trace"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// trajectoryResponse is the JSON view of the current trajectory.
type trajectoryResponse struct {
	ICAO         string                `json:"icao"`
	Version      string                `json:"version"`
	IsSample     bool                  `json:"is_sample"`
	Revision     uint64                `json:"revision"`
	Points       int                   `json:"points"`
	MinTimestamp trajectory.Float      `json:"min_timestamp"`
	MaxTimestamp trajectory.Float      `json:"max_timestamp"`
	Path         [][3]trajectory.Float `json:"path"`
	Labels       []labelResponse       `json:"labels"`
	Bounds       *boundsResponse       `json:"bounds"`
	Aircraft     []*trajectory.Readout `json:"aircraft"`
}

type labelResponse struct {
	Text     string              `json:"text"`
	Position [3]trajectory.Float `json:"position"`
}

type boundsResponse struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

func toFloats(v [3]float64) [3]trajectory.Float {
	return [3]trajectory.Float{trajectory.Float(v[0]), trajectory.Float(v[1]), trajectory.Float(v[2])}
}

// newTrajectoryResponse renders snap. Every field comes from the same
// session version.
func newTrajectoryResponse(snap playback.Snapshot) trajectoryResponse {
	doc, tr := snap.Document, snap.Trajectory

	resp := trajectoryResponse{
		IsSample:     snap.IsSample,
		Revision:     snap.Version,
		Points:       tr.Len(),
		MinTimestamp: trajectory.Float(tr.MinTimestamp),
		MaxTimestamp: trajectory.Float(tr.MaxTimestamp),
		Path:         make([][3]trajectory.Float, len(tr.Path)),
		Aircraft:     make([]*trajectory.Readout, len(tr.Aircraft)),
	}
	if doc != nil {
		resp.ICAO = doc.ICAO
		resp.Version = doc.Version
	}

	for i, p := range tr.Path {
		resp.Path[i] = toFloats(p)
	}
	for i := range tr.Aircraft {
		resp.Aircraft[i] = trajectory.NewReadout(&tr.Aircraft[i])
	}

	labels := trajectory.Labels(tr)
	resp.Labels = make([]labelResponse, len(labels))
	for i, l := range labels {
		resp.Labels[i] = labelResponse{Text: l.Text, Position: toFloats(l.Position)}
	}

	if minLon, minLat, maxLon, maxLat, ok := trajectory.Bounds(tr); ok {
		resp.Bounds = &boundsResponse{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
	}
	return resp
}

// handleHealth reports liveness and, when configured, database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Session.Snapshot()
	status := map[string]interface{}{
		"status":   "ok",
		"points":   snap.Trajectory.Len(),
		"revision": snap.Version,
	}
	if s.deps.Health != nil {
		dbOK := s.deps.Health(r.Context())
		status["database"] = dbOK
		if !dbOK {
			status["status"] = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	respondJSON(w, http.StatusOK, status)
}

// handleLogin handles user login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, acct, err := s.deps.Auth.Login(r.Context(), s.deps.Accounts, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		log.Printf("Login failed for %q: %v", req.Username, err)
		respondError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	if rec, ok := s.deps.Accounts.(lastLoginRecorder); ok {
		if err := rec.UpdateLastLogin(r.Context(), acct.ID); err != nil {
			log.Printf("Failed to update last login for %q: %v", acct.Username, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user": map[string]interface{}{
			"id":       acct.ID,
			"username": acct.Username,
			"role":     acct.Role,
		},
	})
}

// handleGetCurrentUser returns the currently authenticated user
func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       claims.UserID,
		"username": claims.Username,
		"role":     claims.Role,
	})
}

// handleGetTrajectory returns the path, labels and bounds of the current trajectory.
func (s *Server) handleGetTrajectory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newTrajectoryResponse(s.deps.Session.Snapshot()))
}

// handleGetAt returns the interpolated state at ?t=.
// The timestamp is clamped to the trajectory's range; an empty trajectory gives null.
func (s *Server) handleGetAt(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(ts) {
		respondError(w, http.StatusBadRequest, "Query parameter t must be a number")
		return
	}

	p := s.deps.Session.At(ts)
	metrics.IncInterpolations()

	readout := trajectory.NewReadout(p)
	var text string
	var orientation *[3]float64
	if readout != nil {
		text = readout.String()
		o := readout.Orientation()
		orientation = &o
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"readout":     readout,
		"orientation": orientation,
		"text":        text,
	})
}

// handleUploadTrajectory replaces the current document with the request body.
// Malformed documents are rejected with a 400 and the previous trajectory stays current.
func (s *Server) handleUploadTrajectory(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Trace file is too large.")
			return
		}
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	snap, err := s.deps.Session.Load(data)
	metrics.ObserveLoad(err)
	if err != nil {
		respondError(w, http.StatusBadRequest, playback.UserMessage(err))
		return
	}

	s.recordUpload(r, snap)
	respondJSON(w, http.StatusOK, newTrajectoryResponse(snap))
}

// handleFetchTrajectory loads the trace of {icao} from the configured source.
func (s *Server) handleFetchTrajectory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Source == nil {
		respondError(w, http.StatusNotImplemented, "No trace source configured")
		return
	}

	icao := chi.URLParam(r, "icao")
	doc, err := s.deps.Source.Fetch(r.Context(), icao)
	metrics.ObserveLoad(err)
	switch {
	case errors.Is(err, trace.ErrNotFound):
		respondError(w, http.StatusNotFound, "No trace for "+icao)
		return
	case err != nil:
		log.Printf("Failed to fetch trace %s: %v", icao, err)
		respondError(w, http.StatusBadGateway, playback.UserMessage(err))
		return
	}

	snap := s.deps.Session.LoadDocument(doc)
	s.recordUpload(r, snap)
	respondJSON(w, http.StatusOK, newTrajectoryResponse(snap))
}

// handleResetTrajectory goes back to the bundled sample document.
func (s *Server) handleResetTrajectory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newTrajectoryResponse(s.deps.Session.Reset()))
}

// recordUpload writes the audit record of the document in snap.
// Failures are logged only.
func (s *Server) recordUpload(r *http.Request, snap playback.Snapshot) {
	doc, tr := snap.Document, snap.Trajectory
	if s.deps.Uploads == nil || doc == nil {
		return
	}

	up := &db.Upload{
		Digest:     doc.Digest(),
		ICAO:       doc.ICAO,
		PointCount: tr.Len(),
	}
	if !tr.IsEmpty() {
		lo, hi := tr.MinTimestamp, tr.MaxTimestamp
		up.MinTimestamp, up.MaxTimestamp = &lo, &hi
	}
	if claims := claimsFrom(r.Context()); claims != nil {
		id := claims.UserID
		up.UserID = &id
		up.Username = claims.Username
	}

	if err := s.deps.Uploads.Record(r.Context(), up); err != nil {
		log.Printf("Failed to record upload of %s: %v", doc.ICAO, err)
	}
}
