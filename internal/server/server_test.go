package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleray/Flight-Simulator/internal/auth"
	"github.com/fleray/Flight-Simulator/internal/db"
	"github.com/fleray/Flight-Simulator/pkg/config"
	"github.com/fleray/Flight-Simulator/pkg/playback"
	"github.com/fleray/Flight-Simulator/pkg/trace"
)

const twoPointTrace = `{"icao":"abc123","version":"1","timestamp":100,"trace":[[0,0,0,0,null,null],[10,0.001,0,0,null,null]]}`

type fakeUploads struct {
	mu      sync.Mutex
	uploads []*db.Upload

	// onRecord runs before the record is stored
	onRecord func()
}

func (f *fakeUploads) Record(_ context.Context, u *db.Upload) error {
	if f.onRecord != nil {
		f.onRecord()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, u)
	return nil
}

func (f *fakeUploads) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type testEnv struct {
	server  *Server
	session *playback.Session
	uploads *fakeUploads
	authSvc *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Playback.TickMillis = 10
	cfg.Server.MaxUploadBytes = 4096

	svc := auth.NewService(auth.Config{JWTSecret: "test-secret", BCryptCost: bcrypt.MinCost})
	hash, err := svc.HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	accounts := auth.StaticAccounts{
		"admin":  {ID: 1, Username: "admin", PasswordHash: hash, Role: auth.RoleAdmin, Active: true},
		"viewer": {ID: 2, Username: "viewer", PasswordHash: hash, Role: auth.RoleViewer, Active: true},
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123.json"), []byte(twoPointTrace), 0644); err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		session: playback.NewSession(),
		uploads: &fakeUploads{},
		authSvc: svc,
	}
	env.server = New(cfg, Deps{
		Session:  env.session,
		Auth:     svc,
		Accounts: accounts,
		Uploads:  env.uploads,
		Source:   trace.FileSource{Dir: dir},
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	token, err := e.authSvc.GenerateToken(1, role+"-user", role)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

type trajectoryBody struct {
	ICAO     string `json:"icao"`
	IsSample bool   `json:"is_sample"`
	Points   int    `json:"points"`
	Path     [][3]*float64
	Labels   []struct {
		Text string `json:"text"`
	} `json:"labels"`
	Bounds *struct {
		MinLon float64 `json:"min_lon"`
		MaxLat float64 `json:"max_lat"`
	} `json:"bounds"`
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "flightsim_http_requests_total") {
		t.Error("Expected HTTP request metrics")
	}
}

func TestGetTrajectory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/trajectory", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body trajectoryBody
	decode(t, rec, &body)
	if !body.IsSample || body.Points != 5 || len(body.Path) != 5 {
		t.Errorf("Expected the 5 point sample, got %+v", body)
	}
	if len(body.Labels) != 5 || body.Labels[0].Text != "1" || body.Labels[4].Text != "5" {
		t.Errorf("Unexpected labels %+v", body.Labels)
	}
	if body.Bounds == nil || body.Bounds.MinLon != 2.35 || body.Bounds.MaxLat != 48.89 {
		t.Errorf("Unexpected bounds %+v", body.Bounds)
	}
}

func TestGetAt(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Interpolates between samples", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/trajectory/at?t=25", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var body struct {
			Readout struct {
				Timestamp float64 `json:"timestamp"`
				Alt       float64 `json:"alt"`
				Bearing   float64 `json:"bearing"`
			} `json:"readout"`
			Orientation [3]float64 `json:"orientation"`
			Text        string     `json:"text"`
		}
		decode(t, rec, &body)
		if body.Readout.Alt != 1350 || body.Readout.Bearing != 112.5 || body.Readout.Timestamp != 25 {
			t.Errorf("Unexpected readout %+v", body.Readout)
		}
		if body.Orientation[1] != -112.5 {
			t.Errorf("Expected yaw -112.5, got %v", body.Orientation)
		}
		if !strings.Contains(body.Text, "Altitude: 1350 m") {
			t.Errorf("Unexpected text %q", body.Text)
		}
	})

	t.Run("Clamps outside the range", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/trajectory/at?t=1000", "", nil)
		var body struct {
			Readout struct {
				Timestamp float64 `json:"timestamp"`
			} `json:"readout"`
		}
		decode(t, rec, &body)
		if body.Readout.Timestamp != 40 {
			t.Errorf("Expected last sample, got %v", body.Readout.Timestamp)
		}
	})

	t.Run("Rejects a missing timestamp", func(t *testing.T) {
		for _, q := range []string{"", "?t=abc", "?t=NaN"} {
			rec := env.do(t, http.MethodGet, "/api/v1/trajectory/at"+q, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%q: expected 400, got %d", q, rec.Code)
			}
		}
	})
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Valid credentials", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", []byte(`{"username":"admin","password":"secret"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Token string `json:"token"`
		}
		decode(t, rec, &body)

		me := env.do(t, http.MethodGet, "/api/v1/auth/me", body.Token, nil)
		if me.Code != http.StatusOK || !strings.Contains(me.Body.String(), `"admin"`) {
			t.Errorf("Expected token to authenticate, got %d %s", me.Code, me.Body.String())
		}
	})

	t.Run("Wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", []byte(`{"username":"admin","password":"nope"}`))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("Malformed body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", []byte(`{`))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestUploadTrajectory(t *testing.T) {
	t.Run("Requires authentication", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", "", []byte(twoPointTrace))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
		rec = env.do(t, http.MethodPost, "/api/v1/trajectory", "garbage", []byte(twoPointTrace))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for a bad token, got %d", rec.Code)
		}
	})

	t.Run("Viewers cannot upload", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", env.token(t, auth.RoleViewer), []byte(twoPointTrace))
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Valid document replaces the trajectory", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", env.token(t, auth.RoleEditor), []byte(twoPointTrace))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body trajectoryBody
		decode(t, rec, &body)
		if body.ICAO != "abc123" || body.Points != 2 || body.IsSample {
			t.Errorf("Unexpected trajectory %+v", body)
		}
		if env.uploads.count() != 1 {
			t.Fatalf("Expected one recorded upload, got %d", env.uploads.count())
		}
		up := env.uploads.uploads[0]
		if up.Username != "editor-user" || up.PointCount != 2 || len(up.Digest) != 64 {
			t.Errorf("Unexpected upload record %+v", up)
		}
	})

	t.Run("Response describes the uploaded document after a concurrent reset", func(t *testing.T) {
		env := newTestEnv(t)
		env.uploads.onRecord = func() { env.session.Reset() }

		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", env.token(t, auth.RoleEditor), []byte(twoPointTrace))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body trajectoryBody
		decode(t, rec, &body)
		if body.ICAO != "abc123" || body.Points != 2 || body.IsSample {
			t.Errorf("Response followed the reset: %+v", body)
		}

		up := env.uploads.uploads[0]
		if up.ICAO != "abc123" || up.PointCount != 2 {
			t.Errorf("Upload record followed the reset: %+v", up)
		}
		if up.MinTimestamp == nil || *up.MinTimestamp != 100 || up.MaxTimestamp == nil || *up.MaxTimestamp != 110 {
			t.Errorf("Unexpected time range in %+v", up)
		}
		if !env.session.IsSample() {
			t.Error("Expected the reset to have happened")
		}
	})

	t.Run("Invalid JSON keeps the previous trajectory", func(t *testing.T) {
		env := newTestEnv(t)
		token := env.token(t, auth.RoleAdmin)
		env.do(t, http.MethodPost, "/api/v1/trajectory", token, []byte(twoPointTrace))

		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", token, []byte(`{"trace": [`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", rec.Code)
		}
		var body struct {
			Error string `json:"error"`
		}
		decode(t, rec, &body)
		if body.Error != "Invalid JSON file." {
			t.Errorf("Unexpected message %q", body.Error)
		}
		if env.session.Document().ICAO != "abc123" {
			t.Error("Expected previous document to stay current")
		}
		if env.uploads.count() != 1 {
			t.Errorf("Expected rejected upload not to be recorded, got %d", env.uploads.count())
		}
	})

	t.Run("Non numeric coordinates encode as null", func(t *testing.T) {
		env := newTestEnv(t)
		doc := `{"icao":"bad","trace":[[0,"x",0,0],[10,0,0,0]]}`
		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", env.token(t, auth.RoleAdmin), []byte(doc))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body trajectoryBody
		decode(t, rec, &body)
		if body.Path[0][1] != nil {
			t.Errorf("Expected null latitude, got %v", *body.Path[0][1])
		}
	})

	t.Run("Oversized body", func(t *testing.T) {
		env := newTestEnv(t)
		big := []byte(`{"trace":[` + strings.Repeat(`[0,0,0,0],`, 1000) + `[0,0,0,0]]}`)
		rec := env.do(t, http.MethodPost, "/api/v1/trajectory", env.token(t, auth.RoleAdmin), big)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", rec.Code)
		}
	})
}

func TestFetchAndReset(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, auth.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/v1/trajectory/fetch/ABC123", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.session.Document().ICAO != "abc123" {
		t.Error("Expected fetched document to be current")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/trajectory/fetch/ffffff", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/trajectory/reset", token, nil)
	if rec.Code != http.StatusOK || !env.session.IsSample() {
		t.Errorf("Expected reset to the sample, got %d", rec.Code)
	}
}

func TestPlaybackStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server)
	defer ts.Close()

	t.Run("Rejects a bad speed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/playback/ws?speed=-1")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Streams frames and accepts commands", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/playback/ws?speed=4"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		var msg struct {
			Type string `json:"type"`
			Data Frame  `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if msg.Type != "frame" || !msg.Data.Playing || msg.Data.Speed != 4 {
			t.Errorf("Unexpected first frame %+v", msg)
		}

		if err := conn.WriteJSON(Command{Action: "pause"}); err != nil {
			t.Fatal(err)
		}
		for {
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("Expected a paused frame: %v", err)
			}
			if !msg.Data.Playing {
				break
			}
		}

		if err := conn.WriteJSON(Command{Action: "seek", Value: 25}); err != nil {
			t.Fatal(err)
		}
		for {
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("Expected a frame at t=25: %v", err)
			}
			if msg.Data.Readout != nil && float64(msg.Data.Readout.Timestamp) == 25 {
				break
			}
		}
		if msg.Data.Readout.Alt != 1350 {
			t.Errorf("Expected altitude 1350, got %v", msg.Data.Readout.Alt)
		}
	})
}
