package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleray/Flight-Simulator/internal/metrics"
	"github.com/fleray/Flight-Simulator/pkg/playback"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

const (
	writeWait      = 5 * time.Second
	maxCommandSize = 1024
)

// Message is a websocket frame sent to playback clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Frame is the playback state sent on every tick.
type Frame struct {
	Readout     *trajectory.Readout `json:"readout"`
	Orientation [3]float64          `json:"orientation"`
	Progress    float64             `json:"progress"`
	Playing     bool                `json:"playing"`
	Speed       float64             `json:"speed"`
	Revision    uint64              `json:"revision"`
}

// Command is a control message sent by playback clients.
type Command struct {
	Action string  `json:"action"` // play, pause, toggle, seek, step, speed, loop
	Value  float64 `json:"value"`
}

// apply executes c against p.
func (c Command) apply(p *playback.Player) bool {
	switch c.Action {
	case "play":
		p.Play()
	case "pause":
		p.Pause()
	case "toggle":
		p.Toggle()
	case "seek":
		p.Seek(c.Value)
	case "step":
		p.Step(int(c.Value))
	case "speed":
		p.SetSpeed(c.Value)
	case "loop":
		p.SetLoop(c.Value != 0)
	default:
		return false
	}
	return true
}

// handlePlaybackStream upgrades to a websocket and streams a private playback
// of the session's trajectory. Each connection has its own Player; a newly
// loaded document restarts it from the beginning.
func (s *Server) handlePlaybackStream(w http.ResponseWriter, r *http.Request) {
	speed := s.cfg.Playback.Speed
	if raw := r.URL.Query().Get("speed"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, "Query parameter speed must be a positive number")
			return
		}
		speed = v
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	session := s.deps.Session
	snap := session.Snapshot()
	player := playback.NewPlayer(snap.Trajectory, session.Interpolator())
	player.SetSpeed(speed)
	player.SetLoop(s.cfg.Playback.Loop)
	player.Play()
	revision := snap.Version

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: apply client commands until the connection closes.
	conn.SetReadLimit(maxCommandSize)
	go func() {
		defer cancel()
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if !cmd.apply(player) {
				log.Printf("Ignoring unknown playback command %q", cmd.Action)
			}
		}
	}()

	ticker := playback.NewTicker(s.cfg.Playback.TickInterval())
	ticker.Drive(player)
	ticker.AddListener(func(time.Duration) {
		if session.Version() != revision {
			snap := session.Snapshot()
			revision = snap.Version
			player.SetTrajectory(snap.Trajectory)
			player.Play()
		}

		if err := s.sendFrame(conn, player, revision); err != nil {
			cancel()
		}
	})

	if err := s.sendFrame(conn, player, revision); err != nil {
		return
	}
	_ = ticker.Run(ctx)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) sendFrame(conn *websocket.Conn, p *playback.Player, revision uint64) error {
	readout := trajectory.NewReadout(p.Current())
	frame := Frame{
		Readout:  readout,
		Progress: p.Progress(),
		Playing:  p.Playing(),
		Speed:    p.Speed(),
		Revision: revision,
	}
	if readout != nil {
		frame.Orientation = readout.Orientation()
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Message{Type: "frame", Data: frame})
}
