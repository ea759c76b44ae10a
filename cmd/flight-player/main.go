// Flight player: a terminal replay of a recorded flight trace.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fleray/Flight-Simulator/pkg/config"
	"github.com/fleray/Flight-Simulator/pkg/playback"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	logPath    = flag.String("log", "", "Write log output to this file (default: discard)")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Background(lipgloss.Color("235")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

type model struct {
	session  *playback.Session
	player   *playback.Player
	interval time.Duration
	interp   trajectory.Interpolator

	width, height int

	inputMode   bool
	inputBuffer string
	errMsg      string
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newModel(cfg *config.Config, session *playback.Session) model {
	interp := session.Interpolator()
	player := playback.NewPlayer(session.Trajectory(), interp)
	player.SetSpeed(cfg.Playback.Speed)
	player.SetLoop(cfg.Playback.Loop)

	return model{
		session:  session,
		player:   player,
		interval: cfg.Playback.TickInterval(),
		interp:   interp,
		width:    100,
		height:   32,
	}
}

func (m model) Init() tea.Cmd {
	return tick(m.interval)
}

// load reads a trace file into the session. A failed load keeps the
// current trajectory and shows the error.
func (m *model) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Failed to load %s: %v", path, err)
		m.errMsg = playback.UserMessage(err)
		return
	}
	snap, err := m.session.Load(data)
	if err != nil {
		log.Printf("Failed to load %s: %v", path, err)
		m.errMsg = playback.UserMessage(err)
		return
	}
	m.errMsg = ""
	m.player.SetTrajectory(snap.Trajectory)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		m.player.Advance(m.interval)
		return m, tick(m.interval)

	case tea.KeyMsg:
		if m.inputMode {
			switch msg.String() {
			case "enter":
				if path := strings.TrimSpace(m.inputBuffer); path != "" {
					m.load(path)
				}
				m.inputMode = false
				m.inputBuffer = ""
			case "esc":
				m.inputMode = false
				m.inputBuffer = ""
			case "backspace":
				if len(m.inputBuffer) > 0 {
					m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
				}
			default:
				if msg.Type == tea.KeyRunes {
					m.inputBuffer += string(msg.Runes)
				}
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "p":
			m.player.Toggle()
		case "right", "l":
			m.player.Step(1)
		case "left", "h":
			m.player.Step(-1)
		case "shift+right", "L":
			m.player.SeekFraction(m.player.Progress() + 0.1)
		case "shift+left", "H":
			m.player.SeekFraction(m.player.Progress() - 0.1)
		case "home", "g":
			m.player.SeekFraction(0)
		case "end", "G":
			m.player.SeekFraction(1)
		case "+", "=":
			m.player.SetSpeed(m.player.Speed() * 2)
		case "-", "_":
			m.player.SetSpeed(m.player.Speed() / 2)
		case "r":
			m.player.SetTrajectory(m.session.Reset().Trajectory)
			m.errMsg = ""
		case "b":
			if m.interp.Bearing == trajectory.BearingLinear {
				m.interp.Bearing = trajectory.BearingShortestArc
			} else {
				m.interp.Bearing = trajectory.BearingLinear
			}
			m.player.SetInterpolator(m.interp)
		case "c":
			if m.interp.Path == trajectory.PathLinear {
				m.interp.Path = trajectory.PathGreatCircle
			} else {
				m.interp.Path = trajectory.PathLinear
			}
			m.player.SetInterpolator(m.interp)
		case "o":
			m.inputMode = true
			m.inputBuffer = ""
		case "esc":
			m.errMsg = ""
		}
	}

	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	tr := m.player.Trajectory()
	title := "FLIGHT SIMULATOR"
	if doc := m.session.Document(); doc != nil && doc.ICAO != "" {
		title += " · " + strings.ToUpper(doc.ICAO)
	}
	if m.session.IsSample() {
		title += " (sample)"
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	if m.inputMode {
		s.WriteString("\n")
		s.WriteString(promptStyle.Render("Open trace file (JSON or gzip):"))
		s.WriteString("\n")
		s.WriteString(inputStyle.Render("> " + m.inputBuffer + "_"))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("ENTER: Load  ESC: Cancel"))
		return s.String()
	}

	// Map area: leave room for header, readout, scrub bar, status and help
	mapW := m.width - 2
	mapH := m.height - 9
	if mapW < 20 {
		mapW = 20
	}
	if mapH < 5 {
		mapH = 5
	}

	current := m.player.Current()
	s.WriteString(borderStyle.Render(drawMap(tr, current, mapW, mapH).String()))
	s.WriteString("\n")

	if r := trajectory.NewReadout(current); r != nil {
		s.WriteString(infoStyle.Render(r.String()))
	} else {
		s.WriteString(infoStyle.Render("No samples in trace"))
	}
	s.WriteString("\n")

	start, end := formatTime(tr.MinTimestamp), formatTime(tr.MaxTimestamp)
	barW := m.width - len(start) - len(end) - 2
	s.WriteString(start + " " + progressBar(m.player.Progress(), barW) + " " + end)
	s.WriteString("\n")

	state := "⏸ paused"
	if m.player.Playing() {
		state = "▶ playing"
	} else if !m.player.CanPlay() {
		state = "⏹ nothing to play"
	}
	s.WriteString(statusStyle.Render(fmt.Sprintf("%s  t=%s  point %d/%d  speed %gx  bearing %s  path %s",
		state, formatTime(m.player.Time()), m.player.Index()+1, tr.Len(),
		m.player.Speed(), m.interp.Bearing, m.interp.Path)))
	s.WriteString("\n")

	if m.errMsg != "" {
		s.WriteString(errorStyle.Render(m.errMsg))
	}
	s.WriteString("\n")

	s.WriteString(helpStyle.Render("SPACE: Play/Pause  ←/→: Step  H/L: ±10%  +/-: Speed  b: Bearing  c: Path  o: Open  r: Sample  q: Quit"))
	return s.String()
}

func main() {
	flag.Parse()

	// Keep log output off the screen
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	session := playback.NewSession(
		playback.WithCache(trajectory.NewCache(cfg.Cache.MaxEntries)),
		playback.WithInterpolator(cfg.Playback.Interpolator()),
		playback.WithLogger(log.Default()),
	)

	m := newModel(cfg, session)
	if path := flag.Arg(0); path != "" {
		m.load(path)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
