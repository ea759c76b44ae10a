package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/fleray/Flight-Simulator/pkg/trace"
	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// App is the trace inspector: a table of the derived aircraft points with
// a detail panel and a timestamp probe for the interpolator.
type App struct {
	doc    *trace.Document
	tr     trajectory.Trajectory
	interp trajectory.Interpolator

	tviewApp *tview.Application
	table    *tview.Table
	summary  *tview.TextView
	detail   *tview.TextView
	logs     *tview.TextView
	probe    *tview.InputField
	root     *tview.Flex

	mu sync.RWMutex
}

// NewApp creates an inspector for doc.
func NewApp(doc *trace.Document, interp trajectory.Interpolator) *App {
	a := &App{
		doc:    doc,
		tr:     trajectory.Build(doc),
		interp: interp,
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.table = tview.NewTable().
		SetBorders(false).
		SetFixed(1, 1).
		SetSelectable(true, false)
	a.table.SetBorder(true).SetTitle(" Aircraft points ")
	a.table.SetSelectionChangedFunc(func(row, _ int) {
		a.showPoint(row - 1)
	})

	a.summary = tview.NewTextView().SetDynamicColors(true)
	a.summary.SetBorder(true).SetTitle(" Trace ")

	a.detail = tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	a.detail.SetBorder(true).SetTitle(" Detail ")

	a.logs = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(100)
	a.logs.SetBorder(true).SetTitle(" Logs ")

	a.probe = tview.NewInputField().
		SetLabel("Interpolate at t = ").
		SetFieldWidth(16).
		SetAcceptanceFunc(tview.InputFieldFloat)
	a.probe.SetDoneFunc(a.handleProbe)

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.summary, 0, 3, false).
		AddItem(a.detail, 0, 4, false).
		AddItem(a.logs, 0, 3, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.table, 0, 6, true).
		AddItem(sidebar, 0, 4, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(a.probe, 1, 0, false)

	a.fillTable()
	a.updateSummary()
	a.showPoint(0)

	a.tviewApp.SetRoot(a.root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

// fillTable writes one row per aircraft point.
func (a *App) fillTable() {
	a.mu.RLock()
	a.table.Clear()
	for c, col := range columns {
		a.table.SetCell(0, c, tview.NewTableCell(col.title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAlign(tview.AlignRight))
	}

	for i := range a.tr.Aircraft {
		for c, text := range rowCells(i, &a.tr.Aircraft[i]) {
			a.table.SetCell(i+1, c, tview.NewTableCell(text).
				SetTextColor(cellColor(text)).
				SetAlign(tview.AlignRight))
		}
	}
	n := len(a.tr.Aircraft)
	a.mu.RUnlock()

	// Select calls the selection handler, which takes the lock itself
	if n > 0 {
		a.table.Select(1, 0)
	}
}

// updateSummary shows document metadata, time range, bounds and the order check.
func (a *App) updateSummary() {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var text strings.Builder
	fmt.Fprintf(&text, "[yellow]ICAO:[-]     [white]%s[-]\n", a.doc.ICAO)
	fmt.Fprintf(&text, "[yellow]Version:[-]  [white]%s[-]\n", a.doc.Version)
	fmt.Fprintf(&text, "[yellow]Base t:[-]   [white]%s[-]\n", strconv.FormatFloat(a.doc.BaseTimestamp, 'f', -1, 64))
	fmt.Fprintf(&text, "[yellow]Points:[-]   [white]%d[-]\n", a.tr.Len())
	fmt.Fprintf(&text, "[yellow]Range:[-]    [white]%s – %s (%ss)[-]\n",
		formatValue(a.tr.MinTimestamp, 1), formatValue(a.tr.MaxTimestamp, 1), formatValue(a.tr.Duration(), 1))

	if minLon, minLat, maxLon, maxLat, ok := trajectory.Bounds(a.tr); ok {
		fmt.Fprintf(&text, "[yellow]Bounds:[-]   [white]%.4f,%.4f → %.4f,%.4f[-]\n", minLat, minLon, maxLat, maxLon)
	} else {
		text.WriteString("[yellow]Bounds:[-]   [gray]none[-]\n")
	}

	if err := trajectory.CheckOrder(a.tr); err != nil {
		fmt.Fprintf(&text, "[red]%v[-]\n", err)
	} else {
		text.WriteString("[green]Timestamps in order[-]\n")
	}
	fmt.Fprintf(&text, "[yellow]Modes:[-]    [white]bearing %s, path %s[-]\n", a.interp.Bearing, a.interp.Path)

	a.summary.SetText(text.String())
}

// showPoint shows the readout and raw row of point i.
func (a *App) showPoint(i int) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if i < 0 || i >= len(a.tr.Aircraft) {
		a.detail.SetText("[gray]No point selected[-]")
		return
	}
	p := &a.tr.Aircraft[i]
	a.detail.SetText(describe(fmt.Sprintf("Point %d", i+1), p))
}

// describe formats a point for the detail panel.
func describe(title string, p *trajectory.AircraftPoint) string {
	r := trajectory.NewReadout(p)
	o := r.Orientation()

	var text strings.Builder
	fmt.Fprintf(&text, "[yellow]%s[-]\n", title)
	fmt.Fprintf(&text, "[white]%s[-]\n\n", tview.Escape(r.String()))
	fmt.Fprintf(&text, "[gray]Position:[-]    [white]%s, %s, %s[-]\n",
		formatValue(p.Position[0], 5), formatValue(p.Position[1], 5), formatValue(p.Position[2], 0))
	fmt.Fprintf(&text, "[gray]Orientation:[-] [white]%.1f°, %.1f°, %.0f°[-]\n", o[0], o[1], o[2])
	if p.Raw != nil {
		raw, err := json.Marshal(p.Raw)
		if err == nil {
			fmt.Fprintf(&text, "[gray]Raw row:[-]     [white]%s[-]\n", tview.Escape(string(raw)))
		}
	}
	return text.String()
}

// handleProbe interpolates at the entered timestamp.
func (a *App) handleProbe(key tcell.Key) {
	defer a.tviewApp.SetFocus(a.table)
	if key != tcell.KeyEnter {
		return
	}

	ts, err := parseQueryTime(a.probe.GetText())
	if err != nil {
		a.addLog("WARN", fmt.Sprintf("Not a timestamp: %q", a.probe.GetText()))
		return
	}

	a.mu.RLock()
	p := a.interp.At(a.tr.Aircraft, ts)
	a.mu.RUnlock()

	if p == nil {
		a.addLog("WARN", "Trace has no points")
		return
	}
	a.detail.SetText(describe("Interpolated at t="+strconv.FormatFloat(ts, 'f', -1, 64), p))
	a.addLog("INFO", fmt.Sprintf("Interpolated t=%s", strconv.FormatFloat(ts, 'f', -1, 64)))
}

// toggleBearingMode switches between linear and shortest-arc bearings.
func (a *App) toggleBearingMode() {
	a.mu.Lock()
	if a.interp.Bearing == trajectory.BearingLinear {
		a.interp.Bearing = trajectory.BearingShortestArc
	} else {
		a.interp.Bearing = trajectory.BearingLinear
	}
	mode := a.interp.Bearing
	a.mu.Unlock()

	a.updateSummary()
	a.addLog("INFO", fmt.Sprintf("Bearing interpolation: %s", mode))
}

// addLog adds a log message to the log panel
func (a *App) addLog(level, message string) {
	timestamp := time.Now().Format("15:04:05")
	var color string
	switch level {
	case "ERROR":
		color = "red"
	case "WARN":
		color = "yellow"
	default:
		color = "white"
	}
	fmt.Fprintf(a.logs, "[gray]%s[-] [%s]%-5s[-] %s\n", timestamp, color, level, tview.Escape(message))
}

// handleKeyboard handles keyboard input
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	if a.tviewApp.GetFocus() == a.probe {
		return event
	}

	switch {
	case event.Key() == tcell.KeyEscape || event.Rune() == 'q':
		a.tviewApp.Stop()
		return nil
	case event.Rune() == 't' || event.Rune() == '/':
		a.probe.SetText("")
		a.tviewApp.SetFocus(a.probe)
		return nil
	case event.Rune() == 'b':
		a.toggleBearingMode()
		return nil
	}
	return event
}

// Run starts the UI and blocks until it exits.
func (a *App) Run() error {
	if err := trajectory.CheckOrder(a.tr); err != nil {
		a.addLog("WARN", err.Error())
	}
	a.addLog("INFO", fmt.Sprintf("Loaded %d points", a.tr.Len()))
	return a.tviewApp.Run()
}
