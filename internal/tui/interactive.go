// Package tui is the bubbletea front end: a preset menu and a live view
// of the running simulation.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/trainsim/internal/app"
	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/sim"
	"github.com/san-kum/trainsim/internal/viz"
)

type screen int

const (
	screenMenu screen = iota
	screenRun
)

const (
	pollInterval = 100 * time.Millisecond
	historyLen   = 60
)

var presetInfo = map[string]string{
	"commuter":   "regional emu, one intermediate stop",
	"freight":    "heavy freight, no stops, no regen",
	"metro":      "urban metro, grades and curves",
	"scenario-a": "flat 1 km reference run",
	"tram":       "light rail, steep grades",
}

type Model struct {
	app    *app.Context
	screen screen
	cursor int
	names  []string
	// quit when the run ends instead of returning to the menu
	exitOnEnd bool

	status  sim.Status
	speeds  []float64
	mode    dynamo.Mode
	metrics map[string]float64
	err     error
	frame   int
	width   int
}

// NewMenu opens on the preset list.
func NewMenu(c *app.Context) Model {
	return Model{app: c, screen: screenMenu, names: config.ListPresets(), width: 80}
}

// NewLive follows the run already started on c and quits when it ends.
func NewLive(c *app.Context) Model {
	m := NewMenu(c)
	m.screen = screenRun
	m.exitOnEnd = true
	return m
}

func Run(c *app.Context) error {
	_, err := tea.NewProgram(NewMenu(c), tea.WithAltScreen()).Run()
	return err
}

// RunLive shows the current run until it finishes or the user quits.
func RunLive(c *app.Context) error {
	_, err := tea.NewProgram(NewLive(c)).Run()
	return err
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	if m.screen == screenRun {
		return tick()
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.screen == screenMenu {
			return m.menuKey(msg)
		}
		return m.runKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		if m.screen != screenRun {
			return m, nil
		}
		return m.poll()
	}
	return m, nil
}

func (m Model) menuKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}
	case "t":
		names := viz.ThemeNames()
		for i, n := range names {
			if n == viz.CurrentTheme.Name {
				viz.SetTheme(names[(i+1)%len(names)])
				break
			}
		}
	case "enter", " ":
		m.err = nil
		if err := m.app.LoadPreset(m.names[m.cursor]); err != nil {
			m.err = err
			return m, nil
		}
		if _, err := m.app.Start(); err != nil {
			m.err = err
			return m, nil
		}
		m.screen = screenRun
		m.speeds = m.speeds[:0]
		m.metrics = nil
		return m, tea.Batch(tea.ClearScreen, tick())
	}
	return m, nil
}

func (m Model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n  " + viz.Title.Render("trainsim") + viz.Subtle.Render("  train running simulation") + "\n\n")

	for i, name := range m.names {
		line := fmt.Sprintf("%-12s %s", name, viz.Subtle.Render(presetInfo[name]))
		if i == m.cursor {
			b.WriteString("  " + viz.Selected.Render("▸ "+line) + "\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n  " + viz.ErrorText.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n  " + viz.KeyHint.Render("↑/↓ select · enter run · t theme ("+viz.CurrentTheme.Name+") · q quit") + "\n")
	return b.String()
}

func (m Model) View() string {
	if m.screen == screenMenu {
		return m.viewMenu()
	}
	return m.viewRun()
}
