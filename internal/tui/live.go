package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/trainsim/internal/viz"
)

// poll refreshes the status, and the metrics once the run has ended.
func (m Model) poll() (Model, tea.Cmd) {
	m.frame++
	m.status = m.app.Sim.Status()
	if m.status.Samples > 0 {
		m.speeds = append(m.speeds, m.status.SpeedMps)
		if len(m.speeds) > historyLen {
			m.speeds = m.speeds[len(m.speeds)-historyLen:]
		}
	}
	if res, err := m.app.Sim.Results(); err == nil && res.RunID == m.status.RunID && res.Len() > 0 {
		m.mode = res.Samples[res.Len()-1].Mode
		if res.Final {
			m.metrics = res.Metrics
		}
	}

	if !m.status.State.Terminal() {
		return m, tick()
	}
	if m.exitOnEnd {
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) runKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		_ = m.app.Sim.Cancel()
		return m, tea.Quit
	case "c":
		if err := m.app.Sim.Cancel(); err != nil {
			m.err = err
		}
	case "esc", "enter":
		if m.exitOnEnd || !m.status.State.Terminal() {
			return m, nil
		}
		if err := m.app.Sim.Reset(); err != nil {
			m.err = err
			return m, nil
		}
		m.screen = screenMenu
		m.err = nil
		return m, tea.ClearScreen
	}
	return m, nil
}

func (m Model) viewRun() string {
	st := m.status
	var b strings.Builder

	spinner := " "
	if !st.State.Terminal() {
		spinner = viz.AnimatedSpinner(m.frame)
	}
	b.WriteString(fmt.Sprintf("\n  %s %s  %s\n\n",
		spinner,
		viz.Title.Render("run "+st.RunID),
		viz.StateStyle(st.State).Render(st.State.String())))

	barWidth := max(m.width-20, 20)
	b.WriteString("  " + viz.ProgressBar(st.Progress, barWidth) + "\n\n")

	row := func(label, value string) {
		b.WriteString("  " + viz.MetricLabel.Render(label) + viz.MetricValue.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.1f s", st.TimeS))
	row("position", fmt.Sprintf("%.1f m", st.PositionM))
	row("speed", fmt.Sprintf("%.2f m/s  (%.1f km/h)", st.SpeedMps, st.SpeedMps*3.6))
	row("mode", viz.ModeStyle(m.mode).Render(m.mode.String()))
	row("samples", fmt.Sprintf("%d", st.Samples))

	hi := 0.0
	for _, v := range m.speeds {
		hi = max(hi, v)
	}
	b.WriteString("\n  " + viz.Sparkline(m.speeds, 0, hi, historyLen) + "\n")

	if st.Diagnostic != "" {
		b.WriteString("\n  " + viz.ErrorText.Render(st.Diagnostic) + "\n")
	}
	if m.metrics != nil {
		b.WriteString("\n" + viz.Separator(barWidth) + "\n")
		for _, line := range strings.Split(strings.TrimRight(viz.Metrics(m.metrics), "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n  " + viz.ErrorText.Render(m.err.Error()) + "\n")
	}

	hint := "c cancel · q quit"
	if st.State.Terminal() && !m.exitOnEnd {
		hint = "enter back to presets · q quit"
	}
	b.WriteString("\n  " + viz.KeyHint.Render(hint) + "\n")
	return b.String()
}
