package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/wayime/internal/bridge"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Fetcher returns the current bridge status.
type Fetcher func(ctx context.Context) (bridge.Status, error)

type monitorKeys struct {
	Quit    key.Binding
	Refresh key.Binding
	Pause   key.Binding
	History key.Binding
}

func (k monitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Pause, k.History, k.Quit}
}

func (k monitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultMonitorKeys = monitorKeys{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p", " "),
		key.WithHelp("p", "pause"),
	),
	History: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "history"),
	),
}

type statusMsg struct {
	status bridge.Status
	err    error
}

type pollMsg struct{}

// MonitorModel polls the bridge and renders every seat live.
type MonitorModel struct {
	ctx      context.Context
	fetch    Fetcher
	interval time.Duration

	status      bridge.Status
	err         error
	updated     time.Time
	polls       int
	paused      bool
	showHistory bool
	quitting    bool

	keys monitorKeys
	help help.Model
	bar  *StatusBar
}

// NewMonitorModel creates a monitor that polls every interval.
func NewMonitorModel(ctx context.Context, socket string, fetch Fetcher, interval time.Duration) *MonitorModel {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	bar := NewStatusBar("wayime monitor")
	bar.Status = socket
	return &MonitorModel{
		ctx:         ctx,
		fetch:       fetch,
		interval:    interval,
		showHistory: true,
		keys:        defaultMonitorKeys,
		help:        help.New(),
		bar:         bar,
	}
}

// Init implements tea.Model
func (m *MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.bar.Init(), m.poll())
}

func (m *MonitorModel) poll() tea.Cmd {
	return func() tea.Msg {
		st, err := m.fetch(m.ctx)
		return statusMsg{status: st, err: err}
	}
}

func (m *MonitorModel) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Update implements tea.Model
func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.poll()
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			if !m.paused {
				return m, m.poll()
			}
		case key.Matches(msg, m.keys.History):
			m.showHistory = !m.showHistory
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd

	case statusMsg:
		m.polls++
		m.err = msg.err
		m.bar.Connected = msg.err == nil
		if msg.err == nil {
			m.status = msg.status
			m.updated = time.Now()
		}
		if m.paused {
			return m, nil
		}
		return m, m.schedule()

	case pollMsg:
		if m.paused {
			return m, nil
		}
		return m, m.poll()
	}

	var cmd tea.Cmd
	m.bar, cmd = m.bar.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *MonitorModel) View() string {
	if m.quitting {
		return ""
	}

	m.bar.ShowSpinner = !m.paused
	sections := []string{m.bar.View(), ""}

	switch {
	case m.err != nil:
		sections = append(sections, ErrorStyle.Render(IconError+" "+m.err.Error()))
	case m.polls == 0:
		sections = append(sections, SubtleStyle.Render("waiting for bridge..."))
	default:
		summary := fmt.Sprintf("%d clients  %d surfaces  %d enabled  up %s  updated %s",
			m.status.Clients, m.status.Surfaces, m.status.EnabledSurfaces,
			m.status.Uptime.Round(time.Second), m.updated.Format("15:04:05"))
		sections = append(sections, SubtleStyle.Render(summary))
		history := 0
		if m.showHistory {
			history = 8
		}
		for _, seat := range m.status.Seats {
			sections = append(sections, RenderSeat(seat, history))
		}
	}

	footer := m.help.View(m.keys)
	if m.paused {
		footer = WarningStyle.Render("paused") + "  " + footer
	}
	sections = append(sections, "", footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// Status returns the last status received.
func (m *MonitorModel) Status() bridge.Status {
	return m.status
}

// Err returns the last poll error.
func (m *MonitorModel) Err() error {
	return m.err
}

// Paused reports whether polling is paused.
func (m *MonitorModel) Paused() bool {
	return m.paused
}
