// Package tui provides a live terminal monitor for a running hive:
// an agent table with lifecycle state and health, plus aggregate
// counters refreshed on a timer.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agenthive/hive/internal/lifecycle"
	"github.com/agenthive/hive/pkg/models"
)

// Status icons for agent states.
const (
	iconActive     = "[●]"
	iconBusy       = "[◆]"
	iconIdle       = "[○]"
	iconPaused     = "[◌]"
	iconError      = "[✗]"
	iconRetiring   = "[▼]"
	iconTerminated = "[✓]"
	iconOther      = "[◐]"
)

// DefaultRefresh is the monitor's data refresh interval.
const DefaultRefresh = 500 * time.Millisecond

// Source supplies the monitor's data. *lifecycle.Manager satisfies it.
type Source interface {
	Live() []*models.AgentRecord
	Aggregate() lifecycle.Metrics
}

// MessageCounter reports hub throughput. *comms.Hub satisfies it.
type MessageCounter interface {
	TotalMessages() int64
}

type tickMsg time.Time

// Monitor is the bubbletea model for the live hive view.
type Monitor struct {
	source  Source
	counter MessageCounter
	refresh time.Duration

	agents   []*models.AgentRecord
	stats    lifecycle.Metrics
	messages int64

	selected int
	width    int
	height   int
	quitting bool

	titleStyle  lipgloss.Style
	headerStyle lipgloss.Style
	rowStyle    lipgloss.Style
	selStyle    lipgloss.Style
	okStyle     lipgloss.Style
	warnStyle   lipgloss.Style
	badStyle    lipgloss.Style
	dimStyle    lipgloss.Style
}

// NewMonitor creates a monitor backed by the given sources. counter
// may be nil.
func NewMonitor(source Source, counter MessageCounter) *Monitor {
	return &Monitor{
		source:  source,
		counter: counter,
		refresh: DefaultRefresh,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("24")).
			Padding(0, 1),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("7")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")),

		rowStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		selStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true),

		okStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		badStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
	}
}

// Init starts the refresh timer.
func (m *Monitor) Init() tea.Cmd {
	m.reload()
	return m.tick()
}

func (m *Monitor) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// reload snapshots the current hive state.
func (m *Monitor) reload() {
	if m.source == nil {
		return
	}
	agents := m.source.Live()
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].AgentID < agents[j].AgentID
	})
	m.agents = agents
	m.stats = m.source.Aggregate()
	if m.counter != nil {
		m.messages = m.counter.TotalMessages()
	}
	if m.selected >= len(m.agents) {
		m.selected = len(m.agents) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// Update handles input and refresh messages.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.agents)-1 {
				m.selected++
			}
		case "r":
			m.reload()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.reload()
		return m, m.tick()
	}

	return m, nil
}

// View renders the monitor.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := fmt.Sprintf(" hive │ %d live │ %d archived │ %d msgs │ health %.2f ",
		m.stats.LiveAgents, m.stats.ArchivedAgents, m.messages, m.stats.AverageHealth)
	b.WriteString(m.titleStyle.Render(title))
	b.WriteString("\n\n")

	header := fmt.Sprintf("    %-24s %-12s %-12s %-7s %-8s %s",
		"AGENT", "TYPE", "STATE", "HEALTH", "CHILDREN", "UPTIME")
	b.WriteString(m.headerStyle.Render(header))
	b.WriteString("\n")

	if len(m.agents) == 0 {
		b.WriteString(m.dimStyle.Render("  no live agents"))
		b.WriteString("\n")
	}

	for i, rec := range m.agents {
		row := fmt.Sprintf("%s %-24s %-12s %-12s %-7.2f %-8d %s",
			stateIcon(rec.State),
			truncate(rec.AgentID, 24),
			rec.Type,
			rec.State,
			rec.Metrics.HealthScore,
			len(rec.Children),
			formatUptime(rec),
		)

		style := m.rowStyle
		if i == m.selected {
			style = m.selStyle
		} else {
			switch {
			case rec.State == models.StateError:
				style = m.badStyle
			case rec.Metrics.HealthScore < 0.5:
				style = m.warnStyle
			}
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.dimStyle.Render("  ↑/↓ select · r refresh · q quit"))
	b.WriteString("\n")

	return b.String()
}

// SelectedAgent returns the highlighted agent, if any.
func (m *Monitor) SelectedAgent() *models.AgentRecord {
	if m.selected < 0 || m.selected >= len(m.agents) {
		return nil
	}
	return m.agents[m.selected]
}

func stateIcon(s models.AgentState) string {
	switch s {
	case models.StateActive:
		return iconActive
	case models.StateBusy, models.StateDelegating:
		return iconBusy
	case models.StateIdle:
		return iconIdle
	case models.StatePaused:
		return iconPaused
	case models.StateError:
		return iconError
	case models.StateRetiring:
		return iconRetiring
	case models.StateTerminated:
		return iconTerminated
	default:
		return iconOther
	}
}

func formatUptime(rec *models.AgentRecord) string {
	up := rec.Uptime + time.Since(rec.LastStateChange)
	return up.Truncate(time.Second).String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// Run starts the monitor program and blocks until it exits.
func Run(source Source, counter MessageCounter) error {
	p := tea.NewProgram(NewMonitor(source, counter), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
