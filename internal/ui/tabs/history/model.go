// Package history provides the history tab: wake activity counts and the
// recent wake event log.
package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-tray/internal/app"
	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/services"
)

// Source supplies aggregated wake history.
type Source interface {
	WakeCounts(days int) (map[models.WakeEventKind]int, error)
}

// Count ranges in days.
var dayRanges = []int{1, 7, 30}

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange  key.Binding
	ToggleFilter key.Binding
	Refresh      key.Binding
	Up           key.Binding
	Down         key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		ToggleFilter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "selected slot only"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "refresh"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// countsLoadedMsg is sent when wake counts are loaded.
type countsLoadedMsg struct {
	counts map[models.WakeEventKind]int
	days   int
}

// countsErrorMsg is sent when there's an error loading counts.
type countsErrorMsg struct {
	err string
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	source   Source
	keys     keyMap
	viewport viewport.Model

	counts      map[models.WakeEventKind]int
	lastRefresh time.Time
	errorMsg    string
	width       int
	height      int
	rangeIdx    int
	loading     bool
	slotOnly    bool
}

// New creates a new history model. source may be nil.
func New(state *app.State, source Source) *Model {
	return &Model{
		state:    state,
		source:   source,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		rangeIdx: 1,
	}
}

// Init loads the wake counts and asks the root model for the event log.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmds()...)
}

func (m *Model) days() int {
	return dayRanges[m.rangeIdx]
}

// loadCountsCmd creates a command to load wake counts.
func (m *Model) loadCountsCmd() tea.Cmd {
	if m.source == nil {
		return nil
	}
	m.loading = true
	source, days := m.source, m.days()
	return func() tea.Msg {
		counts, err := source.WakeCounts(days)
		if err != nil {
			return countsErrorMsg{err: err.Error()}
		}
		return countsLoadedMsg{counts: counts, days: days}
	}
}

func (m *Model) refreshCmds() []tea.Cmd {
	return []tea.Cmd{
		m.loadCountsCmd(),
		func() tea.Msg { return app.RefreshMsg{Resource: "history"} },
	}
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case countsLoadedMsg:
		if msg.days == m.days() {
			m.counts = msg.counts
			m.loading = false
			m.lastRefresh = time.Now()
			m.errorMsg = ""
		}

	case countsErrorMsg:
		m.loading = false
		m.errorMsg = msg.err
		return m, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("History error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		}

	case app.ServiceEventMsg:
		if _, ok := msg.Event.(services.WakeActivityEvent); ok && !m.loading {
			return m, m.loadCountsCmd()
		}

	case app.TabSwitchMsg:
		// Results are delivered to the active tab only, so refresh on every visit.
		if msg.Tab == app.TabHistory {
			return m, m.loadCountsCmd()
		}

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (app.Tab, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.rangeIdx = (m.rangeIdx + 1) % len(dayRanges)
		return m, m.loadCountsCmd()

	case key.Matches(msg, m.keys.ToggleFilter):
		m.slotOnly = !m.slotOnly
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.refreshCmds()...)

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
}

// visibleEvents returns the event log after the slot filter.
func (m *Model) visibleEvents() []models.WakeEvent {
	events := m.state.GetWakeEvents()
	if !m.slotOnly {
		return events
	}
	slot := m.state.GetSelectedSlot() + 1
	filtered := make([]models.WakeEvent, 0, len(events))
	for _, e := range events {
		if e.Slot == slot {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.ToggleFilter,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.ToggleFilter, m.keys.Refresh},
		{m.keys.Up, m.keys.Down},
	}
}
