// Package slots provides the slots tab: one table row per key slot and a
// detail panel for the selected slot.
package slots

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-tray/internal/app"
	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/services"
	"github.com/j-veylop/glm-tray/internal/tray"
	"github.com/j-veylop/glm-tray/internal/ui/components"
	"github.com/j-veylop/glm-tray/internal/ui/styles"
)

// Source supplies per-slot data that is not part of the shared state.
type Source interface {
	NextWake(slot int) time.Time
	HourlyUsage(slot, hours int) ([]models.HourlyUsage, error)
}

// Chart ranges in hours.
var chartRanges = []int{24, 72, 168}

// keyMap defines the key bindings specific to the slots tab.
type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	First      key.Binding
	Last       key.Binding
	ChartRange key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev slot"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next slot"),
		),
		First: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first slot"),
		),
		Last: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last slot"),
		),
		ChartRange: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "chart range"),
		),
	}
}

// usageLoadedMsg carries the hourly usage of one slot.
type usageLoadedMsg struct {
	err     error
	buckets []models.HourlyUsage
	slot    int
	hours   int
}

// Model represents the slots tab state.
type Model struct {
	state    *app.State
	source   Source
	now      func() time.Time
	usage    []models.HourlyUsage
	usageErr error
	keys     keyMap
	table    table.Model
	usageBar components.UsageBar
	width    int
	height   int
	rangeIdx int
}

// New creates a new slots model. source may be nil.
func New(state *app.State, source Source) *Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(models.MaxSlots+1),
	)
	s := table.DefaultStyles()
	s.Header = styles.TableHeaderStyle
	s.Selected = styles.TableSelectedStyle
	t.SetStyles(s)

	m := &Model{
		state:    state,
		source:   source,
		now:      time.Now,
		keys:     defaultKeyMap(),
		table:    t,
		usageBar: components.NewUsageBar(30),
	}
	m.syncRows()
	return m
}

func columns(width int) []table.Column {
	label := max(width-60, 10)
	return []table.Column{
		{Title: "#", Width: 2},
		{Title: "Slot", Width: label},
		{Title: "Usage", Width: 6},
		{Title: "Reset", Width: 9},
		{Title: "Modes", Width: 12},
		{Title: "Status", Width: 22},
	}
}

// Init loads the usage history of the selected slot.
func (m *Model) Init() tea.Cmd {
	return m.loadUsageCmd()
}

// Update handles messages for the slots tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	m.syncRows()

	switch msg := msg.(type) {
	case usageLoadedMsg:
		if msg.slot == m.selectedSlot() && msg.hours == m.hours() {
			m.usage = msg.buckets
			m.usageErr = msg.err
		}

	case app.ServiceEventMsg:
		if e, ok := msg.Event.(services.QuotaUpdatedEvent); ok && e.Slot == m.selectedSlot() {
			return m, m.loadUsageCmd()
		}

	case app.TabSwitchMsg:
		if msg.Tab == app.TabSlots {
			return m, m.loadUsageCmd()
		}

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	before := m.table.Cursor()

	switch {
	case key.Matches(msg, m.keys.ChartRange):
		m.rangeIdx = (m.rangeIdx + 1) % len(chartRanges)
		return m.loadUsageCmd()
	case key.Matches(msg, m.keys.Up):
		m.table.MoveUp(1)
	case key.Matches(msg, m.keys.Down):
		m.table.MoveDown(1)
	case key.Matches(msg, m.keys.First):
		m.table.GotoTop()
	case key.Matches(msg, m.keys.Last):
		m.table.GotoBottom()
	default:
		return nil
	}

	if m.table.Cursor() == before {
		return nil
	}
	idx := m.table.Cursor()
	m.state.SetSelectedSlot(idx)
	m.usage = nil
	m.usageErr = nil
	return tea.Batch(
		m.loadUsageCmd(),
		func() tea.Msg { return app.SelectedSlotChangedMsg{Index: idx} },
	)
}

// selectedSlot returns the 1-based slot number under the cursor.
func (m *Model) selectedSlot() int {
	return m.table.Cursor() + 1
}

func (m *Model) hours() int {
	return chartRanges[m.rangeIdx]
}

func (m *Model) loadUsageCmd() tea.Cmd {
	if m.source == nil {
		return nil
	}
	source, slot, hours := m.source, m.selectedSlot(), m.hours()
	return func() tea.Msg {
		buckets, err := source.HourlyUsage(slot, hours)
		return usageLoadedMsg{slot: slot, hours: hours, buckets: buckets, err: err}
	}
}

// syncRows rebuilds the table from the shared state.
func (m *Model) syncRows() {
	status := m.state.GetStatus()
	settings := m.state.GetSettings()

	rows := make([]table.Row, 0, models.MaxSlots)
	for i, st := range status.Slots {
		var cfg models.SlotConfig
		if i < len(settings.Slots) {
			cfg = settings.Slots[i]
		}
		label := st.Label()
		if cfg.Slot != 0 {
			label = cfg.Label()
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", st.Slot),
			label,
			tray.PercentText(st),
			resetColumn(st),
			modesShort(cfg),
			statusText(st, cfg),
		})
	}
	m.table.SetRows(rows)

	if want := m.state.GetSelectedSlot(); want != m.table.Cursor() {
		m.table.SetCursor(want)
	}
}

func resetColumn(st models.SlotRuntimeStatus) string {
	if !st.Enabled {
		return "-"
	}
	return tray.ResetText(st)
}

// statusText summarizes the runtime state of a slot in a few words.
func statusText(st models.SlotRuntimeStatus, cfg models.SlotConfig) string {
	switch {
	case st.AutoDisabled:
		return "DISABLED (errors)"
	case st.WakeAutoDisabled:
		return fmt.Sprintf("WAKE PAUSED (x%d)", st.WakeConsecutiveErrors)
	case st.WakePending:
		return "wake pending"
	case st.QuotaConsecutiveErrors > 0:
		return fmt.Sprintf("retrying (err x%d)", st.QuotaConsecutiveErrors)
	case st.Enabled:
		return "ok"
	case cfg.Enabled && !cfg.Active():
		return "no API key"
	default:
		return "off"
	}
}

// modesShort lists the enabled wake modes as single letters.
func modesShort(cfg models.SlotConfig) string {
	var out []byte
	if cfg.ScheduleIntervalEnabled {
		out = append(out, 'I')
	}
	if cfg.ScheduleTimesEnabled {
		out = append(out, 'T')
	}
	if cfg.ScheduleAfterResetEnabled {
		out = append(out, 'R')
	}
	if len(out) == 0 {
		return "-"
	}
	return string(out)
}

// SetSize sets the available size for the slots tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(max(width-4, 40))
	m.usageBar.SetWidth(max(width-30, 10))
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.Up, m.keys.Down, m.keys.ChartRange}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down},
		{m.keys.First, m.keys.Last},
		{m.keys.ChartRange},
	}
}
