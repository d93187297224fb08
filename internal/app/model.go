package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/services"
	"github.com/j-veylop/glm-tray/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabSlots is the ID for the slots tab.
	TabSlots TabID = iota
	// TabHistory is the ID for the wake history tab.
	TabHistory
	// TabInfo is the ID for the info tab.
	TabInfo
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabSlots:
		return "Slots"
	case TabHistory:
		return "History"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Tab1    key.Binding
	Tab2    key.Binding
	Tab3    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Start   key.Binding
	Stop    key.Binding
	Reload  key.Binding
	Warmup  key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{}
	km = setTabKeys(km)
	km = setActionKeys(km)
	return km
}

func setTabKeys(k KeyMap) KeyMap {
	k.Tab1 = key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "slots"))
	k.Tab2 = key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "history"))
	k.Tab3 = key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "info"))
	k.NextTab = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab"))
	k.PrevTab = key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab"))
	return k
}

func setActionKeys(k KeyMap) KeyMap {
	k.Start = key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start"))
	k.Stop = key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop"))
	k.Reload = key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "reload settings"))
	k.Warmup = key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "warmup all"))
	k.Help = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help"))
	k.Quit = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
	k.Escape = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close"))
	return k
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Reload, k.Warmup, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3},
		{k.NextTab, k.PrevTab},
		{k.Start, k.Stop, k.Reload, k.Warmup},
		{k.Help, k.Quit},
	}
}

// Styles groups the lipgloss styles of the root model.
type Styles struct {
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style

	// Toast bodies per notification type.
	Notice map[NotificationType]lipgloss.Style

	Content   lipgloss.Style
	Help      lipgloss.Style
	Toast     lipgloss.Style
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
}

// DefaultStyles builds the root styles from the shared palette.
func DefaultStyles() Styles {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return Styles{
		TabBar: lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).BorderForeground(styles.Subtle),
		ActiveTab:   fg(styles.Primary).Bold(true).Padding(0, 2),
		InactiveTab: fg(styles.TextMuted).Padding(0, 2),
		Notice: map[NotificationType]lipgloss.Style{
			NotificationSuccess: fg(styles.Success).Padding(0, 1),
			NotificationError:   fg(styles.Error).Bold(true).Padding(0, 1),
			NotificationWarning: fg(styles.Warning).Padding(0, 1),
			NotificationInfo:    fg(styles.Info).Padding(0, 1),
			NotificationLoading: fg(styles.Info).Padding(0, 1),
		},
		Content:   lipgloss.NewStyle().Padding(1, 2),
		Help:      fg(styles.TextMuted).Padding(0, 1),
		Toast:     styles.ToastStyle,
		Title:     fg(styles.Primary).Bold(true),
		Subtle:    fg(styles.TextMuted),
		Highlight: fg(styles.Secondary),
		Error:     fg(styles.Error),
		Success:   fg(styles.Success),
	}
}

// Model is the main application model.
type Model struct {
	state    *State
	services *services.Manager
	commands *Commands
	styles   Styles
	keymap   KeyMap

	tabs     []Tab
	tabNames []string

	eventChannel chan services.ServiceEvent

	help    help.Model
	spinner spinner.Model

	activeTab TabID
	width     int
	height    int

	showHelp bool
	ready    bool
}

// NewModel initializes a new application model. ctx bounds the engine started from the UI.
func NewModel(ctx context.Context, mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		activeTab: TabSlots,
		tabNames:  []string{TabSlots.String(), TabHistory.String(), TabInfo.String()},
		tabs:      make([]Tab, 3),
		state:     NewState(),
		services:  mgr,
		commands:  NewCommands(ctx, mgr),
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		help:      help.New(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetCommands returns the commands helper.
func (m *Model) GetCommands() *Commands {
	return m.commands
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services))
		cmds = append(cmds, loadInitialData(m.services))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg, tea.KeyMsg, spinner.TickMsg:
		if cmd := m.handleTeaMsg(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	default:
		if appCmds := m.handleAppMsg(msg); len(appCmds) > 0 {
			cmds = append(cmds, appCmds...)
		}
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleTeaMsg(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, defaultTickCmd())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEventMsg(msg)...)
	case StatusLoadedMsg:
		m.handleStatusLoaded(msg)
	case WakeHistoryLoadedMsg:
		cmds = append(cmds, m.handleWakeHistoryLoaded(msg)...)
	case MonitoringChangedMsg:
		cmds = append(cmds, m.handleMonitoringChanged(msg)...)
	case SettingsReloadedMsg:
		cmds = append(cmds, m.handleSettingsReloaded(msg)...)
	case WarmupResultMsg:
		cmds = append(cmds, m.handleWarmupResult(msg)...)
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Working...")
	case StopLoadingMsg:
		m.stopLoading(msg.Resource)
	case ErrorMsg:
		cmds = append(cmds, notifyErrorCmd(msg.Error.Error()))
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		m.switchTab(msg.Tab)
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	case SelectedSlotChangedMsg:
		m.state.SetSelectedSlot(msg.Index)
	}
	return cmds
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.help.Width = msg.Width
	m.updateTabSizes()
}

func (m *Model) stopLoading(resource string) {
	m.state.SetLoading(resource, false)
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleServiceEventMsg(msg ServiceEventMsg) []tea.Cmd {
	var cmds []tea.Cmd
	if cmd := m.handleServiceEvent(msg.Event); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if m.eventChannel != nil {
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	}
	return cmds
}

func (m *Model) handleStatusLoaded(msg StatusLoadedMsg) {
	m.state.SetStatus(msg.Status, msg.Summary)
	m.state.SetSettings(msg.Settings)
	m.state.SetLoading("initial", false)
	m.stopLoading("status")
}

func (m *Model) handleWakeHistoryLoaded(msg WakeHistoryLoadedMsg) []tea.Cmd {
	m.stopLoading("history")
	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Failed to load wake history: %v", msg.Error))}
	}
	m.state.SetWakeEvents(msg.Events)
	return nil
}

func (m *Model) handleMonitoringChanged(msg MonitoringChangedMsg) []tea.Cmd {
	var cmds []tea.Cmd
	if msg.Running {
		cmds = append(cmds, notifySuccessCmd("Monitoring started"))
	} else {
		cmds = append(cmds, notifyInfoCmd("Monitoring stopped"))
	}
	if m.services != nil {
		cmds = append(cmds, loadStatusCmd(m.services))
	}
	return cmds
}

func (m *Model) handleSettingsReloaded(msg SettingsReloadedMsg) []tea.Cmd {
	m.stopLoading("settings")
	if msg.Error != nil {
		return []tea.Cmd{notifyErrorCmd(fmt.Sprintf("Failed to reload settings: %v", msg.Error))}
	}
	m.state.SetSettings(msg.Settings)

	cmds := []tea.Cmd{notifySuccessCmd("Settings reloaded")}
	if m.services != nil {
		cmds = append(cmds, loadStatusCmd(m.services))
	}
	return cmds
}

func (m *Model) handleWarmupResult(msg WarmupResultMsg) []tea.Cmd {
	m.stopLoading("warmup")
	switch {
	case msg.Succeeded == 0 && msg.Failed == 0:
		return []tea.Cmd{notifyWarningCmd("No active slots to warm up")}
	case msg.Failed > 0:
		return []tea.Cmd{notifyWarningCmd(fmt.Sprintf("Warmup: %d ok, %d failed", msg.Succeeded, msg.Failed))}
	default:
		return []tea.Cmd{notifySuccessCmd(fmt.Sprintf("Warmed up %d slot(s)", msg.Succeeded))}
	}
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.services == nil {
		return nil
	}

	var cmds []tea.Cmd
	switch msg.Resource {
	case "all":
		cmds = append(cmds, loadInitialData(m.services))
	case "status":
		cmds = append(cmds, loadStatusCmd(m.services))
	case "history":
		m.state.SetLoading("history", true)
		cmds = append(cmds, loadWakeHistoryCmd(m.services))
	}
	return cmds
}

func (m *Model) switchTab(tab TabID) {
	m.activeTab = tab
	m.updateTabSizes()
}

// switchTabCmd activates tab and lets it know it became visible.
func (m *Model) switchTabCmd(tab TabID) tea.Cmd {
	m.switchTab(tab)
	return func() tea.Msg { return TabSwitchMsg{Tab: tab} }
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := max(0, m.height-5)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

// handleKeyMsg handles keyboard input.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keymap.Escape):
		m.showHelp = false

	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTabCmd(TabSlots)

	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTabCmd(TabHistory)

	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTabCmd(TabInfo)

	case key.Matches(msg, m.keymap.NextTab):
		if !m.showHelp {
			return m.switchTabCmd(TabID((int(m.activeTab) + 1) % len(m.tabs)))
		}

	case key.Matches(msg, m.keymap.PrevTab):
		if !m.showHelp {
			return m.switchTabCmd(TabID((int(m.activeTab) - 1 + len(m.tabs)) % len(m.tabs)))
		}

	case key.Matches(msg, m.keymap.Start):
		return m.runAction("status", "Starting...", m.commands.StartMonitoring())

	case key.Matches(msg, m.keymap.Stop):
		return m.runAction("status", "Stopping...", m.commands.StopMonitoring())

	case key.Matches(msg, m.keymap.Reload):
		return m.runAction("settings", "Reloading settings...", m.commands.ReloadSettings())

	case key.Matches(msg, m.keymap.Warmup):
		return m.runAction("warmup", "Warming up...", m.commands.WarmupAll())
	}

	return nil
}

// runAction marks a resource as loading and runs cmd. Without a service manager it does nothing.
func (m *Model) runAction(resource, label string, cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	m.state.SetLoading(resource, true)
	m.state.SetLoadingNotification(label)
	return cmd
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.StatusChangedEvent:
		m.state.SetStatus(e.Status, e.Summary)

	case services.SettingsChangedEvent:
		m.state.SetSettings(e.Settings)

	case services.WakeActivityEvent:
		m.state.PrependWakeEvent(e.Event)
		return m.wakeActivityNotice(e.Event)

	case services.ErrorEvent:
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

func (m *Model) wakeActivityNotice(event models.WakeEvent) tea.Cmd {
	label := models.SlotLabel(event.Slot)
	if cfg, ok := m.state.SlotConfig(event.Slot); ok {
		label = cfg.Label()
	}

	switch event.Kind {
	case models.WakeEventSent:
		return notifyInfoCmd(fmt.Sprintf("%s: wake sent (%s)", label, event.Reason))
	case models.WakeEventConfirmed:
		return notifySuccessCmd(fmt.Sprintf("%s: wake confirmed", label))
	case models.WakeEventAutoDisabled:
		return notifyErrorCmd(fmt.Sprintf("%s: wake paused after repeated failures", label))
	case models.WakeEventSlotDisabled:
		return notifyErrorCmd(fmt.Sprintf("%s: polling disabled after repeated errors", label))
	}
	return nil
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help.View(m.keymap)))

	view := b.String()

	if m.showHelp {
		panel := m.renderHelp()
		x := max((m.width-lipgloss.Width(panel))/2, 0)
		y := max((m.height-lipgloss.Height(panel))/2, 0)
		view = overlay(view, panel, x, y)
	}

	if toasts := m.renderToasts(); toasts != "" {
		view = overlay(view, toasts, max(m.width-lipgloss.Width(toasts)-2, 0), 2)
	}

	return view
}

// overlay draws block over base with its top-left corner at column x, row y.
// Rows of block that fall below base are dropped.
func overlay(base, block string, x, y int) string {
	baseLines := strings.Split(base, "\n")
	blockWidth := lipgloss.Width(block)

	for i, line := range strings.Split(block, "\n") {
		row := y + i
		if row >= len(baseLines) {
			break
		}
		under := baseLines[row]
		left := ansi.Truncate(under, x, "")
		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		baseLines[row] = left + line + ansi.TruncateLeft(under, x+blockWidth, "")
	}

	return strings.Join(baseLines, "\n")
}

func (m *Model) renderNavbar() string {
	var tabs []string

	for i, name := range m.tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	state := m.styles.Subtle.Render("stopped")
	if m.state.IsMonitoring() {
		state = m.styles.Success.Render("monitoring")
	}
	if summary := m.state.GetSummary(); summary.Alert {
		state += " " + m.styles.Error.Render("! "+summary.AlertReason)
	}
	tabs = append(tabs, m.styles.InactiveTab.Render(state))

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

var noticePrefix = map[NotificationType]string{
	NotificationSuccess: "[OK]",
	NotificationError:   "[ERR]",
	NotificationWarning: "[WARN]",
	NotificationInfo:    "[INFO]",
}

// renderToasts stacks the active notifications, right aligned.
func (m *Model) renderToasts() string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return ""
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		prefix := noticePrefix[n.Type]
		if n.Type == NotificationLoading {
			prefix = m.spinner.View()
		}
		body := m.styles.Notice[n.Type].Render(prefix + " " + n.Message)
		toasts = append(toasts, m.styles.Toast.Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Right, toasts...)
}

func (m *Model) renderHelp() string {
	lines := []string{
		m.styles.Title.Render("Keyboard Shortcuts"),
		"",
		m.styles.Highlight.Render("Navigation"),
		"  1-3        Switch tabs",
		"  Tab        Next tab",
		"  Shift+Tab  Previous tab",
		"",
		m.styles.Highlight.Render("Engine"),
		"  s          Start monitoring",
		"  x          Stop monitoring",
		"  r          Reload settings from disk",
		"  w          Warm up every active slot",
		"",
		m.styles.Highlight.Render("General"),
		"  ?          Toggle help",
		"  q/Ctrl+C   Quit",
		"",
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
			lines = append(lines, m.styles.Highlight.Render(fmt.Sprintf("%s Tab", m.tabNames[m.activeTab])))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("This tab is not yet implemented."),
	)
	return m.styles.Content.Render(content)
}
