package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/glm-tray/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second

	// WakeHistoryLimit is the number of wake events shown in the history tab.
	WakeHistoryLimit = 100

	warmupTimeout = 2 * time.Minute
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadInitialData returns a command that loads all initial data.
func loadInitialData(mgr *services.Manager) tea.Cmd {
	return tea.Batch(
		loadStatusCmd(mgr),
		loadWakeHistoryCmd(mgr),
	)
}

// loadStatusCmd returns a command that snapshots the runtime status.
func loadStatusCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return StatusLoadedMsg{
			Status:   mgr.Status(),
			Summary:  mgr.Summary(),
			Settings: mgr.Settings(),
		}
	}
}

// loadWakeHistoryCmd returns a command that reads the recent wake events.
func loadWakeHistoryCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		events, err := mgr.WakeHistory(WakeHistoryLimit)
		return WakeHistoryLoadedMsg{Events: events, Error: err}
	}
}

// startMonitoringCmd starts the engine with every active slot.
func startMonitoringCmd(ctx context.Context, mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		mgr.StartMonitoring(ctx)
		return MonitoringChangedMsg{Running: mgr.IsMonitoring()}
	}
}

// stopMonitoringCmd stops every slot.
func stopMonitoringCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		mgr.StopMonitoring()
		return MonitoringChangedMsg{Running: mgr.IsMonitoring()}
	}
}

// reloadSettingsCmd re-reads the settings file and pushes it into the engine.
func reloadSettingsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		settings, err := mgr.LoadSettings()
		return SettingsReloadedMsg{Settings: settings, Error: err}
	}
}

// warmupAllCmd warms up every active slot.
func warmupAllCmd(ctx context.Context, mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()
		ok, failed := mgr.WarmupAll(ctx)
		return WarmupResultMsg{Succeeded: ok, Failed: failed}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(notifType NotificationType, message string, duration time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     notifType,
			Message:  message,
			Duration: duration,
		}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Commands gives tabs access to the command constructors.
type Commands struct {
	ctx     context.Context
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(ctx context.Context, mgr *services.Manager) *Commands {
	return &Commands{ctx: ctx, manager: mgr}
}

// Tick returns a tick command with the specified interval.
func (c *Commands) Tick(interval time.Duration) tea.Cmd {
	return tickCmd(interval)
}

// DefaultTick returns a tick command with the default interval.
func (c *Commands) DefaultTick() tea.Cmd {
	return defaultTickCmd()
}

// LoadStatus returns a command that snapshots the runtime status.
func (c *Commands) LoadStatus() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadStatusCmd(c.manager)
}

// LoadWakeHistory returns a command that reads the recent wake events.
func (c *Commands) LoadWakeHistory() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadWakeHistoryCmd(c.manager)
}

// StartMonitoring returns a command that starts the engine.
func (c *Commands) StartMonitoring() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return startMonitoringCmd(c.ctx, c.manager)
}

// StopMonitoring returns a command that stops the engine.
func (c *Commands) StopMonitoring() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return stopMonitoringCmd(c.manager)
}

// ReloadSettings returns a command that re-reads the settings file.
func (c *Commands) ReloadSettings() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return reloadSettingsCmd(c.manager)
}

// WarmupAll returns a command that warms up every active slot.
func (c *Commands) WarmupAll() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return warmupAllCmd(c.ctx, c.manager)
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifySuccessCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// ClearNotification returns a command that removes a notification after a delay.
func (c *Commands) ClearNotification(id string, delay time.Duration) tea.Cmd {
	return clearNotificationCmd(id, delay)
}
