package app

import (
	"time"

	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/services"
	"github.com/j-veylop/glm-tray/internal/tray"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// StatusLoadedMsg carries a fresh runtime status and the settings it was built from.
type StatusLoadedMsg struct {
	Summary  tray.Summary
	Settings models.AppConfig
	Status   models.RuntimeStatus
}

// WakeHistoryLoadedMsg carries the recent wake events.
type WakeHistoryLoadedMsg struct {
	Error  error
	Events []models.WakeEvent
}

// MonitoringChangedMsg is returned after the engine was started or stopped.
type MonitoringChangedMsg struct {
	Running bool
}

// SettingsReloadedMsg is returned after settings were re-read from disk.
type SettingsReloadedMsg struct {
	Error    error
	Settings models.AppConfig
}

// WarmupResultMsg is returned after every active slot was warmed up.
type WarmupResultMsg struct {
	Succeeded int
	Failed    int
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // "all", "status", "history"
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Duration time.Duration
	Type     NotificationType
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// SelectedSlotChangedMsg signals that the selected slot in the UI has changed.
type SelectedSlotChangedMsg struct {
	Index int
}
