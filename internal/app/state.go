// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sync"
	"time"

	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/tray"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
	maxWakeEvents    = 200
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Duration  time.Duration
	Type      NotificationType
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial  bool
	Status   bool
	History  bool
	Warmup   bool
	Settings bool
}

// State is the data shared between the root model and the tabs.
type State struct {
	LastUpdated   time.Time
	Settings      models.AppConfig
	Summary       tray.Summary
	WakeEvents    []models.WakeEvent
	notifications []Notification
	Status        models.RuntimeStatus
	SelectedSlot  int
	Loading       LoadingState

	notificationSeq int
	mu              sync.RWMutex
}

// NewState creates the initial application state.
func NewState() *State {
	return &State{
		Status:        models.NewRuntimeStatus(),
		Settings:      models.DefaultAppConfig(),
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "status":
		s.Loading.Status = loading
	case "history":
		s.Loading.History = loading
	case "warmup":
		s.Loading.Warmup = loading
	case "settings":
		s.Loading.Settings = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial ||
		s.Loading.Status ||
		s.Loading.History ||
		s.Loading.Warmup ||
		s.Loading.Settings
}

// IsInitialLoading reports whether the first status load is still pending.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// GetLoadingResources returns a list of currently loading resources.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	if s.Loading.Initial {
		resources = append(resources, "initial")
	}
	if s.Loading.Status {
		resources = append(resources, "status")
	}
	if s.Loading.History {
		resources = append(resources, "history")
	}
	if s.Loading.Warmup {
		resources = append(resources, "warmup")
	}
	if s.Loading.Settings {
		resources = append(resources, "settings")
	}
	return resources
}

// SetStatus stores the latest runtime status and its tray summary.
func (s *State) SetStatus(status models.RuntimeStatus, summary tray.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = status.Clone()
	s.Summary = summary
	s.LastUpdated = time.Now()
}

// GetStatus returns a copy of the runtime status.
func (s *State) GetStatus() models.RuntimeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status.Clone()
}

// GetSummary returns the tray summary of the last status.
func (s *State) GetSummary() tray.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Summary
}

// IsMonitoring reports whether the last status had the engine running.
func (s *State) IsMonitoring() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status.Monitoring
}

// SetSettings stores the current settings.
func (s *State) SetSettings(settings models.AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Settings = settings.Clone()
}

// GetSettings returns a copy of the current settings.
func (s *State) GetSettings() models.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Settings.Clone()
}

// SlotConfig returns the configuration of a 1-based slot number.
func (s *State) SlotConfig(slot int) (models.SlotConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cfg := range s.Settings.Slots {
		if cfg.Slot == slot {
			return cfg.Clone(), true
		}
	}
	return models.SlotConfig{}, false
}

// SetWakeEvents replaces the wake history, newest first.
func (s *State) SetWakeEvents(events []models.WakeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WakeEvents = append([]models.WakeEvent(nil), events...)
}

// PrependWakeEvent records a live wake event at the head of the history.
func (s *State) PrependWakeEvent(event models.WakeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.WakeEvents = append([]models.WakeEvent{event}, s.WakeEvents...)
	if len(s.WakeEvents) > maxWakeEvents {
		s.WakeEvents = s.WakeEvents[:maxWakeEvents]
	}
}

// GetWakeEvents returns a copy of the wake history.
func (s *State) GetWakeEvents() []models.WakeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.WakeEvent(nil), s.WakeEvents...)
}

// GetSelectedSlot returns the selected slot index (0-based).
func (s *State) GetSelectedSlot() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedSlot
}

// SetSelectedSlot updates the selected slot index, clamped to the slot range.
func (s *State) SetSelectedSlot(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedSlot = min(max(idx, 0), models.MaxSlots-1)
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(all []Notification) []Notification {
	active := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// TimeSinceUpdate returns the duration since the last status update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
