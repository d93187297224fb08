package app

import (
	"testing"
	"time"

	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/tray"
)

func TestNewState(t *testing.T) {
	s := NewState()
	if s == nil {
		t.Fatal("NewState returned nil")
	}
	if !s.Loading.Initial {
		t.Error("Initial loading should be true")
	}
	if len(s.GetSettings().Slots) != models.MaxSlots {
		t.Error("settings should hold every slot")
	}
	if s.GetStatus().Slots[4].Slot != 5 {
		t.Error("status slots should be numbered")
	}
}

func TestState_SetLoading(t *testing.T) {
	s := NewState()

	s.SetLoading("warmup", true)
	if !s.Loading.Warmup {
		t.Error("Warmup loading should be true")
	}

	s.SetLoading("warmup", false)
	if !s.AnyLoading() {
		t.Error("AnyLoading should be true (Initial is true)")
	}

	s.SetLoading("initial", false)
	if s.AnyLoading() {
		t.Error("AnyLoading should be false")
	}
	if resources := s.GetLoadingResources(); len(resources) != 0 {
		t.Errorf("GetLoadingResources should be empty, got %v", resources)
	}

	s.SetLoading("settings", true)
	resources := s.GetLoadingResources()
	if len(resources) != 1 || resources[0] != "settings" {
		t.Errorf("GetLoadingResources should contain settings, got %v", resources)
	}
}

func TestState_Status(t *testing.T) {
	s := NewState()
	if s.TimeSinceUpdate() != 0 {
		t.Error("TimeSinceUpdate should be 0 before the first status")
	}

	status := models.NewRuntimeStatus()
	status.Monitoring = true
	status.Slots[0].Percentage = models.IntPtr(10)
	s.SetStatus(status, tray.Summarize(status))

	*status.Slots[0].Percentage = 99
	got := s.GetStatus()
	if *got.Slots[0].Percentage != 10 {
		t.Error("stored status must not alias the caller's pointers")
	}
	if !s.IsMonitoring() {
		t.Error("IsMonitoring should follow the status")
	}
	if len(s.GetSummary().Lines) == 0 {
		t.Error("summary should be stored")
	}
}

func TestState_SlotConfig(t *testing.T) {
	s := NewState()
	settings := models.DefaultAppConfig()
	settings.Slots[2].Name = "ci"
	s.SetSettings(settings)

	cfg, ok := s.SlotConfig(3)
	if !ok || cfg.Label() != "ci" {
		t.Errorf("SlotConfig(3) = %+v, %v", cfg, ok)
	}
	if _, ok := s.SlotConfig(9); ok {
		t.Error("unknown slot should not be found")
	}
}

func TestState_WakeEvents(t *testing.T) {
	s := NewState()
	s.SetWakeEvents([]models.WakeEvent{{ID: 1}})
	s.PrependWakeEvent(models.WakeEvent{ID: 2})

	events := s.GetWakeEvents()
	if len(events) != 2 || events[0].ID != 2 {
		t.Errorf("newest event should come first, got %+v", events)
	}

	for i := range maxWakeEvents + 5 {
		s.PrependWakeEvent(models.WakeEvent{ID: int64(i)})
	}
	if got := len(s.GetWakeEvents()); got != maxWakeEvents {
		t.Errorf("history length = %d, want %d", got, maxWakeEvents)
	}
}

func TestState_SelectedSlot(t *testing.T) {
	s := NewState()

	s.SetSelectedSlot(3)
	if s.GetSelectedSlot() != 3 {
		t.Errorf("GetSelectedSlot = %d, want 3", s.GetSelectedSlot())
	}

	s.SetSelectedSlot(42)
	if s.GetSelectedSlot() != models.MaxSlots-1 {
		t.Errorf("selection should clamp to the last slot, got %d", s.GetSelectedSlot())
	}

	s.SetSelectedSlot(-1)
	if s.GetSelectedSlot() != 0 {
		t.Errorf("selection should clamp to the first slot, got %d", s.GetSelectedSlot())
	}
}

func TestState_Notifications(t *testing.T) {
	s := NewState()

	id := s.AddNotification(NotificationInfo, "test", time.Minute)
	if id == "" {
		t.Error("AddNotification returned empty ID")
	}

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Fatalf("GetNotifications len = %d, want 1", len(notifs))
	}
	if notifs[0].Message != "test" {
		t.Errorf("Notification message = %s, want test", notifs[0].Message)
	}

	s.RemoveNotification(id)
	if len(s.GetNotifications()) != 0 {
		t.Error("Notification should be removed")
	}

	for range maxNotifications + 3 {
		s.AddNotification(NotificationInfo, "spam", 0)
	}
	if got := len(s.GetNotifications()); got != maxNotifications {
		t.Errorf("notifications = %d, want %d", got, maxNotifications)
	}
}

func TestState_ClearExpiredNotifications(t *testing.T) {
	s := NewState()

	s.notifications = append(s.notifications,
		Notification{ID: "expired", CreatedAt: time.Now().Add(-2 * time.Minute), Duration: time.Minute},
		Notification{ID: "active", CreatedAt: time.Now(), Duration: time.Minute},
	)

	s.ClearExpiredNotifications()

	notifs := s.GetNotifications()
	if len(notifs) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifs))
	}
	if notifs[0].ID != "active" {
		t.Errorf("Expected active notification, got %s", notifs[0].ID)
	}
}

func TestState_LoadingNotification(t *testing.T) {
	s := NewState()

	s.SetLoadingNotification("loading...")
	notifs := s.GetNotifications()
	if len(notifs) != 1 || notifs[0].ID != LoadingNotificationID {
		t.Fatalf("Expected one loading notification, got %v", notifs)
	}

	s.SetLoadingNotification("still loading...")
	notifs = s.GetNotifications()
	if len(notifs) != 1 {
		t.Errorf("Expected 1 notification after update")
	}
	if notifs[0].Message != "still loading..." {
		t.Errorf("Expected message still loading..., got %s", notifs[0].Message)
	}

	s.ClearLoadingNotification()
	if len(s.GetNotifications()) != 0 {
		t.Error("Loading notification should be cleared")
	}
}

func TestNotificationType_String(t *testing.T) {
	tests := []struct {
		t    NotificationType
		want string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
		{NotificationLoading, "loading"},
		{NotificationType(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
