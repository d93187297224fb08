package scheduler

import "github.com/j-veylop/glm-tray/internal/models"

// EventType defines the type of scheduler event.
type EventType int

const (
	// EventQuotaUpdated is emitted once per successful quota fetch.
	EventQuotaUpdated EventType = iota
	// EventStatusChanged carries a fresh status snapshot for the tray.
	EventStatusChanged
	// EventWakeSent indicates a wake request was accepted by the server.
	EventWakeSent
	// EventWakeFailed indicates a wake request failed to send.
	EventWakeFailed
	// EventWakeConfirmed indicates the quota window advanced after a wake.
	EventWakeConfirmed
	// EventWakeUnconfirmed indicates a quota reading did not confirm the pending wake.
	EventWakeUnconfirmed
	// EventWakeAutoDisabled indicates wake dispatch stopped after repeated failures.
	EventWakeAutoDisabled
	// EventSlotAutoDisabled indicates quota polling stopped after repeated failures.
	EventSlotAutoDisabled
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventQuotaUpdated:
		return "quota_updated"
	case EventStatusChanged:
		return "status_changed"
	case EventWakeSent:
		return "wake_sent"
	case EventWakeFailed:
		return "wake_failed"
	case EventWakeConfirmed:
		return "wake_confirmed"
	case EventWakeUnconfirmed:
		return "wake_unconfirmed"
	case EventWakeAutoDisabled:
		return "wake_auto_disabled"
	case EventSlotAutoDisabled:
		return "slot_auto_disabled"
	default:
		return "unknown"
	}
}

// Event is emitted by the scheduler goroutines.
type Event struct {
	Error    error
	Snapshot *models.QuotaSnapshot
	Status   *models.RuntimeStatus
	// AttemptID links wake events belonging to the same request.
	AttemptID string
	Reason    string
	Slot      int
	Type      EventType
}
