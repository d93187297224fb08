package models

import "time"

// WakeEventKind classifies a wake history entry.
type WakeEventKind string

// Wake event kinds recorded in the history database.
const (
	WakeEventSent         WakeEventKind = "sent"
	WakeEventFailed       WakeEventKind = "failed"
	WakeEventConfirmed    WakeEventKind = "confirmed"
	WakeEventUnconfirmed  WakeEventKind = "unconfirmed"
	WakeEventAutoDisabled WakeEventKind = "wake_auto_disabled"
	WakeEventSlotDisabled WakeEventKind = "slot_auto_disabled"
	WakeEventWarmup       WakeEventKind = "warmup"
	WakeEventWarmupFailed WakeEventKind = "warmup_failed"
)

// QuotaSample is a point-in-time quota reading (DB model).
type QuotaSample struct {
	Timestamp        time.Time
	NextResetEpochMs *int64
	ID               int64
	Slot             int
	Percentage       int
	TimerActive      bool
}

// WakeEvent is one entry of the wake history (DB model).
type WakeEvent struct {
	Timestamp time.Time
	AttemptID string
	Kind      WakeEventKind
	Reason    string
	Error     string
	ID        int64
	Slot      int
}

// HourlyUsage is the average quota usage of a slot within one hour bucket.
type HourlyUsage struct {
	Hour          time.Time
	AvgPercentage float64
	MaxPercentage int
	Samples       int
}
