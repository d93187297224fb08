package models

import (
	"fmt"
	"time"
)

// QuotaSnapshot is the normalized result of one quota fetch.
type QuotaSnapshot struct {
	NextResetEpochMs *int64
	NextResetHMS     string
	Percentage       int
	TimerActive      bool
}

// SlotRuntimeStatus is the observable state of one slot.
type SlotRuntimeStatus struct {
	Percentage *int `json:"percentage,omitempty"`
	// LastUpdatedEpochMs holds the reset epoch reported by the last successful fetch.
	LastUpdatedEpochMs     *int64 `json:"last_updated_epoch_ms,omitempty"`
	WakeResetEpochMs       *int64 `json:"wake_reset_epoch_ms,omitempty"`
	Name                   string `json:"name"`
	NextResetHMS           string `json:"next_reset_hms,omitempty"`
	LastError              string `json:"last_error,omitempty"`
	Slot                   int    `json:"slot"`
	QuotaConsecutiveErrors int    `json:"quota_consecutive_errors"`
	WakeConsecutiveErrors  int    `json:"wake_consecutive_errors"`
	Enabled                bool   `json:"enabled"`
	TimerActive            bool   `json:"timer_active"`
	WakePending            bool   `json:"wake_pending"`
	AutoDisabled           bool   `json:"auto_disabled"`
	WakeAutoDisabled       bool   `json:"wake_auto_disabled"`
}

// Label returns the display label of the slot.
func (s SlotRuntimeStatus) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return SlotLabel(s.Slot)
}

// Clone returns a copy that does not share pointer fields.
func (s SlotRuntimeStatus) Clone() SlotRuntimeStatus {
	clone := s
	clone.Percentage = cloneInt(s.Percentage)
	clone.LastUpdatedEpochMs = cloneInt64(s.LastUpdatedEpochMs)
	clone.WakeResetEpochMs = cloneInt64(s.WakeResetEpochMs)
	return clone
}

// RuntimeStatus is the snapshot consumed by the dashboard.
type RuntimeStatus struct {
	Slots      [MaxSlots]SlotRuntimeStatus `json:"slots"`
	Monitoring bool                        `json:"monitoring"`
}

// NewRuntimeStatus returns an idle status with slot numbers assigned.
func NewRuntimeStatus() RuntimeStatus {
	var rs RuntimeStatus
	for i := range rs.Slots {
		rs.Slots[i].Slot = i + 1
	}
	return rs
}

// Clone returns a deep copy of the status.
func (r RuntimeStatus) Clone() RuntimeStatus {
	clone := r
	for i := range r.Slots {
		clone.Slots[i] = r.Slots[i].Clone()
	}
	return clone
}

// SlotLabel returns the fallback label of an unnamed slot.
func SlotLabel(slot int) string {
	return fmt.Sprintf("k%d", slot)
}

// FormatResetHMS renders a reset epoch as local wall-clock time.
func FormatResetHMS(epochMs int64) string {
	if epochMs <= 0 {
		return ""
	}
	return time.UnixMilli(epochMs).Local().Format("15:04:05")
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
