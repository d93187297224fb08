// Package tray renders the one-line-per-slot status summary shown by the
// dashboard header and the status command.
package tray

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/j-veylop/glm-tray/internal/models"
)

// IdleLine is shown when no slot is enabled.
const IdleLine = "Quota monitor idle"

// Summary is the rendered tray state.
type Summary struct {
	Lines []string
	// Alert is set when a slot stopped after repeated failures, or when nothing is
	// enabled and monitoring is off.
	Alert bool
	// AlertReason is empty unless Alert is set.
	AlertReason string
}

// Tooltip joins the summary lines.
func (s Summary) Tooltip() string {
	return strings.Join(s.Lines, "\n")
}

// Summarize builds the summary of a runtime status snapshot.
func Summarize(rs models.RuntimeStatus) Summary {
	enabled := lo.Filter(rs.Slots[:], func(s models.SlotRuntimeStatus, _ int) bool {
		return s.Enabled
	})

	lines := lo.Map(enabled, func(s models.SlotRuntimeStatus, _ int) string {
		return SlotLine(s)
	})
	if len(lines) == 0 {
		lines = []string{IdleLine}
	}

	summary := Summary{Lines: lines}

	disabled := lo.SomeBy(enabled, func(s models.SlotRuntimeStatus) bool {
		return s.AutoDisabled || s.WakeAutoDisabled
	})
	switch {
	case disabled:
		summary.Alert = true
		summary.AlertReason = "slot auto-disabled"
	case len(enabled) == 0 && !rs.Monitoring:
		summary.Alert = true
		summary.AlertReason = "no enabled keys"
	}

	return summary
}

// SlotLine renders one enabled slot.
func SlotLine(s models.SlotRuntimeStatus) string {
	label := s.Label()

	if s.AutoDisabled {
		return label + ": DISABLED (errors)"
	}
	if s.WakeAutoDisabled {
		return fmt.Sprintf("%s: WAKE PAUSED (wake errors x%d)", label, s.WakeConsecutiveErrors)
	}

	line := fmt.Sprintf("%s: %s / %s", label, ResetText(s), PercentText(s))
	if s.QuotaConsecutiveErrors > 0 {
		line += fmt.Sprintf(" (err x%d)", s.QuotaConsecutiveErrors)
	}
	if s.WakePending {
		line += " (wake pending)"
	}
	return line
}

// ResetText returns the reset clock, a placeholder while the timer runs without one,
// or "idle".
func ResetText(s models.SlotRuntimeStatus) string {
	switch {
	case s.NextResetHMS != "":
		return s.NextResetHMS
	case s.TimerActive:
		return "--:--:--"
	default:
		return "idle"
	}
}

// PercentText returns the usage percentage or "n/a" before the first reading.
func PercentText(s models.SlotRuntimeStatus) string {
	if s.Percentage == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", *s.Percentage)
}
