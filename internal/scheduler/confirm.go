package scheduler

import "github.com/j-veylop/glm-tray/internal/models"

// ConfirmResult is the outcome of reconciling a pending wake with a fresh quota reading.
type ConfirmResult int

const (
	// ConfirmNone means no wake was pending.
	ConfirmNone ConfirmResult = iota
	// ConfirmOK means the quota window advanced after the wake.
	ConfirmOK
	// ConfirmFailed means the reading does not prove the wake took effect.
	ConfirmFailed
	// ConfirmExhausted means the failure reached the error ceiling and wake is paused.
	ConfirmExhausted
)

// String returns a short name for logs.
func (r ConfirmResult) String() string {
	switch r {
	case ConfirmOK:
		return "confirmed"
	case ConfirmFailed:
		return "unconfirmed"
	case ConfirmExhausted:
		return "exhausted"
	default:
		return "none"
	}
}

// ConfirmWake resolves a pending wake against the reset time observed by a successful fetch.
// It mutates st and must be called with the status lock held.
func ConfirmWake(st *models.SlotRuntimeStatus, observed *int64, maxErrors int) ConfirmResult {
	if !st.WakePending {
		return ConfirmNone
	}

	previous := st.WakeResetEpochMs
	switch {
	case observed == nil:
		st.LastError = "wake unconfirmed: quota reports no reset time"
	case previous == nil || *observed > *previous:
		st.WakePending = false
		st.WakeResetEpochMs = nil
		st.WakeConsecutiveErrors = 0
		st.WakeAutoDisabled = false
		return ConfirmOK
	default:
		st.LastError = "wake unconfirmed: reset time did not advance"
	}

	st.WakeConsecutiveErrors++
	if st.WakeConsecutiveErrors >= max(maxErrors, 1) {
		st.WakeAutoDisabled = true
		st.WakePending = false
		st.WakeResetEpochMs = nil
		return ConfirmExhausted
	}
	return ConfirmFailed
}
