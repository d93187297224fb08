package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/j-veylop/glm-tray/internal/models"
)

// runPoller fetches quota on the slot's interval, backing off on failures.
func (r *slotRunner) runPoller(ctx context.Context) error {
	r.log.Info("quota poller started")
	defer r.log.Info("quota poller stopped")

	for {
		_, cfgChanged := r.config.Load()
		_, policyChanged := r.policy.Load()

		delay, ok := r.pollStep(ctx)
		if !ok {
			return nil
		}
		if !r.sleep(ctx, delay, cfgChanged, policyChanged, r.pollNow) {
			return nil
		}
	}
}

// pollStep performs one fetch and returns the delay before the next one.
// It returns false once the poller must exit.
func (r *slotRunner) pollStep(ctx context.Context) (time.Duration, bool) {
	if r.board.Slot(r.idx).AutoDisabled {
		return 0, false
	}

	cfg, _ := r.config.Load()
	policy, _ := r.policy.Load()

	snap, err := r.client.FetchQuota(ctx, cfg)
	if ctx.Err() != nil {
		return 0, false
	}
	now := r.now()

	if err != nil {
		return r.pollFailed(cfg, policy, err, now)
	}

	r.applySnapshot(cfg, snap)

	var result ConfirmResult
	var st models.SlotRuntimeStatus
	r.board.Update(r.idx, func(s *models.SlotRuntimeStatus) {
		s.QuotaConsecutiveErrors = 0
		s.AutoDisabled = false
		if s.WakeConsecutiveErrors == 0 {
			s.LastError = ""
		}
		result = ConfirmWake(s, snap.NextResetEpochMs, policy.MaxConsecutiveErrors)
		st = s.Clone()
	})
	r.handleConfirm(result, st, policy)
	r.statusChanged()

	if r.inRetryWindow(st, now) {
		return r.minute, true
	}
	return time.Duration(max(cfg.PollIntervalMinutes, 1)) * r.minute, true
}

func (r *slotRunner) handleConfirm(result ConfirmResult, st models.SlotRuntimeStatus, policy models.Policy) {
	attempt := r.currentAttempt()
	slot := r.idx + 1

	switch result {
	case ConfirmOK:
		r.sched.Update(func(s *Schedule) {
			s.WakeRetryWindowDeadline = time.Time{}
			s.WakeTimeoutRetryFired = false
		})
		r.log.Info("wake confirmed, quota window advanced", "attempt", attempt)
		r.emit(Event{Type: EventWakeConfirmed, Slot: slot, AttemptID: attempt})

	case ConfirmFailed:
		r.log.Warn("wake not confirmed", "attempt", attempt, "reason", st.LastError,
			"wake_errors", st.WakeConsecutiveErrors)
		r.emit(Event{Type: EventWakeUnconfirmed, Slot: slot, AttemptID: attempt, Reason: st.LastError})

	case ConfirmExhausted:
		r.sched.Update(func(s *Schedule) { s.WakeRetryWindowDeadline = time.Time{} })
		r.log.Error("wake paused, confirmation kept failing", "max_errors", policy.MaxConsecutiveErrors)
		r.emit(Event{Type: EventWakeUnconfirmed, Slot: slot, AttemptID: attempt, Reason: st.LastError})
		r.emit(Event{
			Type:      EventWakeAutoDisabled,
			Slot:      slot,
			AttemptID: attempt,
			Error:     errors.New(st.LastError),
		})

	case ConfirmNone:
	}
}

func (r *slotRunner) pollFailed(cfg models.SlotConfig, policy models.Policy, err error, now time.Time) (time.Duration, bool) {
	st := r.board.Slot(r.idx)

	// A failed reading inside the confirmation window is retried soon without counting.
	if r.inRetryWindow(st, now) {
		r.board.Update(r.idx, func(s *models.SlotRuntimeStatus) { s.LastError = err.Error() })
		r.log.Warn("quota fetch failed while wake pending, retrying", "error", err)
		r.statusChanged()
		return r.minute, true
	}

	var errCount int
	disabled := false
	r.board.Update(r.idx, func(s *models.SlotRuntimeStatus) {
		s.Name = cfg.Name
		s.Enabled = true
		s.QuotaConsecutiveErrors++
		s.LastError = err.Error()
		errCount = s.QuotaConsecutiveErrors
		if errCount >= max(policy.MaxConsecutiveErrors, 1) {
			s.AutoDisabled = true
			disabled = true
		}
	})

	if disabled {
		r.log.Error("quota polling disabled after repeated failures", "errors", errCount, "error", err)
		r.emit(Event{Type: EventSlotAutoDisabled, Slot: r.idx + 1, Error: err})
		r.statusChanged()
		return 0, false
	}

	backoff := BackoffMinutes(cfg.PollIntervalMinutes, errCount, policy.QuotaPollBackoffCapMinutes)
	r.log.Warn("quota fetch failed", "errors", errCount, "retry_in_min", backoff, "error", err)
	r.statusChanged()
	return time.Duration(backoff) * r.minute, true
}
