package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/glm-tray/internal/models"
)

// runWake evaluates wake triggers once per tick until the slot stops or wake is paused.
func (r *slotRunner) runWake(ctx context.Context) error {
	r.log.Info("wake scheduler started")
	defer r.log.Info("wake scheduler stopped")

	for {
		_, cfgChanged := r.config.Load()
		_, policyChanged := r.policy.Load()

		if !r.wakeStep(ctx) {
			return nil
		}
		if !r.sleep(ctx, r.wakeTick, cfgChanged, policyChanged, nil) {
			return nil
		}
	}
}

// wakeStep runs one evaluation. It returns false once the wake goroutine must exit.
func (r *slotRunner) wakeStep(ctx context.Context) bool {
	st := r.board.Slot(r.idx)
	if st.AutoDisabled || st.WakeAutoDisabled {
		return false
	}

	cfg, _ := r.config.Load()
	policy, _ := r.policy.Load()
	now := r.now()
	sched := r.sched.Load()

	reason, triggered := ShouldFireWake(cfg, sched, now)
	forced := false

	if st.WakePending {
		windowElapsed := !sched.WakeRetryWindowDeadline.IsZero() && !now.Before(sched.WakeRetryWindowDeadline)
		switch {
		case windowElapsed && !sched.WakeTimeoutRetryFired:
			forced = true
			reason = fmt.Sprintf("no confirmation within %d min", policy.WakeQuotaRetryWindowMinutes)
		case triggered && sched.WakeTimeoutRetryFired && shouldRetryAfterErrors(st):
			r.log.Info("retrying unconfirmed wake", "reason", reason, "wake_errors", st.WakeConsecutiveErrors)
		case triggered:
			r.sched.Update(func(s *Schedule) { UpdateMarkers(cfg, s, now) })
			r.log.Debug("wake already pending, trigger suppressed", "reason", reason)
			return true
		default:
			return true
		}
	} else if !triggered {
		return true
	}

	if !forced && !r.isWakeRequired(ctx, cfg, now) {
		r.sched.Update(func(s *Schedule) { UpdateMarkers(cfg, s, now) })
		r.log.Info("wake skipped, quota window still active", "reason", reason)
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	return r.dispatchWake(ctx, cfg, policy, reason, triggered, forced, now)
}

// shouldRetryAfterErrors lets ordinary triggers re-attempt a pending wake once
// the forced retry is spent and failures are being counted.
func shouldRetryAfterErrors(st models.SlotRuntimeStatus) bool {
	return st.WakeConsecutiveErrors > 0 && !st.WakeAutoDisabled
}

// isWakeRequired reports whether the slot needs a wake at now. A cached reset time in
// the future answers without network access; a failed live check answers true.
func (r *slotRunner) isWakeRequired(ctx context.Context, cfg models.SlotConfig, now time.Time) bool {
	nowMs := now.UnixMilli()
	st := r.board.Slot(r.idx)
	if st.LastUpdatedEpochMs != nil && *st.LastUpdatedEpochMs > nowMs {
		return false
	}

	snap, err := r.client.FetchQuota(ctx, cfg)
	if err != nil {
		r.log.Warn("quota check before wake failed, waking anyway", "error", err)
		return true
	}
	r.applySnapshot(cfg, snap)

	return snap.NextResetEpochMs == nil || *snap.NextResetEpochMs <= nowMs
}

func (r *slotRunner) dispatchWake(ctx context.Context, cfg models.SlotConfig, policy models.Policy,
	reason string, triggered, forced bool, now time.Time,
) bool {
	attempt := uuid.NewString()
	r.log.Info("sending wake", "reason", reason, "forced", forced, "attempt", attempt)

	err := r.client.SendWake(ctx, cfg)
	if ctx.Err() != nil {
		return false
	}

	if forced {
		r.sched.Update(func(s *Schedule) { s.WakeTimeoutRetryFired = true })
	}

	if err != nil {
		return r.wakeFailed(cfg, policy, attempt, reason, err)
	}

	wasPending := false
	var captured *int64
	r.sched.Update(func(s *Schedule) {
		if triggered {
			UpdateMarkers(cfg, s, now)
		}
		s.WakeRetryWindowDeadline = now.Add(time.Duration(max(policy.WakeQuotaRetryWindowMinutes, 1)) * time.Minute)
		if s.NextResetEpochMs != nil {
			captured = models.Int64Ptr(*s.NextResetEpochMs)
		}
		r.attempt = attempt
	})

	r.board.Update(r.idx, func(st *models.SlotRuntimeStatus) {
		wasPending = st.WakePending
		st.WakePending = true
		st.WakeResetEpochMs = captured
	})
	if !wasPending && !forced {
		r.sched.Update(func(s *Schedule) { s.WakeTimeoutRetryFired = false })
	}

	r.log.Info("wake sent, awaiting confirmation", "attempt", attempt)
	r.emit(Event{Type: EventWakeSent, Slot: r.idx + 1, AttemptID: attempt, Reason: reason})
	r.statusChanged()
	r.requestPoll()
	return true
}

func (r *slotRunner) wakeFailed(cfg models.SlotConfig, policy models.Policy, attempt, reason string, err error) bool {
	disabled := false
	r.board.Update(r.idx, func(st *models.SlotRuntimeStatus) {
		st.Name = cfg.Name
		st.Enabled = true
		st.WakeConsecutiveErrors++
		st.LastError = err.Error()
		if st.WakeConsecutiveErrors >= max(policy.MaxConsecutiveErrors, 1) {
			st.WakeAutoDisabled = true
			st.WakePending = false
			st.WakeResetEpochMs = nil
			disabled = true
		}
	})

	r.log.Warn("wake failed", "attempt", attempt, "error", err)
	r.emit(Event{Type: EventWakeFailed, Slot: r.idx + 1, AttemptID: attempt, Reason: reason, Error: err})

	if disabled {
		r.sched.Update(func(s *Schedule) { s.WakeRetryWindowDeadline = time.Time{} })
		r.log.Error("wake paused after repeated failures", "max_errors", policy.MaxConsecutiveErrors)
		r.emit(Event{Type: EventWakeAutoDisabled, Slot: r.idx + 1, AttemptID: attempt, Error: err})
		r.statusChanged()
		return false
	}

	r.statusChanged()
	return true
}
