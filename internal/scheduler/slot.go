package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
)

// slotRunner owns the wake and poll goroutines of one slot.
type slotRunner struct {
	client  Client
	board   *StatusBoard
	config  *watch[models.SlotConfig]
	policy  *watch[models.Policy]
	sched   *scheduleState
	pollNow chan struct{}
	emit    func(Event)
	now     func() time.Time
	log     *slog.Logger
	// attempt is the id of the last wake sent; guarded by sched.mu.
	attempt  string
	idx      int
	wakeTick time.Duration
	minute   time.Duration
}

func newSlotRunner(idx int, cfg models.SlotConfig, policy *watch[models.Policy], board *StatusBoard,
	client Client, opts Options, emit func(Event),
) *slotRunner {
	return &slotRunner{
		idx:      idx,
		client:   client,
		board:    board,
		config:   newWatch(cfg.Clone()),
		policy:   policy,
		sched:    &scheduleState{s: NewSchedule(opts.Now())},
		pollNow:  make(chan struct{}, 1),
		emit:     emit,
		now:      opts.Now,
		log:      logger.With("slot", idx+1),
		wakeTick: opts.WakeTick,
		minute:   opts.Minute,
	}
}

// requestPoll asks the poller to fetch immediately. Repeated requests coalesce.
func (r *slotRunner) requestPoll() {
	select {
	case r.pollNow <- struct{}{}:
	default:
	}
}

func (r *slotRunner) statusChanged() {
	snapshot := r.board.Snapshot()
	r.emit(Event{Type: EventStatusChanged, Slot: r.idx + 1, Status: &snapshot})
}

// applySnapshot records a successful quota reading in the status board and schedule.
func (r *slotRunner) applySnapshot(cfg models.SlotConfig, snap *models.QuotaSnapshot) {
	r.sched.Update(func(s *Schedule) {
		s.NextResetEpochMs = nil
		if snap.NextResetEpochMs != nil {
			s.NextResetEpochMs = models.Int64Ptr(*snap.NextResetEpochMs)
		}
	})

	r.board.Update(r.idx, func(st *models.SlotRuntimeStatus) {
		st.Name = cfg.Name
		st.Enabled = true
		st.TimerActive = snap.TimerActive
		st.Percentage = models.IntPtr(snap.Percentage)
		st.NextResetHMS = snap.NextResetHMS
		st.LastUpdatedEpochMs = nil
		if snap.NextResetEpochMs != nil {
			st.LastUpdatedEpochMs = models.Int64Ptr(*snap.NextResetEpochMs)
		}
	})

	copied := *snap
	r.emit(Event{Type: EventQuotaUpdated, Slot: r.idx + 1, Snapshot: &copied})
}

// inRetryWindow reports whether a wake is pending and its confirmation window is open.
func (r *slotRunner) inRetryWindow(st models.SlotRuntimeStatus, now time.Time) bool {
	if !st.WakePending {
		return false
	}
	deadline := r.sched.Load().WakeRetryWindowDeadline
	return !deadline.IsZero() && now.Before(deadline)
}

// sleep waits for d, a config or policy change, or a poll request when pollNow is set.
// It returns false when the slot is stopping.
func (r *slotRunner) sleep(ctx context.Context, d time.Duration, cfgChanged, policyChanged, pollNow <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-cfgChanged:
	case <-policyChanged:
	case <-pollNow:
	}
	return true
}

func (r *slotRunner) currentAttempt() string {
	r.sched.mu.RLock()
	defer r.sched.mu.RUnlock()
	return r.attempt
}
