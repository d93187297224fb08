package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/glm-tray/internal/models"
)

func afterResetSlot() models.SlotConfig {
	cfg := activeSlot(1)
	cfg.ScheduleAfterResetEnabled = true
	cfg.ScheduleAfterResetMinutes = 1
	return cfg
}

// Scenario A: after-reset mode with a reset two seconds in the past. The
// offset is in minutes, so with schedule_after_reset_minutes=1 the wake fires
// one minute after the reset rather than on the first evaluation.
func TestScenarioA_AfterResetFiresOnceAndGoesPending(t *testing.T) {
	clock := newFakeClock()
	reset := clock.Now().Add(-2 * time.Second)
	client := &fakeClient{fetch: func(int) (*models.QuotaSnapshot, error) {
		return snapshotAt(reset), nil
	}}
	r := newTestRunner(t, client, afterResetSlot(), models.DefaultPolicy(), clock)
	r.sched.Update(func(s *Schedule) { s.NextResetEpochMs = models.Int64Ptr(reset.UnixMilli()) })

	require.True(t, r.wakeStep(t.Context()))
	_, wakes := client.calls()
	assert.Zero(t, wakes, "offset of one minute not reached yet")

	clock.Advance(time.Minute)
	require.True(t, r.wakeStep(t.Context()))

	_, wakes = client.calls()
	assert.Equal(t, 1, wakes)

	st := r.board.Slot(0)
	assert.True(t, st.WakePending)
	require.NotNil(t, st.WakeResetEpochMs)
	assert.Equal(t, reset.UnixMilli(), *st.WakeResetEpochMs)

	sched := r.sched.Load()
	require.NotNil(t, sched.LastResetMarker)
	assert.Equal(t, reset.UnixMilli(), *sched.LastResetMarker)
	assert.False(t, sched.WakeTimeoutRetryFired)
	assert.Equal(t, clock.Now().Add(15*time.Minute), sched.WakeRetryWindowDeadline)

	clock.Advance(time.Minute)
	require.True(t, r.wakeStep(t.Context()))
	_, wakes = client.calls()
	assert.Equal(t, 1, wakes, "trigger must not re-fire for the same reset")

	assert.Contains(t, r.eventTypes(), EventWakeSent)
	select {
	case <-r.pollNow:
	default:
		t.Fatal("expected a poll request after the wake")
	}
}

func TestWakeNotRequiredWhenCachedResetInFuture(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{}
	cfg := activeSlot(1)
	cfg.ScheduleIntervalEnabled = true
	cfg.ScheduleIntervalMinutes = 1

	r := newTestRunner(t, client, cfg, models.DefaultPolicy(), clock)
	r.board.Update(0, func(s *models.SlotRuntimeStatus) {
		s.LastUpdatedEpochMs = models.Int64Ptr(clock.Now().Add(time.Hour).UnixMilli())
	})

	assert.False(t, r.isWakeRequired(t.Context(), cfg, clock.Now()))
	fetches, _ := client.calls()
	assert.Zero(t, fetches, "cached reset must answer without network access")

	clock.Advance(2 * time.Minute)
	require.True(t, r.wakeStep(t.Context()))
	fetches, wakes := client.calls()
	assert.Zero(t, fetches)
	assert.Zero(t, wakes)
	assert.Equal(t, clock.Now(), r.sched.Load().LastIntervalFire, "skipped trigger still advances markers")
}

func TestWakeRequiredLiveCheck(t *testing.T) {
	clock := newFakeClock()

	tests := []struct {
		name  string
		fetch func(int) (*models.QuotaSnapshot, error)
		want  bool
	}{
		{
			name:  "fetch fails open",
			fetch: func(int) (*models.QuotaSnapshot, error) { return nil, errNetwork },
			want:  true,
		},
		{
			name:  "no reset reported",
			fetch: func(int) (*models.QuotaSnapshot, error) { return &models.QuotaSnapshot{}, nil },
			want:  true,
		},
		{
			name:  "reset in the past",
			fetch: func(int) (*models.QuotaSnapshot, error) { return snapshotAt(clock.Now().Add(-time.Minute)), nil },
			want:  true,
		},
		{
			name:  "reset in the future",
			fetch: func(int) (*models.QuotaSnapshot, error) { return snapshotAt(clock.Now().Add(time.Minute)), nil },
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{fetch: tt.fetch}
			r := newTestRunner(t, client, activeSlot(1), models.DefaultPolicy(), clock)

			assert.Equal(t, tt.want, r.isWakeRequired(t.Context(), activeSlot(1), clock.Now()))
			fetches, _ := client.calls()
			assert.Equal(t, 1, fetches)
		})
	}
}

func TestPendingWakeSuppressesDuplicatesUntilForcedRetry(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{fetch: func(int) (*models.QuotaSnapshot, error) { return &models.QuotaSnapshot{}, nil }}
	cfg := activeSlot(1)
	cfg.ScheduleIntervalEnabled = true
	cfg.ScheduleIntervalMinutes = 1

	r := newTestRunner(t, client, cfg, models.DefaultPolicy(), clock)

	clock.Advance(time.Minute)
	require.True(t, r.wakeStep(t.Context()))
	_, wakes := client.calls()
	require.Equal(t, 1, wakes)

	// Inside the retry window: duplicates are suppressed but markers advance.
	for range 5 {
		clock.Advance(time.Minute)
		require.True(t, r.wakeStep(t.Context()))
	}
	_, wakes = client.calls()
	assert.Equal(t, 1, wakes)
	assert.Equal(t, clock.Now(), r.sched.Load().LastIntervalFire)

	// Window elapsed: exactly one forced re-send.
	clock.Advance(15 * time.Minute)
	require.True(t, r.wakeStep(t.Context()))
	_, wakes = client.calls()
	assert.Equal(t, 2, wakes)
	assert.True(t, r.sched.Load().WakeTimeoutRetryFired)

	clock.Advance(16 * time.Minute)
	require.True(t, r.wakeStep(t.Context()))
	_, wakes = client.calls()
	assert.Equal(t, 2, wakes, "forced retry fires at most once per pending episode")
	assert.True(t, r.board.Slot(0).WakePending)
}

func TestOrdinaryTriggerRetriesAfterForcedBudgetWhenErrorsCounted(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{fetch: func(int) (*models.QuotaSnapshot, error) { return &models.QuotaSnapshot{}, nil }}
	cfg := activeSlot(1)
	cfg.ScheduleIntervalEnabled = true
	cfg.ScheduleIntervalMinutes = 1

	r := newTestRunner(t, client, cfg, models.DefaultPolicy(), clock)
	r.board.Update(0, func(s *models.SlotRuntimeStatus) {
		s.WakePending = true
		s.WakeConsecutiveErrors = 2
	})
	r.sched.Update(func(s *Schedule) {
		s.WakeTimeoutRetryFired = true
		s.WakeRetryWindowDeadline = clock.Now().Add(-time.Minute)
	})

	clock.Advance(time.Minute)
	require.True(t, r.wakeStep(t.Context()))

	_, wakes := client.calls()
	assert.Equal(t, 1, wakes)
	assert.True(t, r.sched.Load().WakeTimeoutRetryFired, "latch stays set for the same episode")
}

func TestWakeFailuresPauseAtCeiling(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{
		fetch: func(int) (*models.QuotaSnapshot, error) { return &models.QuotaSnapshot{}, nil },
		wake:  func(int) error { return errNetwork },
	}
	cfg := activeSlot(1)
	cfg.ScheduleIntervalEnabled = true
	cfg.ScheduleIntervalMinutes = 1

	policy := models.DefaultPolicy()
	policy.MaxConsecutiveErrors = 3
	r := newTestRunner(t, client, cfg, policy, clock)

	clock.Advance(time.Minute)
	assert.True(t, r.wakeStep(t.Context()))
	assert.Equal(t, 1, r.board.Slot(0).WakeConsecutiveErrors)
	assert.False(t, r.board.Slot(0).WakePending)

	// Failed sends leave markers untouched so the next tick retries.
	clock.Advance(time.Second)
	assert.True(t, r.wakeStep(t.Context()))
	clock.Advance(time.Second)
	assert.False(t, r.wakeStep(t.Context()), "third failure pauses wake")

	st := r.board.Slot(0)
	assert.True(t, st.WakeAutoDisabled)
	assert.Equal(t, 3, st.WakeConsecutiveErrors)
	assert.Contains(t, st.LastError, "connection reset")
	assert.Contains(t, r.eventTypes(), EventWakeAutoDisabled)

	assert.False(t, r.wakeStep(t.Context()), "paused wake takes no further action")
	_, wakes := client.calls()
	assert.Equal(t, 3, wakes)
}

func TestWakeStopsWhenSlotAutoDisabled(t *testing.T) {
	clock := newFakeClock()
	client := &fakeClient{}
	cfg := activeSlot(1)
	cfg.ScheduleIntervalEnabled = true
	cfg.ScheduleIntervalMinutes = 1

	r := newTestRunner(t, client, cfg, models.DefaultPolicy(), clock)
	r.board.Update(0, func(s *models.SlotRuntimeStatus) { s.AutoDisabled = true })

	clock.Advance(time.Hour)
	assert.False(t, r.wakeStep(t.Context()))
	fetches, wakes := client.calls()
	assert.Zero(t, fetches)
	assert.Zero(t, wakes)
}
