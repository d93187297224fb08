package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/glm-tray/internal/models"
)

var errNetwork = errors.New("connection reset")

type fakeClient struct {
	fetch      func(call int) (*models.QuotaSnapshot, error)
	wake       func(call int) error
	fetchCalls int
	wakeCalls  int
	mu         sync.Mutex
}

func (f *fakeClient) FetchQuota(_ context.Context, _ models.SlotConfig) (*models.QuotaSnapshot, error) {
	f.mu.Lock()
	f.fetchCalls++
	call := f.fetchCalls
	fn := f.fetch
	f.mu.Unlock()

	if fn == nil {
		return &models.QuotaSnapshot{Percentage: 0}, nil
	}
	return fn(call)
}

func (f *fakeClient) SendWake(_ context.Context, _ models.SlotConfig) error {
	f.mu.Lock()
	f.wakeCalls++
	call := f.wakeCalls
	fn := f.wake
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(call)
}

func (f *fakeClient) calls() (fetches, wakes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.wakeCalls
}

type fakeClock struct {
	t  time.Time
	mu sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 30, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func snapshotAt(reset time.Time) *models.QuotaSnapshot {
	ms := reset.UnixMilli()
	return &models.QuotaSnapshot{
		Percentage:       20,
		TimerActive:      true,
		NextResetEpochMs: &ms,
		NextResetHMS:     models.FormatResetHMS(ms),
	}
}

func activeSlot(slot int) models.SlotConfig {
	cfg := models.DefaultSlot(slot)
	cfg.Enabled = true
	cfg.APIKey = "sk-test"
	return cfg
}

type testRunner struct {
	*slotRunner
	events *[]Event
	mu     *sync.Mutex
}

func (tr testRunner) eventTypes() []EventType {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	types := make([]EventType, 0, len(*tr.events))
	for _, e := range *tr.events {
		types = append(types, e.Type)
	}
	return types
}

func newTestRunner(t *testing.T, client Client, cfg models.SlotConfig, policy models.Policy, clock *fakeClock) testRunner {
	t.Helper()

	var (
		events []Event
		mu     sync.Mutex
	)
	emit := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	opts := Options{Now: clock.Now, WakeTick: time.Millisecond, Minute: time.Millisecond}.withDefaults()
	board := NewStatusBoard()
	idx := cfg.Slot - 1
	board.Update(idx, func(s *models.SlotRuntimeStatus) { s.Enabled = true })

	r := newSlotRunner(idx, cfg, newWatch(policy), board, client, opts, emit)
	return testRunner{slotRunner: r, events: &events, mu: &mu}
}
