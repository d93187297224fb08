// Package scheduler runs the per-slot wake and quota polling goroutines and
// reconciles wakes against observed quota windows.
package scheduler

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
)

// Client is the quota and wake transport used by the scheduler.
type Client interface {
	FetchQuota(ctx context.Context, cfg models.SlotConfig) (*models.QuotaSnapshot, error)
	SendWake(ctx context.Context, cfg models.SlotConfig) error
}

// Options tunes timing. Zero values select production defaults.
type Options struct {
	// Now is the clock used for trigger evaluation and confirmation windows.
	Now func() time.Time
	// WakeTick is the interval between wake trigger evaluations.
	WakeTick time.Duration
	// Minute is the unit applied to poll intervals and backoff sleeps.
	Minute time.Duration
	// EventBuffer is the capacity of the event channel.
	EventBuffer int
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.WakeTick <= 0 {
		o.WakeTick = 60 * time.Second
	}
	if o.Minute <= 0 {
		o.Minute = time.Minute
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	return o
}

type slotHandle struct {
	runner *slotRunner
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Manager starts, stops and reconciles the set of running slots.
type Manager struct {
	client  Client
	board   *StatusBoard
	policy  *watch[models.Policy]
	slots   map[int]*slotHandle
	events  chan Event
	baseCtx context.Context
	opts    Options
	mu      sync.Mutex
	running bool
}

// NewManager creates an idle manager.
func NewManager(client Client, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		client: client,
		board:  NewStatusBoard(),
		policy: newWatch(models.DefaultPolicy()),
		slots:  make(map[int]*slotHandle),
		events: make(chan Event, opts.EventBuffer),
		opts:   opts,
	}
}

// Events returns the channel scheduler events are delivered on.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Status returns a snapshot of every slot.
func (m *Manager) Status() models.RuntimeStatus {
	return m.board.Snapshot()
}

// NextWake returns the next scheduled wake of a running slot, or the zero time.
func (m *Manager) NextWake(idx int) time.Time {
	m.mu.Lock()
	handle, ok := m.slots[idx]
	m.mu.Unlock()
	if !ok {
		return time.Time{}
	}

	cfg, _ := handle.runner.config.Load()
	return NextScheduledWake(cfg, handle.runner.sched.Load(), m.opts.Now())
}

// IsRunning reports whether the engine has been started and not stopped.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start stops any running slots, resets status and spawns a slot for each active config.
func (m *Manager) Start(ctx context.Context, cfg models.AppConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.board.Reset()

	m.baseCtx = ctx
	m.policy.Store(cfg.Policy())

	active := activeSlots(cfg)
	for _, idx := range lo.Keys(active) {
		m.spawnLocked(idx, active[idx])
	}

	m.running = true
	m.board.SetMonitoring(true)
	logger.Info("scheduler started", "slots", len(active))
	m.broadcastStatus()
}

// Stop signals every slot to exit and waits for both of its goroutines.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.stopLocked()
	m.running = false
	m.board.Reset()
	logger.Info("scheduler stopped")
	m.broadcastStatus()
}

// Reload applies a new configuration without restarting slots whose state is unchanged.
// Slots that stopped after repeated failures are restarted.
func (m *Manager) Reload(cfg models.AppConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		logger.Debug("reload ignored, scheduler not running")
		return
	}

	if policy := cfg.Policy(); policy != m.currentPolicy() {
		m.policy.Store(policy)
	}

	desired := activeSlots(cfg)
	running := lo.Keys(m.slots)

	removed, added := lo.Difference(running, lo.Keys(desired))
	for _, idx := range removed {
		m.stopSlotLocked(idx)
		m.board.ResetSlot(idx)
		logger.Info("slot stopped by reload", "slot", idx+1)
	}

	for _, idx := range added {
		m.spawnLocked(idx, desired[idx])
		logger.Info("slot started by reload", "slot", idx+1)
	}

	for _, idx := range lo.Intersect(running, lo.Keys(desired)) {
		slotCfg := desired[idx]
		st := m.board.Slot(idx)
		if st.AutoDisabled || st.WakeAutoDisabled {
			m.stopSlotLocked(idx)
			m.spawnLocked(idx, slotCfg)
			logger.Info("slot re-armed by reload", "slot", idx+1)
			continue
		}

		handle := m.slots[idx]
		current, _ := handle.runner.config.Load()
		if !sameSlot(current, slotCfg) {
			handle.runner.config.Store(slotCfg.Clone())
			m.board.Update(idx, func(s *models.SlotRuntimeStatus) { s.Name = slotCfg.Name })
			logger.Info("slot config updated", "slot", idx+1)
		}
	}

	m.broadcastStatus()
}

func (m *Manager) currentPolicy() models.Policy {
	p, _ := m.policy.Load()
	return p
}

func (m *Manager) spawnLocked(idx int, cfg models.SlotConfig) {
	parent := m.baseCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)

	runner := newSlotRunner(idx, cfg, m.policy, m.board, m.client, m.opts, m.sendEvent)
	m.board.Update(idx, func(s *models.SlotRuntimeStatus) {
		*s = models.SlotRuntimeStatus{Name: cfg.Name, Enabled: true}
	})

	group.Go(func() error { return runner.runWake(gctx) })
	group.Go(func() error { return runner.runPoller(gctx) })

	m.slots[idx] = &slotHandle{runner: runner, cancel: cancel, group: group}
}

func (m *Manager) stopSlotLocked(idx int) {
	handle, ok := m.slots[idx]
	if !ok {
		return
	}
	handle.cancel()
	if err := handle.group.Wait(); err != nil {
		logger.Warn("slot exited with error", "slot", idx+1, "error", err)
	}
	delete(m.slots, idx)
}

func (m *Manager) stopLocked() {
	for _, idx := range lo.Keys(m.slots) {
		m.slots[idx].cancel()
	}
	for _, idx := range lo.Keys(m.slots) {
		m.stopSlotLocked(idx)
	}
}

func (m *Manager) broadcastStatus() {
	snapshot := m.board.Snapshot()
	m.sendEvent(Event{Type: EventStatusChanged, Status: &snapshot})
}

// sendEvent delivers without blocking, dropping the oldest event when the buffer is full.
func (m *Manager) sendEvent(event Event) {
	select {
	case m.events <- event:
	default:
		select {
		case <-m.events:
		default:
		}
		select {
		case m.events <- event:
		default:
		}
	}
}

// activeSlots maps slot index to config for every slot that should run.
func activeSlots(cfg models.AppConfig) map[int]models.SlotConfig {
	active := make(map[int]models.SlotConfig)
	for i, slot := range cfg.Slots {
		if i >= models.MaxSlots || !slot.Active() {
			continue
		}
		slot.Slot = i + 1
		active[i] = slot.Clone()
	}
	return active
}

func sameSlot(a, b models.SlotConfig) bool {
	if !slices.Equal(a.ScheduleTimes, b.ScheduleTimes) {
		return false
	}
	a.ScheduleTimes, b.ScheduleTimes = nil, nil
	return reflect.DeepEqual(a, b)
}
