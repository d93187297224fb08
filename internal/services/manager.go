// Package services provides service orchestration for the TUI and daemon.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"github.com/j-veylop/glm-tray/internal/config"
	"github.com/j-veylop/glm-tray/internal/credentials"
	"github.com/j-veylop/glm-tray/internal/db"
	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/scheduler"
	"github.com/j-veylop/glm-tray/internal/services/quota"
	"github.com/j-veylop/glm-tray/internal/tray"
)

// retentionSpec runs history pruning daily at 03:00.
const retentionSpec = "0 3 * * *"

type (
	// StatusChangedEvent carries a fresh runtime snapshot and its tray summary.
	StatusChangedEvent struct {
		Status  models.RuntimeStatus
		Summary tray.Summary
	}

	// QuotaUpdatedEvent is emitted after every successful quota reading.
	QuotaUpdatedEvent struct {
		Snapshot models.QuotaSnapshot
		Slot     int
	}

	// WakeActivityEvent is emitted for every wake history entry.
	WakeActivityEvent struct {
		Event models.WakeEvent
	}

	// SettingsChangedEvent is emitted after settings are loaded or saved.
	SettingsChangedEvent struct {
		Settings models.AppConfig
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (StatusChangedEvent) isServiceEvent()   {}
func (QuotaUpdatedEvent) isServiceEvent()    {}
func (WakeActivityEvent) isServiceEvent()    {}
func (SettingsChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()           {}

// Transport is the provider client used by the engine and the one-shot operations.
type Transport interface {
	scheduler.Client
	Warmup(ctx context.Context, cfg models.SlotConfig) error
	FetchSlotStats(ctx context.Context, cfg models.SlotConfig) (*models.SlotStats, error)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithSchedulerOptions overrides engine timing.
func WithSchedulerOptions(opts scheduler.Options) Option {
	return func(m *Manager) { m.schedOpts = opts }
}

// WithNotifier replaces the desktop notification sender.
func WithNotifier(fn func(title, body string) error) Option {
	return func(m *Manager) { m.notify = fn }
}

// WithoutSettingsWatch disables hot reload of the settings file.
func WithoutSettingsWatch() Option {
	return func(m *Manager) { m.watchSettings = false }
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu            sync.RWMutex
	settings      models.AppConfig
	opts          *config.Options
	client        Transport
	engine        *scheduler.Manager
	database      *db.DB
	watcher       *config.Watcher
	cron          *cron.Cron
	notify        func(title, body string) error
	schedOpts     scheduler.Options
	stopChan      chan struct{}
	routeDone     chan struct{}
	subscribers   []chan ServiceEvent
	watchSettings bool
	closeOnce     sync.Once
}

// NewManager loads settings, opens the history database and prepares the engine.
// Monitoring is not started. A nil client selects the HTTP quota client.
func NewManager(opts *config.Options, client Transport, options ...Option) (*Manager, error) {
	m := &Manager{
		opts:          opts,
		client:        client,
		notify:        notifyDesktop,
		stopChan:      make(chan struct{}),
		routeDone:     make(chan struct{}),
		watchSettings: true,
	}
	for _, o := range options {
		o(m)
	}
	if m.client == nil {
		m.client = quota.NewClient()
	}

	settings, err := config.Load(opts.SettingsPath, opts.Debug)
	if err != nil {
		logger.Error("failed to load settings, using defaults", "error", err)
		settings = config.Validate(models.DefaultAppConfig(), opts.Debug)
	}
	m.settings = settings

	m.database, err = db.New(opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.engine = scheduler.NewManager(m.client, m.schedOpts)

	m.cron = cron.New()
	if _, err := m.cron.AddFunc(retentionSpec, m.pruneHistory); err != nil {
		_ = m.database.Close()
		return nil, fmt.Errorf("failed to schedule history retention: %w", err)
	}
	m.cron.Start()

	if m.watchSettings {
		m.watcher, err = config.NewWatcher(opts.SettingsPath, m.onSettingsFileChanged)
		if err != nil {
			logger.Warn("settings hot reload unavailable", "error", err)
		}
	}

	go m.routeEvents()

	return m, nil
}

// routeEvents converts engine events into service events.
func (m *Manager) routeEvents() {
	defer close(m.routeDone)
	for {
		select {
		case event := <-m.engine.Events():
			m.handleEngineEvent(event)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleEngineEvent(event scheduler.Event) {
	switch event.Type {
	case scheduler.EventStatusChanged:
		if event.Status != nil {
			m.broadcast(StatusChangedEvent{Status: *event.Status, Summary: tray.Summarize(*event.Status)})
		}

	case scheduler.EventQuotaUpdated:
		if event.Snapshot == nil {
			return
		}
		sample := &models.QuotaSample{
			Slot:             event.Slot,
			Percentage:       event.Snapshot.Percentage,
			TimerActive:      event.Snapshot.TimerActive,
			NextResetEpochMs: event.Snapshot.NextResetEpochMs,
		}
		if err := m.database.InsertQuotaSample(sample); err != nil {
			logger.Warn("failed to record quota sample", "slot", event.Slot, "error", err)
		}
		m.broadcast(QuotaUpdatedEvent{Slot: event.Slot, Snapshot: *event.Snapshot})

	case scheduler.EventWakeSent, scheduler.EventWakeFailed, scheduler.EventWakeConfirmed,
		scheduler.EventWakeUnconfirmed, scheduler.EventWakeAutoDisabled, scheduler.EventSlotAutoDisabled:
		m.recordWake(wakeEventFrom(event))
		m.checkNotifications(event)
	}
}

func wakeEventFrom(event scheduler.Event) *models.WakeEvent {
	kinds := map[scheduler.EventType]models.WakeEventKind{
		scheduler.EventWakeSent:         models.WakeEventSent,
		scheduler.EventWakeFailed:       models.WakeEventFailed,
		scheduler.EventWakeConfirmed:    models.WakeEventConfirmed,
		scheduler.EventWakeUnconfirmed:  models.WakeEventUnconfirmed,
		scheduler.EventWakeAutoDisabled: models.WakeEventAutoDisabled,
		scheduler.EventSlotAutoDisabled: models.WakeEventSlotDisabled,
	}

	we := &models.WakeEvent{
		Slot:      event.Slot,
		AttemptID: event.AttemptID,
		Kind:      kinds[event.Type],
		Reason:    event.Reason,
		Timestamp: time.Now(),
	}
	if event.Error != nil {
		we.Error = event.Error.Error()
	}
	return we
}

func (m *Manager) recordWake(event *models.WakeEvent) {
	if err := m.database.InsertWakeEvent(event); err != nil {
		logger.Warn("failed to record wake event", "slot", event.Slot, "kind", event.Kind, "error", err)
	}
	m.broadcast(WakeActivityEvent{Event: *event})
}

// checkNotifications raises a desktop alert when a slot stops doing work on its own.
func (m *Manager) checkNotifications(event scheduler.Event) {
	label := m.slotLabel(event.Slot)

	var title, body string
	switch event.Type {
	case scheduler.EventSlotAutoDisabled:
		title = fmt.Sprintf("Quota polling disabled: %s", label)
		body = "Polling stopped after repeated errors. Reload settings to retry."
	case scheduler.EventWakeAutoDisabled:
		title = fmt.Sprintf("Wake paused: %s", label)
		body = "Wake requests stopped after repeated failures. Quota polling continues."
	default:
		return
	}
	if event.Error != nil {
		body += "\n" + event.Error.Error()
	}

	if err := m.notify(title, body); err != nil {
		logger.Debug("desktop notification failed", "error", err)
	}
}

func notifyDesktop(title, body string) error {
	return beeep.Notify(title, body, "")
}

func (m *Manager) slotLabel(slot int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slot >= 1 && slot <= len(m.settings.Slots) {
		return m.settings.Slots[slot-1].Label()
	}
	return models.SlotLabel(slot)
}

// pruneHistory deletes history older than the configured retention.
func (m *Manager) pruneHistory() {
	days := m.Settings().MaxLogDays
	removed, err := m.database.Prune(time.Now().AddDate(0, 0, -days))
	if err != nil {
		logger.Error("history retention failed", "error", err)
		m.broadcast(ErrorEvent{Service: "history", Error: err})
		return
	}
	logger.Info("history pruned", "rows", removed, "days", days)
	if removed > 0 {
		if err := m.database.Vacuum(); err != nil {
			logger.Warn("history vacuum failed", "error", err)
		}
	}
}

func (m *Manager) onSettingsFileChanged() {
	logger.Info("settings file changed on disk, reloading")
	if _, err := m.LoadSettings(); err != nil {
		m.broadcast(ErrorEvent{Service: "config", Error: err})
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return event
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Settings returns the current settings as stored on disk.
func (m *Manager) Settings() models.AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Clone()
}

// LoadSettings re-reads the settings file and applies it to a running engine.
func (m *Manager) LoadSettings() (models.AppConfig, error) {
	settings, err := config.Load(m.opts.SettingsPath, m.opts.Debug)
	if err != nil {
		return models.AppConfig{}, err
	}
	m.applySettings(settings)

	enabled := lo.CountBy(settings.Slots, func(s models.SlotConfig) bool { return s.Enabled })
	logger.Info("settings loaded", "enabled_slots", enabled)
	return settings.Clone(), nil
}

// SaveSettings validates and persists settings, then applies them to a running engine.
func (m *Manager) SaveSettings(settings models.AppConfig) (models.AppConfig, error) {
	saved, err := config.Save(m.opts.SettingsPath, settings, m.opts.Debug)
	if err != nil {
		return models.AppConfig{}, err
	}
	m.applySettings(saved)
	return saved.Clone(), nil
}

func (m *Manager) applySettings(settings models.AppConfig) {
	m.mu.Lock()
	m.settings = settings.Clone()
	m.mu.Unlock()

	m.engine.Reload(credentials.ResolveSlots(settings))
	m.broadcast(SettingsChangedEvent{Settings: settings.Clone()})
}

// StartMonitoring starts the engine for every active slot. A running engine is restarted.
func (m *Manager) StartMonitoring(ctx context.Context) {
	settings := m.Settings()
	active := lo.CountBy(settings.Slots, func(s models.SlotConfig) bool { return s.Active() })
	logger.Info("starting monitoring", "active_slots", active)
	m.engine.Start(ctx, credentials.ResolveSlots(settings))
}

// StopMonitoring stops every slot and resets the runtime status.
func (m *Manager) StopMonitoring() {
	logger.Info("stopping monitoring")
	m.engine.Stop()
}

// IsMonitoring reports whether the engine is running.
func (m *Manager) IsMonitoring() bool {
	return m.engine.IsRunning()
}

// Status returns the runtime status of every slot.
func (m *Manager) Status() models.RuntimeStatus {
	return m.engine.Status()
}

// Summary returns the tray summary of the current status.
func (m *Manager) Summary() tray.Summary {
	return tray.Summarize(m.engine.Status())
}

// NextWake returns the next scheduled wake of a slot (1-based), or the zero time.
func (m *Manager) NextWake(slot int) time.Time {
	return m.engine.NextWake(slot - 1)
}

// activeSlots returns the resolved configuration of every slot with a usable key.
func (m *Manager) activeSlots() []models.SlotConfig {
	resolved := credentials.ResolveSlots(m.Settings())
	return lo.Filter(resolved.Slots, func(s models.SlotConfig, _ int) bool { return s.Active() })
}

// WarmupAll sends a warmup request for every active slot in turn.
// Failures are logged and recorded, never returned.
func (m *Manager) WarmupAll(ctx context.Context) (succeeded, failed int) {
	logger.Info("warmup all keys requested")

	for _, slot := range m.activeSlots() {
		if ctx.Err() != nil {
			break
		}

		event := &models.WakeEvent{Slot: slot.Slot, Kind: models.WakeEventWarmup, Reason: "warmup all", Timestamp: time.Now()}
		if err := m.client.Warmup(ctx, slot); err != nil {
			logger.Warn("warmup failed", "slot", slot.Slot, "error", err)
			event.Kind = models.WakeEventWarmupFailed
			event.Error = err.Error()
			failed++
		} else {
			logger.Info("warmup succeeded", "slot", slot.Slot)
			succeeded++
		}
		m.recordWake(event)
	}

	logger.Info("warmup all keys completed", "succeeded", succeeded, "failed", failed)
	return succeeded, failed
}

// FetchQuotaAll performs a one-shot quota read of every active slot without the engine.
func (m *Manager) FetchQuotaAll(ctx context.Context) map[int]QuotaResult {
	results := make(map[int]QuotaResult)
	for _, slot := range m.activeSlots() {
		snap, err := m.client.FetchQuota(ctx, slot)
		results[slot.Slot] = QuotaResult{Label: slot.Label(), Snapshot: snap, Err: err}
	}
	return results
}

// QuotaResult is the outcome of a one-shot quota read.
type QuotaResult struct {
	Err      error
	Snapshot *models.QuotaSnapshot
	Label    string
}

// ErrNoAPIKey is returned for operations on a slot without a usable key.
var ErrNoAPIKey = errors.New("no API key configured")

// FetchSlotStats fetches plan limits and 24h usage for a slot (1-based).
func (m *Manager) FetchSlotStats(ctx context.Context, slot int) (*models.SlotStats, error) {
	resolved := credentials.ResolveSlots(m.Settings())
	cfg, ok := lo.Find(resolved.Slots, func(s models.SlotConfig) bool { return s.Slot == slot })
	if !ok {
		return nil, fmt.Errorf("slot %d not found", slot)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	return m.client.FetchSlotStats(ctx, cfg)
}

// QuotaHistory returns recent quota samples of a slot (1-based; 0 for all).
func (m *Manager) QuotaHistory(slot, limit int) ([]models.QuotaSample, error) {
	return m.database.RecentQuotaSamples(slot, limit)
}

// WakeHistory returns recent wake events across all slots.
func (m *Manager) WakeHistory(limit int) ([]models.WakeEvent, error) {
	return m.database.RecentWakeEvents(limit)
}

// HourlyUsage returns hourly usage buckets of a slot over the last hours.
func (m *Manager) HourlyUsage(slot, hours int) ([]models.HourlyUsage, error) {
	return m.database.HourlyUsage(slot, hours)
}

// WakeCounts returns wake event counts per kind over the last days.
func (m *Manager) WakeCounts(days int) (map[models.WakeEventKind]int, error) {
	return m.database.WakeEventCounts(days)
}

// Options returns the process options the manager was created with.
func (m *Manager) Options() config.Options {
	return *m.opts
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close stops the engine and closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		if m.watcher != nil {
			if err := m.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		m.engine.Stop()
		<-m.cron.Stop().Done()

		close(m.stopChan)
		<-m.routeDone

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	})

	return errors.Join(errs...)
}
