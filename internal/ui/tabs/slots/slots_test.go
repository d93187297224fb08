package slots

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/glm-tray/internal/app"
	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/services"
	"github.com/j-veylop/glm-tray/internal/tray"
)

type fakeSource struct {
	next  time.Time
	calls []int
	err   error
}

func (f *fakeSource) NextWake(int) time.Time { return f.next }

func (f *fakeSource) HourlyUsage(slot, hours int) ([]models.HourlyUsage, error) {
	f.calls = append(f.calls, slot)
	if f.err != nil {
		return nil, f.err
	}
	return []models.HourlyUsage{{AvgPercentage: 20}, {AvgPercentage: 60}}, nil
}

func newTestState() *app.State {
	state := app.NewState()
	state.SetLoading("initial", false)

	rs := models.NewRuntimeStatus()
	rs.Monitoring = true
	rs.Slots[0].Enabled = true
	rs.Slots[0].Name = "work"
	rs.Slots[0].Percentage = models.IntPtr(42)
	rs.Slots[0].NextResetHMS = "14:30:00"
	rs.Slots[0].TimerActive = true
	rs.Slots[1].Enabled = true
	rs.Slots[1].AutoDisabled = true
	state.SetStatus(rs, tray.Summarize(rs))

	settings := models.DefaultAppConfig()
	settings.Slots[0].Name = "work"
	settings.Slots[0].Enabled = true
	settings.Slots[0].APIKey = "key"
	settings.Slots[0].ScheduleIntervalEnabled = true
	settings.Slots[2].Enabled = true
	state.SetSettings(settings)
	return state
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew(t *testing.T) {
	m := New(newTestState(), nil)
	if m == nil {
		t.Fatal("New returned nil")
	}

	rows := m.table.Rows()
	if len(rows) != models.MaxSlots {
		t.Fatalf("expected %d rows, got %d", models.MaxSlots, len(rows))
	}

	want := []string{"1", "work", "42%", "14:30:00", "I", "ok"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row 0 col %d = %q, want %q", i, rows[0][i], cell)
		}
	}
	if rows[1][5] != "DISABLED (errors)" {
		t.Errorf("slot 2 status = %q", rows[1][5])
	}
	if rows[2][5] != "no API key" {
		t.Errorf("slot 3 status = %q", rows[2][5])
	}
	if rows[4][3] != "-" || rows[4][5] != "off" {
		t.Errorf("idle slot row = %v", rows[4])
	}
}

func TestModel_InitWithoutSource(t *testing.T) {
	m := New(newTestState(), nil)
	if m.Init() != nil {
		t.Error("Init without a source should not load anything")
	}
}

func TestModel_InitLoadsUsage(t *testing.T) {
	src := &fakeSource{}
	m := New(newTestState(), src)

	msg := m.Init()()
	loaded, ok := msg.(usageLoadedMsg)
	if !ok {
		t.Fatalf("expected usageLoadedMsg, got %T", msg)
	}
	if loaded.slot != 1 || loaded.hours != 24 {
		t.Errorf("loaded slot %d for %dh", loaded.slot, loaded.hours)
	}

	m.Update(loaded)
	if len(m.usage) != 2 {
		t.Errorf("usage not stored: %v", m.usage)
	}
}

func TestModel_SelectSlot(t *testing.T) {
	state := newTestState()
	src := &fakeSource{}
	m := New(state, src)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if cmd == nil {
		t.Fatal("moving the cursor should reload usage")
	}
	if state.GetSelectedSlot() != 1 {
		t.Errorf("selected slot = %d, want 1", state.GetSelectedSlot())
	}

	m.Update(keyRunes("G"))
	if state.GetSelectedSlot() != models.MaxSlots-1 {
		t.Errorf("selected slot = %d, want last", state.GetSelectedSlot())
	}

	_, cmd = m.Update(keyRunes("j"))
	if cmd != nil {
		t.Error("moving past the last slot should do nothing")
	}

	m.Update(keyRunes("g"))
	if state.GetSelectedSlot() != 0 {
		t.Errorf("selected slot = %d, want 0", state.GetSelectedSlot())
	}
}

func TestModel_FollowsSharedSelection(t *testing.T) {
	state := newTestState()
	m := New(state, nil)

	state.SetSelectedSlot(3)
	m.Update(nil)
	if m.table.Cursor() != 3 {
		t.Errorf("cursor = %d, want 3", m.table.Cursor())
	}
}

func TestModel_StaleUsageIgnored(t *testing.T) {
	m := New(newTestState(), &fakeSource{})

	m.Update(usageLoadedMsg{slot: 4, hours: 24, buckets: []models.HourlyUsage{{}}})
	if m.usage != nil {
		t.Error("usage for another slot should be ignored")
	}

	m.Update(usageLoadedMsg{slot: 1, hours: 168, buckets: []models.HourlyUsage{{}}})
	if m.usage != nil {
		t.Error("usage for another range should be ignored")
	}
}

func TestModel_ChartRange(t *testing.T) {
	m := New(newTestState(), &fakeSource{})

	for _, want := range []int{72, 168, 24} {
		_, cmd := m.Update(keyRunes("c"))
		if cmd == nil {
			t.Fatal("chart range should reload usage")
		}
		if loaded := cmd().(usageLoadedMsg); loaded.hours != want {
			t.Errorf("hours = %d, want %d", loaded.hours, want)
		}
	}
}

func TestModel_QuotaUpdatedReloads(t *testing.T) {
	src := &fakeSource{}
	m := New(newTestState(), src)

	_, cmd := m.Update(app.ServiceEventMsg{Event: services.QuotaUpdatedEvent{Slot: 2}})
	if cmd != nil {
		t.Error("update for an unselected slot should not reload")
	}

	_, cmd = m.Update(app.ServiceEventMsg{Event: services.QuotaUpdatedEvent{Slot: 1}})
	if cmd == nil {
		t.Fatal("update for the selected slot should reload")
	}
	cmd()
	if len(src.calls) != 1 || src.calls[0] != 1 {
		t.Errorf("HourlyUsage calls = %v", src.calls)
	}
}

func TestModel_TabSwitchReloads(t *testing.T) {
	m := New(newTestState(), &fakeSource{})

	if _, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabInfo}); cmd != nil {
		t.Error("switching to another tab should not reload")
	}
	if _, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabSlots}); cmd == nil {
		t.Error("switching to the slots tab should reload usage")
	}
}

func TestModel_View(t *testing.T) {
	state := app.NewState()
	m := New(state, nil)
	m.SetSize(100, 40)
	if !strings.Contains(m.View(), "Loading") {
		t.Error("view should show loading before the first status")
	}

	state = newTestState()
	reset := time.Now().Add(90 * time.Minute)
	rs := state.GetStatus()
	rs.Slots[0].LastUpdatedEpochMs = models.Int64Ptr(reset.UnixMilli())
	rs.Slots[0].LastError = "HTTP 500"
	rs.Slots[0].QuotaConsecutiveErrors = 2
	state.SetStatus(rs, tray.Summarize(rs))

	src := &fakeSource{next: time.Now().Add(10 * time.Minute)}
	m = New(state, src)
	m.SetSize(100, 40)
	m.Update(m.Init()())

	view := ansi.Strip(m.View())
	for _, want := range []string{
		"GLM Quota Slots",
		"Monitoring active",
		"Slot 1: work",
		"every 60m",
		"Next wake",
		"quota x2, wake x0",
		"HTTP 500",
		"last 24h",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ViewUsageError(t *testing.T) {
	m := New(newTestState(), &fakeSource{err: errors.New("db closed")})
	m.SetSize(100, 40)
	m.Update(m.Init()())

	if view := ansi.Strip(m.View()); !strings.Contains(view, "db closed") {
		t.Error("view should show the usage error")
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		st   models.SlotRuntimeStatus
		cfg  models.SlotConfig
		want string
	}{
		{"wake paused", models.SlotRuntimeStatus{Enabled: true, WakeAutoDisabled: true, WakeConsecutiveErrors: 3}, models.SlotConfig{}, "WAKE PAUSED (x3)"},
		{"pending", models.SlotRuntimeStatus{Enabled: true, WakePending: true}, models.SlotConfig{}, "wake pending"},
		{"retrying", models.SlotRuntimeStatus{Enabled: true, QuotaConsecutiveErrors: 2}, models.SlotConfig{}, "retrying (err x2)"},
		{"off", models.SlotRuntimeStatus{}, models.SlotConfig{}, "off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusText(tt.st, tt.cfg); got != tt.want {
				t.Errorf("statusText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribeModes(t *testing.T) {
	cfg := models.DefaultSlot(1)
	if got := describeModes(cfg); got != "none" {
		t.Errorf("describeModes = %q", got)
	}
	if got := modesShort(cfg); got != "-" {
		t.Errorf("modesShort = %q", got)
	}

	cfg.ScheduleTimesEnabled = true
	cfg.ScheduleTimes = []string{"09:00", "13:30"}
	cfg.ScheduleAfterResetEnabled = true
	if got := describeModes(cfg); got != "at 09:00, 13:30; 1m after reset" {
		t.Errorf("describeModes = %q", got)
	}
	if got := modesShort(cfg); got != "TR" {
		t.Errorf("modesShort = %q", got)
	}
}

func TestModel_Help(t *testing.T) {
	m := New(newTestState(), nil)
	if len(m.ShortHelp()) == 0 || len(m.FullHelp()) == 0 {
		t.Error("help bindings should not be empty")
	}
}
