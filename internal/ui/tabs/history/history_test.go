package history

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
)

type fakeSource struct {
	counts map[models.WakeEventKind]int
	err    error
	days   []int
}

func (f *fakeSource) WakeCounts(days int) (map[models.WakeEventKind]int, error) {
	f.days = append(f.days, days)
	return f.counts, f.err
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleEvents() []models.WakeEvent {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return []models.WakeEvent{
		{Timestamp: ts, Slot: 2, Kind: models.WakeEventFailed, Reason: "interval", Error: "HTTP 429"},
		{Timestamp: ts.Add(-time.Hour), Slot: 1, Kind: models.WakeEventConfirmed, Reason: "times"},
	}
}

// collect runs cmd and flattens batches into their messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		msgs = append(msgs, collect(c)...)
	}
	return msgs
}

func TestNew(t *testing.T) {
	m := New(app.NewState(), nil)
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.days() != 7 {
		t.Errorf("default range = %d days, want 7", m.days())
	}
}

func TestModel_Init(t *testing.T) {
	src := &fakeSource{counts: map[models.WakeEventKind]int{models.WakeEventSent: 3}}
	m := New(app.NewState(), src)

	var sawRefresh, sawCounts bool
	for _, msg := range collect(m.Init()) {
		switch msg := msg.(type) {
		case app.RefreshMsg:
			sawRefresh = msg.Resource == "history"
		case countsLoadedMsg:
			sawCounts = msg.days == 7
		}
	}
	if !sawRefresh {
		t.Error("Init should request the event log")
	}
	if !sawCounts {
		t.Error("Init should load counts for the default range")
	}
}

func TestModel_InitWithoutSource(t *testing.T) {
	m := New(app.NewState(), nil)
	msgs := collect(m.Init())
	if len(msgs) != 1 {
		t.Fatalf("expected only the refresh request, got %v", msgs)
	}
	if m.loading {
		t.Error("should not be loading without a source")
	}
}

func TestModel_ToggleRange(t *testing.T) {
	src := &fakeSource{}
	m := New(app.NewState(), src)

	for _, want := range []int{30, 1, 7} {
		_, cmd := m.Update(keyRunes("t"))
		msg := cmd()
		if loaded, ok := msg.(countsLoadedMsg); !ok || loaded.days != want {
			t.Errorf("got %#v, want counts for %d days", msg, want)
		}
	}
}

func TestModel_StaleCountsIgnored(t *testing.T) {
	m := New(app.NewState(), &fakeSource{})
	m.Update(countsLoadedMsg{days: 30, counts: map[models.WakeEventKind]int{models.WakeEventSent: 1}})
	if m.counts != nil {
		t.Error("counts for another range should be ignored")
	}
}

func TestModel_CountsError(t *testing.T) {
	m := New(app.NewState(), &fakeSource{err: errors.New("db locked")})
	m.SetSize(100, 30)

	msg := m.loadCountsCmd()()
	_, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatal("error should produce a notification")
	}
	note, ok := cmd().(app.AddNotificationMsg)
	if !ok || note.Type != app.NotificationError {
		t.Errorf("unexpected notification %#v", note)
	}
	if !strings.Contains(ansi.Strip(m.View()), "db locked") {
		t.Error("view should show the error")
	}
}

func TestModel_WakeActivityReloads(t *testing.T) {
	src := &fakeSource{}
	m := New(app.NewState(), src)

	_, cmd := m.Update(app.ServiceEventMsg{Event: services.WakeActivityEvent{}})
	if cmd == nil {
		t.Fatal("wake activity should reload counts")
	}

	_, cmd = m.Update(app.ServiceEventMsg{Event: services.WakeActivityEvent{}})
	if cmd != nil {
		t.Error("should not reload while a load is in flight")
	}
}

func TestModel_TabSwitchReloads(t *testing.T) {
	src := &fakeSource{}
	m := New(app.NewState(), src)

	_, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabHistory})
	if cmd == nil {
		t.Fatal("visiting the tab should reload counts")
	}
	cmd()
	if len(src.days) != 1 {
		t.Errorf("WakeCounts calls = %v", src.days)
	}
}

func TestModel_View(t *testing.T) {
	state := app.NewState()
	state.SetWakeEvents(sampleEvents())

	m := New(state, &fakeSource{})
	m.SetSize(120, 60)

	view := ansi.Strip(m.View())
	for _, want := range []string{"Wake History", "Last 7 days", "HTTP 429", "interval"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(countsLoadedMsg{days: 7, counts: map[models.WakeEventKind]int{
		models.WakeEventSent:      4,
		models.WakeEventConfirmed: 2,
	}})
	view = ansi.Strip(m.View())
	if !strings.Contains(view, "sent │") || !strings.Contains(view, "Updated") {
		t.Error("view should show the count chart")
	}
}

func TestModel_FilterSelectedSlot(t *testing.T) {
	state := app.NewState()
	state.SetWakeEvents(sampleEvents())
	state.SetSelectedSlot(0)

	m := New(state, nil)
	if len(m.visibleEvents()) != 2 {
		t.Fatal("all events should be visible by default")
	}

	m.Update(keyRunes("f"))
	events := m.visibleEvents()
	if len(events) != 1 || events[0].Slot != 1 {
		t.Errorf("filtered events = %v", events)
	}

	m.SetSize(120, 40)
	if !strings.Contains(ansi.Strip(m.View()), "Recent Events (k1)") {
		t.Error("view should name the filtered slot")
	}
}

func TestEventLine(t *testing.T) {
	line := ansi.Strip(eventLine(sampleEvents()[0]))
	if !strings.Contains(line, "k2") || !strings.Contains(line, "failed") || !strings.HasSuffix(line, "interval  HTTP 429") {
		t.Errorf("eventLine = %q", line)
	}
}

func TestRangeLabel(t *testing.T) {
	if got := rangeLabel(1); got != "Last 24 hours" {
		t.Errorf("rangeLabel(1) = %q", got)
	}
	if got := rangeLabel(30); got != "Last 30 days" {
		t.Errorf("rangeLabel(30) = %q", got)
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil)
	if len(m.ShortHelp()) != 3 || len(m.FullHelp()) != 2 {
		t.Error("unexpected help bindings")
	}
}
