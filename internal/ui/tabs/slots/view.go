package slots

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/ui/components"
	"github.com/j-veylop/glm-tray/internal/ui/styles"
)

// quotaWindow is the length of the rolling quota window the reset timer counts down.
const quotaWindow = 5 * time.Hour

// View renders the slots tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return styles.CenterBoth(styles.HelpStyle.Render("Loading slots..."), m.width, m.height)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.table.View(),
		"",
		m.renderDetail(),
	)

	return styles.DocStyle.Render(content)
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("GLM Quota Slots")
	state := "stopped"
	if m.state.IsMonitoring() {
		state = "active"
	}
	subtitle := styles.HelpStyle.Render(fmt.Sprintf("Monitoring %s. Modes: I interval, T times, R after reset.", state))
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// renderDetail renders the card for the selected slot.
func (m *Model) renderDetail() string {
	idx := m.table.Cursor()
	status := m.state.GetStatus()
	if idx < 0 || idx >= len(status.Slots) {
		return ""
	}
	st := status.Slots[idx]
	cfg, ok := m.state.SlotConfig(st.Slot)
	if !ok {
		cfg = models.DefaultSlot(st.Slot)
	}
	now := m.now()

	cardWidth := max(m.width-6, 40)

	rows := []string{
		fmt.Sprintf("%s %s",
			lipgloss.NewStyle().Foreground(styles.Primary).Render("◈"),
			styles.CardTitleStyle.Render(fmt.Sprintf("Slot %d: %s", st.Slot, cfg.Label()))),
		"",
		row("Usage", m.usageBar.View(st.Percentage)),
	}

	if st.LastUpdatedEpochMs != nil && *st.LastUpdatedEpochMs > 0 {
		reset := time.UnixMilli(*st.LastUpdatedEpochMs)
		rows = append(rows,
			row("Window", components.RenderWindowBar(reset, now, quotaWindow, max(cardWidth-30, 10))),
			row("Resets", fmt.Sprintf("%s (in %s)", st.NextResetHMS, components.FormatRemaining(reset, now))),
		)
	} else {
		rows = append(rows, row("Resets", styles.HelpStyle.Render("no active timer")))
	}

	rows = append(rows, row("Wake modes", describeModes(cfg)))
	if m.source != nil {
		if next := m.source.NextWake(st.Slot); !next.IsZero() {
			rows = append(rows, row("Next wake", fmt.Sprintf("%s (in %s)",
				next.Local().Format("15:04:05"), components.FormatRemaining(next, now))))
		}
	}

	rows = append(rows, row("State", renderState(st, cfg)))
	if st.QuotaConsecutiveErrors > 0 || st.WakeConsecutiveErrors > 0 {
		rows = append(rows, row("Errors", fmt.Sprintf("quota x%d, wake x%d",
			st.QuotaConsecutiveErrors, st.WakeConsecutiveErrors)))
	}
	if st.LastError != "" {
		rows = append(rows, row("Last error", styles.ErrorTextStyle.Render(st.LastError)))
	}

	rows = append(rows, "", m.renderChart(cardWidth))

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderChart(width int) string {
	if m.usageErr != nil {
		return styles.ErrorTextStyle.Render("Usage history unavailable: " + m.usageErr.Error())
	}
	caption := fmt.Sprintf("avg usage %% per hour, last %dh", m.hours())
	return components.RenderLineChart(components.UsageSeries(m.usage), width-14, 6, caption)
}

func row(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func renderState(st models.SlotRuntimeStatus, cfg models.SlotConfig) string {
	text := statusText(st, cfg)
	switch {
	case st.AutoDisabled, st.WakeAutoDisabled:
		return styles.DisabledStyle.Render(text)
	case st.QuotaConsecutiveErrors > 0:
		return styles.WarningTextStyle.Render(text)
	case st.WakePending:
		return styles.InfoTextStyle.Render(text)
	case st.Enabled:
		return styles.SuccessTextStyle.Render(text)
	default:
		return styles.HelpStyle.Render(text)
	}
}

// describeModes spells out the enabled wake modes of a slot.
func describeModes(cfg models.SlotConfig) string {
	var modes []string
	if cfg.ScheduleIntervalEnabled {
		modes = append(modes, fmt.Sprintf("every %dm", cfg.ScheduleIntervalMinutes))
	}
	if cfg.ScheduleTimesEnabled && len(cfg.ScheduleTimes) > 0 {
		modes = append(modes, "at "+strings.Join(cfg.ScheduleTimes, ", "))
	}
	if cfg.ScheduleAfterResetEnabled {
		modes = append(modes, fmt.Sprintf("%dm after reset", cfg.ScheduleAfterResetMinutes))
	}
	if len(modes) == 0 {
		return "none"
	}
	return strings.Join(modes, "; ")
}
