package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/glm-tray/internal/models"
	"github.com/j-veylop/glm-tray/internal/ui/components"
	"github.com/j-veylop/glm-tray/internal/ui/styles"
)

// countOrder is the display order of the count chart.
var countOrder = []models.WakeEventKind{
	models.WakeEventSent,
	models.WakeEventConfirmed,
	models.WakeEventUnconfirmed,
	models.WakeEventFailed,
	models.WakeEventWarmup,
	models.WakeEventWarmupFailed,
	models.WakeEventAutoDisabled,
	models.WakeEventSlotDisabled,
}

// View renders the history tab.
func (m *Model) View() string {
	if m.errorMsg != "" {
		return m.renderError()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderCounts(),
		"",
		m.renderEvents(),
	)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderError() string {
	content := fmt.Sprintf("%s %s",
		styles.ErrorTextStyle.Render("Error:"),
		m.errorMsg,
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("Wake History")

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", rangeLabel(m.days())))

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if !m.lastRefresh.IsZero() {
		subtitle = styles.HelpStyle.Render("Updated " + m.lastRefresh.Format("15:04:05"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func rangeLabel(days int) string {
	if days == 1 {
		return "Last 24 hours"
	}
	return fmt.Sprintf("Last %d days", days)
}

func (m *Model) renderCounts() string {
	cardWidth := max(m.width-6, 40)

	rows := []string{styles.CardTitleStyle.Render("Wake Activity"), ""}

	switch {
	case m.loading && m.counts == nil:
		rows = append(rows, styles.HelpStyle.Render("  Loading..."))
	case len(m.counts) == 0:
		rows = append(rows, styles.HelpStyle.Render("  No wake activity in this range"))
	default:
		values := make([]float64, 0, len(countOrder))
		labels := make([]string, 0, len(countOrder))
		for _, kind := range countOrder {
			values = append(values, float64(m.counts[kind]))
			labels = append(labels, string(kind))
		}
		chart := components.RenderBarChart(values, labels, max(cardWidth-8, 30))
		for line := range strings.SplitSeq(chart, "\n") {
			rows = append(rows, "  "+line)
		}
	}

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderEvents() string {
	title := "Recent Events"
	if m.slotOnly {
		title = fmt.Sprintf("Recent Events (%s)", models.SlotLabel(m.state.GetSelectedSlot()+1))
	}
	rows := []string{styles.CardTitleStyle.Render(title), ""}

	events := m.visibleEvents()
	if len(events) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No wake events recorded yet."))
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	for _, e := range events {
		rows = append(rows, "  "+eventLine(e))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// eventLine renders one wake event as a log line.
func eventLine(e models.WakeEvent) string {
	line := fmt.Sprintf("%s  %-3s  %s",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		models.SlotLabel(e.Slot),
		kindStyle(e.Kind).Render(fmt.Sprintf("%-18s", e.Kind)),
	)
	if e.Reason != "" {
		line += "  " + e.Reason
	}
	if e.Error != "" {
		line += "  " + styles.ErrorTextStyle.Render(e.Error)
	}
	return line
}

func kindStyle(kind models.WakeEventKind) lipgloss.Style {
	switch kind {
	case models.WakeEventConfirmed, models.WakeEventWarmup:
		return styles.SuccessTextStyle
	case models.WakeEventFailed, models.WakeEventWarmupFailed:
		return styles.ErrorTextStyle
	case models.WakeEventAutoDisabled, models.WakeEventSlotDisabled:
		return styles.DisabledStyle
	case models.WakeEventUnconfirmed:
		return styles.WarningTextStyle
	default:
		return styles.InfoTextStyle
	}
}
