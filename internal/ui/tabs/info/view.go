package info

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/glm-tray/internal/tray"
	"github.com/j-veylop/glm-tray/internal/ui/styles"
	"github.com/j-veylop/glm-tray/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderPolicyCard(),
		m.renderTrayCard(),
		m.renderAboutCard(),
	)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

// renderConfigCard renders the file locations card.
func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	if m.options != nil {
		// Same precedence the dashboard logger uses.
		logDir := m.options.LogDir
		if logDir == "" {
			logDir = m.state.GetSettings().LogDirectory
		}
		if logDir == "" {
			logDir = filepath.Join(m.options.ConfigDir, "logs")
		}
		rows = append(rows,
			renderRow("Settings File", m.options.SettingsPath),
			renderRow("Database", m.options.DatabasePath),
			renderRow("Log Directory", logDir),
			renderRow("Log Level", m.options.LogLevel),
			renderRow("Debug", strconv.FormatBool(m.options.Debug)),
		)
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	rows = append(rows, "", styles.HelpStyle.Render("Edit the settings file to change slots; it is reloaded automatically."))

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderPolicyCard renders the engine limits from the settings file.
func (m *Model) renderPolicyCard() string {
	settings := m.state.GetSettings()

	rows := []string{
		styles.CardTitleStyle.Render("Limits"),
		"",
		renderRow("Max Errors", strconv.Itoa(settings.MaxConsecutiveErrors)),
		renderRow("Poll Backoff Cap", fmt.Sprintf("%d min", settings.QuotaPollBackoffCapMinutes)),
		renderRow("Wake Retry Window", fmt.Sprintf("%d min", settings.WakeQuotaRetryWindowMinutes)),
		renderRow("History Retention", fmt.Sprintf("%d days", settings.MaxLogDays)),
		renderRow("Quota URL", settings.GlobalQuotaURL),
		renderRow("Request URL", settings.GlobalRequestURL),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderTrayCard shows the tooltip text and alert state a tray icon would carry.
func (m *Model) renderTrayCard() string {
	summary := m.state.GetSummary()

	alert := styles.SuccessTextStyle.Render("none")
	if summary.Alert {
		alert = styles.ErrorTextStyle.Render(summary.AlertReason)
	}

	tooltip := summary.Tooltip()
	if tooltip == "" {
		tooltip = tray.IdleLine
	}

	rows := []string{
		styles.CardTitleStyle.Render("Tray"),
		"",
		renderRow("Alert", alert),
		"",
		styles.HelpStyle.Render(tooltip),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderRow renders a key-value row.
func renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(20).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// renderAboutCard renders the version information card.
func (m *Model) renderAboutCard() string {
	active := 0
	for _, slot := range m.state.GetSettings().Slots {
		if slot.Active() {
			active++
		}
	}

	rows := []string{
		styles.CardTitleStyle.Render("About " + version.AppName),
		"",
		renderRow("Version", version.GetVersion()),
		renderRow("Build Date", version.GetDate()),
		renderRow("Git Commit", version.GetCommit()),
		renderRow("Go Version", runtime.Version()),
		renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
		"",
		fmt.Sprintf("Active slots: %s", styles.InfoTextStyle.Render(strconv.Itoa(active))),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}
