// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/ui/styles"
)

// Gradient endpoints: usage goes from green to red, window time from yellow to purple.
const (
	usageFrom  = "#51cf66"
	usageTo    = "#ff6b6b"
	windowFrom = "#ffd93d"
	windowTo   = "#6c5ce7"
)

// UsageBar renders a wide quota usage meter.
type UsageBar struct {
	progress progress.Model
}

// NewUsageBar creates a usage meter of the given bar width.
func NewUsageBar(width int) UsageBar {
	p := progress.New(
		progress.WithScaledGradient(usageFrom, usageTo),
		progress.WithWidth(max(width, 10)),
		progress.WithoutPercentage(),
	)
	return UsageBar{progress: p}
}

// SetWidth sets the bar width.
func (u *UsageBar) SetWidth(width int) {
	u.progress.Width = max(width, 10)
}

// View renders the bar for a usage percentage. A nil percentage renders as unknown.
func (u UsageBar) View(percent *int) string {
	if percent == nil {
		empty := lipgloss.NewStyle().Foreground(styles.Subtle).Render(strings.Repeat("░", u.progress.Width))
		return empty + " " + styles.HelpStyle.Width(6).Align(lipgloss.Right).Render("n/a")
	}

	p := clampPercent(float64(*percent))
	pct := styles.GetUsageStyle(p).Width(6).Align(lipgloss.Right).Render(fmt.Sprintf("%.0f%%", p))
	return u.progress.ViewAs(p/100) + " " + pct
}

// RenderWindowBar renders how much of a quota window has elapsed before reset.
func RenderWindowBar(reset, now time.Time, window time.Duration, width int) string {
	if window <= 0 {
		return renderBar(0, width, windowFrom, windowTo)
	}
	remaining := reset.Sub(now)
	elapsed := 1 - float64(remaining)/float64(window)
	return renderBar(min(max(elapsed, 0), 1), width, windowFrom, windowTo)
}

// FormatRemaining renders the time until t as "1h 05m", or "now" when it has passed.
func FormatRemaining(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
}

func renderBar(fraction float64, width int, fromHex, toHex string) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*fraction), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(fromHex, toHex, t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
