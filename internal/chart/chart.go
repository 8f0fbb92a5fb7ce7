// Package chart renders daily series as horizontal bar charts for terminals.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/calendar"
)

const (
	colorAccent = "#7C3AED"
	colorMuted  = "#6D7383"
	colorTitle  = "#A78BFA"

	// DefaultWidth is the bar length used for the busiest day.
	DefaultWidth = 40
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorTitle)).MarginBottom(1)
	dateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)).Italic(true)
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(colorMuted)).Padding(0, 1)
)

// Render draws one row per day: the date as MM/DD, a bar scaled to the
// busiest day and the hours with one decimal. Days without activity get no
// label.
func Render(title string, series []calendar.DailyDuration, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if len(series) == 0 {
		b.WriteString(emptyStyle.Render("No activity"))
		return frameStyle.Render(b.String())
	}

	var maxHours float64
	for _, d := range series {
		maxHours = math.Max(maxHours, d.Duration.Hours())
	}

	rows := make([]string, 0, len(series))
	for _, d := range series {
		hours := d.Duration.Hours()
		n := 0
		if maxHours > 0 && hours > 0 {
			n = int(math.Round(hours / maxHours * float64(width)))
			if n == 0 {
				n = 1
			}
		}

		row := dateStyle.Render(d.Date.Format("01/02")) + " " + barStyle.Render(strings.Repeat("█", n))
		if hours > 0 {
			row += " " + fmt.Sprintf("%.1fh", hours)
		}
		rows = append(rows, row)
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))

	return frameStyle.Render(b.String())
}
