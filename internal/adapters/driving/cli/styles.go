package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared by command output.
var (
	colourPrimary   = lipgloss.Color("#7C3AED")
	colourSecondary = lipgloss.Color("#06B6D4")
	colourMuted     = lipgloss.Color("#6C7086")
	colourSuccess   = lipgloss.Color("#A6E3A1")
	colourWarning   = lipgloss.Color("#F9E2AF")
	colourError     = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colourSecondary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colourMuted).
			Padding(0, 1)
)

// title renders a section title with an underline of matching width.
func title(s string) string {
	return titleStyle.Render(s) + "\n" + mutedStyle.Render(strings.Repeat("=", lipgloss.Width(s)))
}

// keyValue renders an aligned "key: value" line.
func keyValue(key string, value any) string {
	return fmt.Sprintf("  %s %v", mutedStyle.Render(fmt.Sprintf("%-16s", key+":")), value)
}

// truncate shortens s to n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
