package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("37")) // dark green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")) // purple
)

var symbols = map[string]string{
	"pass":    "✓",
	"fail":    "✗",
	"warning": "!",
	"arrow":   "→",
}

func fSuccess(text string) string { return successStyle.Render(text) }
func fError(text string) string   { return errorStyle.Render(text) }
func fWarning(text string) string { return warningStyle.Render(text) }
func fDetail(text string) string  { return detailStyle.Render(text) }

// formatBytes renders n with a binary unit.
func formatBytes(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
