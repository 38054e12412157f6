package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/depdeck/depdeck/pkg/project"
)

// Adaptive color palette, light mode tuned for contrast on white backgrounds.
var (
	ColorBg          = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorBgSubtle    = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	// Status badge backgrounds, subtle so the label carries the color.
	ColorUncheckedBg  = lipgloss.AdaptiveColor{Light: "#E2E3E5", Dark: "#2A2A3D"}
	ColorCheckingBg   = lipgloss.AdaptiveColor{Light: "#D1ECF1", Dark: "#1A3344"}
	ColorHasUpdatesBg = lipgloss.AdaptiveColor{Light: "#FFE8CC", Dark: "#3D2A1A"}
	ColorUpToDateBg   = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
)

var (
	// PanelStyle is the default style for unfocused panels.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBgHighlight)

	// FocusedPanelStyle is the style for focused panels.
	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)
)

// RenderStatusBadge returns a styled aggregate status badge. All labels are
// four cells so rows align.
func RenderStatusBadge(status project.AggregateStatus) string {
	var fg, bg lipgloss.AdaptiveColor
	var label string

	switch status {
	case project.Checking:
		fg, bg, label = ColorInfo, ColorCheckingBg, "CHEK"
	case project.HasUpdates:
		fg, bg, label = ColorWarning, ColorHasUpdatesBg, "UPDS"
	case project.UpToDate:
		fg, bg, label = ColorSuccess, ColorUpToDateBg, "OKAY"
	default:
		fg, bg, label = ColorMuted, ColorUncheckedBg, "----"
	}

	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		Render(label)
}

// RenderExitBadge renders a run's exit status.
func RenderExitBadge(exitCode int) string {
	if exitCode == 0 {
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render("ok")
	}
	return lipgloss.NewStyle().Foreground(ColorDanger).Bold(true).Render("fail")
}

// RenderDivider renders a horizontal divider line.
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}
