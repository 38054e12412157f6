package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/depdeck/depdeck/pkg/project"
)

// ProjectDelegate renders project rows in the list.
// Layout: [sel] [mark] [status-badge] [name...] [outdated] [deps] [checked]
type ProjectDelegate struct {
	Theme Theme
	// Spinner is the current spinner frame, substituted for the status badge
	// of projects mid-check.
	Spinner string
}

func (d ProjectDelegate) Height() int {
	return 1
}

func (d ProjectDelegate) Spacing() int {
	return 0
}

func (d ProjectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

func (d ProjectDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(ProjectItem)
	if !ok {
		return
	}

	t := d.Theme
	width := m.Width()
	if width <= 0 {
		width = 80
	}
	// Keep off the exact edge so the terminal never wraps the row.
	width--

	isSelected := index == m.Index()
	status := item.Project.Status()

	var left strings.Builder

	if isSelected {
		left.WriteString(t.PrimaryBold.Render("▸ "))
	} else {
		left.WriteString("  ")
	}

	if item.Marked {
		left.WriteString(t.SuccessText.Render("◉ "))
	} else {
		left.WriteString(t.MutedText.Render("○ "))
	}

	badge := RenderStatusBadge(status)
	if status == project.Checking && d.Spinner != "" {
		badge = t.InfoText.Render(d.Spinner + "   ")
	}
	left.WriteString(badge)
	left.WriteString(" ")

	// Right columns: outdated count, dep count, last-checked age.
	var rightParts []string
	rightWidth := 0
	if width > 60 {
		age := lastCheckedAge(item.Project)
		rightParts = append(rightParts, t.MutedText.Render(fmt.Sprintf("%8s", age)))
		rightWidth += 9

		depStr := fmt.Sprintf("%3d deps", len(item.Project.Dependencies))
		rightParts = append(rightParts, t.SecondaryText.Render(depStr))
		rightWidth += len(depStr) + 1
	}
	if outdated := len(item.Project.Outdated()); outdated > 0 {
		upStr := fmt.Sprintf("↑%d", outdated)
		rightParts = append(rightParts, t.WarningText.Bold(true).Render(upStr))
		rightWidth += lipgloss.Width(upStr) + 1
	}

	leftFixed := lipgloss.Width(left.String())
	nameWidth := width - leftFixed - rightWidth - 2
	if nameWidth < 5 {
		nameWidth = 5
	}

	name := truncateRunesHelper(item.Project.Name, nameWidth, "…")
	name = padRight(name, nameWidth)

	nameStyle := t.Renderer.NewStyle()
	if isSelected {
		nameStyle = nameStyle.Foreground(t.Primary).Bold(true)
	} else {
		nameStyle = nameStyle.Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#E8E8E8"})
	}
	left.WriteString(nameStyle.Render(name))

	rightSide := strings.Join(rightParts, " ")

	padding := width - lipgloss.Width(left.String()) - lipgloss.Width(rightSide)
	if padding < 0 {
		padding = 0
	}
	row := left.String() + strings.Repeat(" ", padding) + rightSide

	rowStyle := t.Renderer.NewStyle().Width(width).MaxWidth(width)
	if isSelected {
		row = rowStyle.Background(t.Highlight).Render(row)
	} else {
		row = rowStyle.Render(row)
	}

	fmt.Fprint(w, row)
}

// lastCheckedAge returns the relative age of the most recent dependency
// check, or "never".
func lastCheckedAge(p project.Project) string {
	var last time.Time
	for _, d := range p.Dependencies {
		if d.LastChecked.After(last) {
			last = d.LastChecked
		}
	}
	return FormatTimeRel(last)
}
