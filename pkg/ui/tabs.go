package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// maxTabLines caps a tab's scrollback so a chatty run cannot grow without
// bound.
const maxTabLines = 5000

// outputTab is one command run's streaming output buffer.
type outputTab struct {
	runID     int
	command   string
	lines     []string
	vp        viewport.Model
	startedAt time.Time
	done      bool
	failed    int
}

func newOutputTab(runID int, command string, width, height int) *outputTab {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 20
	}
	return &outputTab{
		runID:     runID,
		command:   command,
		vp:        viewport.New(width, height),
		startedAt: time.Now(),
	}
}

func (t *outputTab) appendLine(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > maxTabLines {
		t.lines = t.lines[len(t.lines)-maxTabLines:]
	}
	atBottom := t.vp.AtBottom()
	t.vp.SetContent(strings.Join(t.lines, "\n"))
	if atBottom {
		t.vp.GotoBottom()
	}
}

func (t *outputTab) resize(width, height int) {
	t.vp.Width = width
	t.vp.Height = height
}

func (t *outputTab) content() string {
	return strings.Join(t.lines, "\n")
}

func (m Model) handleTabsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.tabs) == 0 {
		m.focused = focusList
		return m, nil
	}

	switch msg.String() {
	case "esc", "tab":
		m.focused = focusList
		return m, nil

	case "left", "h":
		if m.activeTab > 0 {
			m.activeTab--
		}
		return m, nil

	case "right", "l":
		if m.activeTab < len(m.tabs)-1 {
			m.activeTab++
		}
		return m, nil

	case "y":
		// Yank the active tab's buffer; clipboard failure is silent.
		if t := m.currentTab(); t != nil {
			if err := clipboard.WriteAll(t.content()); err == nil {
				m.status = "output copied"
			}
		}
		return m, nil

	case "X":
		m.closeActiveTab()
		return m, nil
	}

	if t := m.currentTab(); t != nil {
		var cmd tea.Cmd
		t.vp, cmd = t.vp.Update(msg)
		return m, cmd
	}
	return m, nil
}

// currentTab returns the active tab, or nil when the index is stale.
func (m *Model) currentTab() *outputTab {
	if m.activeTab < 0 || m.activeTab >= len(m.tabs) {
		return nil
	}
	return m.tabs[m.activeTab]
}

func (m *Model) closeActiveTab() {
	if m.activeTab < 0 || m.activeTab >= len(m.tabs) {
		return
	}
	m.tabs = append(m.tabs[:m.activeTab], m.tabs[m.activeTab+1:]...)
	if m.activeTab >= len(m.tabs) {
		m.activeTab = len(m.tabs) - 1
	}
	if len(m.tabs) == 0 {
		m.activeTab = 0
		m.focused = focusList
	}
}

func (m Model) tabsView() string {
	t := m.theme
	var b strings.Builder

	var labels []string
	for i, tab := range m.tabs {
		label := fmt.Sprintf(" %d:%s ", i+1, truncateRunesHelper(tab.command, 24, "…"))
		if i == m.activeTab {
			labels = append(labels, t.Header.Render(label))
		} else {
			labels = append(labels, t.MutedText.Render(label))
		}
	}
	b.WriteString(strings.Join(labels, " "))
	b.WriteString("\n")
	b.WriteString(RenderDivider(m.width))
	b.WriteString("\n")

	tab := m.currentTab()
	if tab == nil {
		b.WriteString(t.MutedText.Render("no runs yet"))
		return b.String()
	}

	b.WriteString(tab.vp.View())
	b.WriteString("\n")

	state := t.InfoText.Render(spinnerFrames[m.spinnerIdx] + " running")
	if tab.done {
		state = RenderExitBadge(tab.failed)
	}
	b.WriteString(fmt.Sprintf("%s  %s  %s", state,
		t.SecondaryText.Render(tab.command),
		t.MutedText.Render("y yank · X close · esc back")))
	return b.String()
}
