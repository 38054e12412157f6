package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpText = `# depdeck

A dashboard for the Go module projects under your workspace root.

## Project list

| Key | Action |
|-----|--------|
| space | mark/unmark project for command runs |
| c | check highlighted project for updates (priority) |
| a | queue a background check for every project |
| u | open the update wizard |
| t / b / v / g | go test / build / vet / mod tidy on marked projects |
| : | run an arbitrary go subcommand |
| s | settings |
| x | clear the check cache |
| tab | switch to output tabs |
| q | quit |

## Update wizard

Select outdated dependencies with space, then press enter to run
` + "`go get`" + ` for exactly the selected ones, scoped to the wizard's
project. A fresh check follows automatically.

## Output tabs

Each command run streams into its own tab. Use left/right to switch,
y to copy the buffer to the clipboard, X to close a tab.
`

func (m *Model) openHelp() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	rendered := helpText
	if err == nil {
		if out, rerr := r.Render(helpText); rerr == nil {
			rendered = out
		}
	}
	m.helpVP.SetContent(rendered)
	m.helpVP.GotoTop()
	m.focused = focusHelp
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	var body string
	switch m.focused {
	case focusWizard:
		body = m.wizardView()
	case focusSettings:
		body = m.settingsView()
	case focusTabs:
		body = m.tabsView()
	case focusHelp:
		body = m.helpVP.View()
	default:
		body = m.list.View()
		if m.focused == focusPrompt {
			body += "\n" + m.theme.PrimaryBold.Render("go ") + m.promptInput.View()
		}
	}

	return body + "\n" + m.statusBar()
}

func (m Model) statusBar() string {
	t := m.theme

	var parts []string
	if n := len(m.checking); n > 0 {
		parts = append(parts, t.InfoText.Render(fmt.Sprintf("%s checking %d", spinnerFrames[m.spinnerIdx], n)))
	}
	if n := m.queue.Len(); n > 0 {
		parts = append(parts, t.MutedText.Render(fmt.Sprintf("%d queued", n)))
	}
	if n := len(m.marked); n > 0 {
		parts = append(parts, t.SuccessText.Render(fmt.Sprintf("%d marked", n)))
	}
	if m.status != "" {
		parts = append(parts, t.SecondaryText.Render(m.status))
	}
	parts = append(parts, t.MutedText.Render("? help"))

	return strings.Join(parts, t.MutedText.Render(" · "))
}
