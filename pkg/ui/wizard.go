package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/depdeck/depdeck/pkg/project"
	"github.com/depdeck/depdeck/pkg/updates"
)

// wizardState is the update wizard's lock. Created when the wizard opens,
// destroyed wholesale when it closes. While locked, only results for the
// locked project may touch these fields.
type wizardState struct {
	// locked is the project name captured at open ("" when not locked).
	locked   string
	outdated []project.Dependency
	selected map[string]bool
	cursor   int
	// checkInProgress is true while the wizard's own fresh check runs.
	checkInProgress bool
}

func (w *wizardState) reset() {
	*w = wizardState{}
}

// refresh recomputes the outdated list from the project's current data,
// clamping the cursor and keeping selections whose dependency still exists.
func (w *wizardState) refresh(p project.Project) {
	w.outdated = p.Outdated()
	if w.cursor >= len(w.outdated) {
		w.cursor = len(w.outdated) - 1
	}
	if w.cursor < 0 {
		w.cursor = 0
	}
	if w.selected != nil {
		still := make(map[string]bool, len(w.selected))
		for _, d := range w.outdated {
			if w.selected[d.Name] {
				still[d.Name] = true
			}
		}
		w.selected = still
	}
}

// startUpdateWizard locks the wizard to the highlighted project and
// pre-populates the outdated list from data the project already holds, so a
// just-finished background check shows immediately. Doing this eagerly
// closes the race where a result lands before the wizard's own start signal
// is processed. A priority fresh check is queued behind the populate.
func (m *Model) startUpdateWizard() tea.Cmd {
	m.wizard.reset()
	m.wizard.selected = make(map[string]bool)

	var cmd tea.Cmd
	p, ok := m.highlighted()
	if ok {
		m.wizard.locked = p.Name
		if i := m.findProject(p.Name); i >= 0 {
			m.wizard.refresh(m.projects[i])
		}
		m.wizard.checkInProgress = true
		m.queue.Add(updates.Task{Project: p.Name, Priority: true})
		cmd = m.dispatchQueue()
	}
	m.focused = focusWizard
	return cmd
}

// enterNormalMode closes the wizard, clearing every lock field
// unconditionally so no wizard state leaks into the next session.
func (m *Model) enterNormalMode() {
	m.wizard.reset()
	m.focused = focusList
}

func (m Model) handleWizardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.enterNormalMode()
		return m, nil

	case "up", "k":
		if m.wizard.cursor > 0 {
			m.wizard.cursor--
		}
		return m, nil

	case "down", "j":
		if m.wizard.cursor < len(m.wizard.outdated)-1 {
			m.wizard.cursor++
		}
		return m, nil

	case " ":
		m.toggleUpdateSelection()
		return m, nil

	case "A":
		for _, d := range m.wizard.outdated {
			m.wizard.selected[d.Name] = true
		}
		return m, nil

	case "enter":
		m.runUpdate()
		return m, nil
	}
	return m, nil
}

// toggleUpdateSelection flips membership of the highlighted dependency in
// the selection set; with nothing highlighted it is a no-op.
func (m *Model) toggleUpdateSelection() {
	if len(m.wizard.outdated) == 0 || m.wizard.cursor >= len(m.wizard.outdated) {
		return
	}
	name := m.wizard.outdated[m.wizard.cursor].Name
	if m.wizard.selected[name] {
		delete(m.wizard.selected, name)
	} else {
		m.wizard.selected[name] = true
	}
}

// runUpdate invokes `go get` for exactly the selected dependency names,
// scoped to the locked project alone: the command-execution mark set is
// narrowed to that project for the dispatch and restored afterwards. A
// fresh non-cached check follows so displayed versions catch up.
func (m *Model) runUpdate() {
	if len(m.wizard.selected) == 0 {
		return
	}
	locked := m.wizard.locked
	if m.findProject(locked) < 0 {
		m.enterNormalMode()
		return
	}

	argv := []string{"go", "get"}
	for _, d := range m.wizard.outdated {
		if !m.wizard.selected[d.Name] {
			continue
		}
		version := d.LatestVersion
		if version == "" {
			version = "latest"
		}
		argv = append(argv, d.Name+"@"+version)
	}

	prevMarked := m.marked
	m.marked = map[string]bool{locked: true}
	m.startRun(argv)
	m.marked = prevMarked
	m.rebuildList()

	m.wizard.reset()
	m.startDirectCheck(locked, false)
}

func (m Model) wizardView() string {
	t := m.theme
	var b strings.Builder

	title := "Update dependencies"
	if m.wizard.locked != "" {
		title += " — " + m.wizard.locked
	}
	b.WriteString(t.Header.Render(title))
	b.WriteString("\n\n")

	switch {
	case m.wizard.locked == "":
		b.WriteString(t.MutedText.Render("No project selected."))
	case len(m.wizard.outdated) == 0 && m.wizard.checkInProgress:
		b.WriteString(t.InfoText.Render(spinnerFrames[m.spinnerIdx] + " checking for updates..."))
	case len(m.wizard.outdated) == 0:
		b.WriteString(t.SuccessText.Render("Everything is up to date."))
	default:
		for i, d := range m.wizard.outdated {
			cursor := "  "
			if i == m.wizard.cursor {
				cursor = t.PrimaryBold.Render("▸ ")
			}
			check := "[ ]"
			if m.wizard.selected[d.Name] {
				check = t.SuccessText.Render("[x]")
			}
			latest := t.WarningText.Render(d.LatestVersion)
			if d.IsMajorUpdate() {
				latest = t.DangerText.Render(d.LatestVersion + " (major)")
			}
			line := fmt.Sprintf("%s%s %s  %s → %s", cursor, check,
				padRight(truncateRunesHelper(d.Name, 40, "…"), 40),
				d.CurrentVersion, latest)
			b.WriteString(line)
			b.WriteString("\n")
		}
		if m.wizard.checkInProgress {
			b.WriteString("\n")
			b.WriteString(t.InfoText.Render(spinnerFrames[m.spinnerIdx] + " refreshing..."))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(t.MutedText.Render("space select · A all · enter update · esc close"))
	return b.String()
}
