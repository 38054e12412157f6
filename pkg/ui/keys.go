package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/depdeck/depdeck/pkg/updates"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.focused {
	case focusWizard:
		return m.handleWizardKey(msg)
	case focusSettings:
		return m.handleSettingsKey(msg)
	case focusTabs:
		return m.handleTabsKey(msg)
	case focusHelp:
		return m.handleHelpKey(msg)
	case focusPrompt:
		return m.handlePromptKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While the list's filter input is active every key belongs to it.
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.Close()
		m.quitting = true
		return m, tea.Quit

	case " ":
		// Toggling with nothing highlighted is a no-op, not an error.
		if p, ok := m.highlighted(); ok {
			if m.marked[p.Name] {
				delete(m.marked, p.Name)
			} else {
				m.marked[p.Name] = true
			}
			m.rebuildList()
		}
		return m, nil

	case "c":
		// User-initiated check jumps ahead of background scanning.
		if p, ok := m.highlighted(); ok {
			m.queue.Add(updates.Task{Project: p.Name, Priority: true})
			return m, m.dispatchQueue()
		}
		return m, nil

	case "a":
		for _, p := range m.projects {
			m.queue.Add(updates.Task{Project: p.Name})
		}
		return m, m.dispatchQueue()

	case "u":
		return m, m.startUpdateWizard()

	case "s":
		m.modal = newSettingsState(m.settings)
		m.focused = focusSettings
		return m, nil

	case "t":
		m.startRun([]string{"go", "test", "./..."})
		return m, nil

	case "b":
		m.startRun([]string{"go", "build", "./..."})
		return m, nil

	case "v":
		m.startRun([]string{"go", "vet", "./..."})
		return m, nil

	case "g":
		m.startRun([]string{"go", "mod", "tidy"})
		return m, nil

	case ":":
		m.promptInput.SetValue("")
		m.promptInput.Focus()
		m.focused = focusPrompt
		return m, nil

	case "tab":
		if len(m.tabs) > 0 {
			m.focused = focusTabs
		}
		return m, nil

	case "x":
		if m.cache != nil {
			if err := m.cache.Clear(); err == nil {
				m.status = "check cache cleared"
			}
		}
		return m, nil

	case "?":
		m.openHelp()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	watchCmd := m.rearmWatcher()
	return m, tea.Batch(cmd, watchCmd)
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.promptInput.Blur()
		m.focused = focusList
		return m, nil
	case "enter":
		fields := strings.Fields(m.promptInput.Value())
		m.promptInput.Blur()
		m.focused = focusList
		if len(fields) > 0 {
			m.startRun(append([]string{"go"}, fields...))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m Model) handleHelpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "?":
		m.focused = focusList
		return m, nil
	}
	var cmd tea.Cmd
	m.helpVP, cmd = m.helpVP.Update(msg)
	return m, cmd
}
