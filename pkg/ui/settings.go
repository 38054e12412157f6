package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/depdeck/depdeck/pkg/config"
	"github.com/depdeck/depdeck/pkg/project"
	"github.com/depdeck/depdeck/pkg/updates"
)

const (
	settingsFieldTTL = iota
	settingsFieldBackground
	settingsFieldShowEmpty
	numSettingsFields
)

// settingsState is the settings modal's working copy. Edits apply to the
// live settings only on a successful save.
type settingsState struct {
	ttlInput   textinput.Model
	background bool
	showEmpty  bool
	field      int
	errMsg     string
}

func newSettingsState(s config.Settings) settingsState {
	ti := textinput.New()
	ti.CharLimit = 8
	ti.Width = 10
	ti.SetValue(strconv.Itoa(s.CacheTTLMinutes))
	ti.Focus()
	return settingsState{
		ttlInput:   ti,
		background: s.BackgroundUpdates,
		showEmpty:  s.UI.ShowEmptyProjects,
	}
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focused = focusList
		return m, nil

	case "tab", "down":
		m.modal.field = (m.modal.field + 1) % numSettingsFields
		m.syncSettingsFocus()
		return m, nil

	case "shift+tab", "up":
		m.modal.field = (m.modal.field + numSettingsFields - 1) % numSettingsFields
		m.syncSettingsFocus()
		return m, nil

	case " ":
		switch m.modal.field {
		case settingsFieldBackground:
			m.modal.background = !m.modal.background
			return m, nil
		case settingsFieldShowEmpty:
			m.modal.showEmpty = !m.modal.showEmpty
			return m, nil
		}

	case "enter":
		return m, m.saveSettings()
	}

	if m.modal.field == settingsFieldTTL {
		var cmd tea.Cmd
		m.modal.ttlInput, cmd = m.modal.ttlInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) syncSettingsFocus() {
	if m.modal.field == settingsFieldTTL {
		m.modal.ttlInput.Focus()
	} else {
		m.modal.ttlInput.Blur()
	}
}

// saveSettings validates and applies the modal. An invalid TTL blocks the
// save with an inline error. Newly enabling background updates seeds a
// non-priority task for every project whose cache is stale per the new TTL;
// disabling clears the queue and the checking flags outright.
func (m *Model) saveSettings() tea.Cmd {
	ttl, err := config.ValidateTTL(m.modal.ttlInput.Value())
	if err != nil {
		m.modal.errMsg = err.Error()
		return nil
	}
	m.modal.errMsg = ""

	wasEnabled := m.settings.BackgroundUpdates
	m.settings.CacheTTLMinutes = ttl
	m.settings.BackgroundUpdates = m.modal.background
	m.settings.UI.ShowEmptyProjects = m.modal.showEmpty

	if err := config.Save(m.settings); err != nil {
		m.modal.errMsg = "could not save: " + err.Error()
		return nil
	}

	var cmd tea.Cmd
	switch {
	case !wasEnabled && m.settings.BackgroundUpdates:
		for _, p := range m.projects {
			if m.checker.IsStale(p, m.settings.CacheTTL()) {
				m.queue.Add(updates.Task{Project: p.Name})
			}
		}
		cmd = m.dispatchQueue()

	case wasEnabled && !m.settings.BackgroundUpdates:
		m.queue.Clear()
		m.checking = make(map[string]bool)
		for i := range m.projects {
			for j := range m.projects[i].Dependencies {
				if m.projects[i].Dependencies[j].Status == project.StatusChecking {
					m.projects[i].Dependencies[j].Status = project.StatusNotChecked
				}
			}
		}
	}

	m.rebuildList()
	m.focused = focusList
	m.status = "settings saved"
	return cmd
}

func (m Model) settingsView() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Header.Render("Settings"))
	b.WriteString("\n\n")

	cursor := func(field int) string {
		if m.modal.field == field {
			return t.PrimaryBold.Render("▸ ")
		}
		return "  "
	}
	toggle := func(on bool) string {
		if on {
			return t.SuccessText.Render("[on] ")
		}
		return t.MutedText.Render("[off]")
	}

	b.WriteString(cursor(settingsFieldTTL))
	b.WriteString("Cache TTL (minutes): ")
	b.WriteString(m.modal.ttlInput.View())
	b.WriteString("\n")

	b.WriteString(cursor(settingsFieldBackground))
	b.WriteString("Background updates:  ")
	b.WriteString(toggle(m.modal.background))
	b.WriteString("\n")

	b.WriteString(cursor(settingsFieldShowEmpty))
	b.WriteString("Show empty projects: ")
	b.WriteString(toggle(m.modal.showEmpty))
	b.WriteString("\n")

	if m.modal.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(t.DangerText.Render("✗ " + m.modal.errMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(t.MutedText.Render("tab next · space toggle · enter save · esc cancel"))
	return b.String()
}
