// Package ui is the Bubble Tea shell around the update-checking core. The
// Model's Update method is the single reducer: every user action and every
// async completion arrives as a message, all state mutation happens here, and
// long-running work only ever communicates back through messages.
package ui

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/depdeck/depdeck/internal/history"
	"github.com/depdeck/depdeck/pkg/checkcache"
	"github.com/depdeck/depdeck/pkg/config"
	"github.com/depdeck/depdeck/pkg/discover"
	"github.com/depdeck/depdeck/pkg/project"
	"github.com/depdeck/depdeck/pkg/runner"
	"github.com/depdeck/depdeck/pkg/updates"
	"github.com/depdeck/depdeck/pkg/watcher"
)

// focus represents which UI element has keyboard focus.
type focus int

const (
	focusList focus = iota
	focusWizard
	focusSettings
	focusTabs
	focusHelp
	focusPrompt
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives the spinner while checks are in flight.
type tickMsg struct{}

// queueKickMsg asks the reducer to pull the next background task. Sent from
// Init because commands cannot mutate the model directly.
type queueKickMsg struct{}

// FileChangedMsg is sent when the watched lock file changes on disk.
type FileChangedMsg struct {
	Project string
}

// ReadyTimeoutMsg unblocks the UI if the terminal never reports its size.
type ReadyTimeoutMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// ReadyTimeoutCmd sends ReadyTimeoutMsg after a short delay so the TUI does
// not hang on slow terminals (tmux, SSH) that delay WindowSizeMsg.
func ReadyTimeoutCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return ReadyTimeoutMsg{}
	})
}

// WatchFileCmd waits for the watcher to report a change.
func WatchFileCmd(w *watcher.Watcher, projectName string) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{Project: projectName}
	}
}

// Model is the main Bubble Tea model for depdeck.
type Model struct {
	// Canonical project list, the source of truth. The bubbles list holds a
	// derived, filtered view rebuilt after every mutation.
	projects []project.Project

	settings config.Settings
	theme    Theme

	checker *updates.Checker
	queue   *updates.Queue
	cache   *checkcache.Store
	run     *runner.Runner
	hist    *history.Store // nil disables run history
	// execRun dispatches a command run; defaults to run.Run.
	execRun func(runID int, argv []string, targets []project.Project)

	// marked is the multi-select set for command execution, keyed by
	// project name.
	marked map[string]bool

	// checking tracks projects with a check in flight; checked records that
	// a completion has arrived, so a late start signal for the same project
	// can never resurrect the "checking" state.
	checking map[string]bool
	checked  map[string]bool
	// queueProject owns the queue's single-flight slot ("" when idle).
	queueProject string

	wizard    wizardState
	modal     settingsState
	tabs      []*outputTab
	activeTab int
	nextRunID int

	watch        *watcher.Watcher
	watchProject string

	list        list.Model
	promptInput textinput.Model
	helpVP      viewport.Model

	focused    focus
	width      int
	height     int
	ready      bool
	spinnerIdx int
	status     string
	quitting   bool
}

// New builds the model from discovered projects and loaded settings. The
// history store may be nil.
func New(projects []project.Project, settings config.Settings, checker *updates.Checker, cache *checkcache.Store, hist *history.Store) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())

	delegate := ProjectDelegate{Theme: theme}
	l := list.New(nil, delegate, 0, 0)
	l.Title = "depdeck"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Placeholder = "go subcommand, e.g. test ./..."
	ti.CharLimit = 200

	m := Model{
		projects:    projects,
		settings:    settings,
		theme:       theme,
		checker:     checker,
		queue:       updates.NewQueue(),
		cache:       cache,
		run:         runner.New(),
		hist:        hist,
		marked:      make(map[string]bool),
		checking:    make(map[string]bool),
		checked:     make(map[string]bool),
		list:        l,
		promptInput: ti,
		focused:     focusList,
		nextRunID:   1,
	}
	m.modal = newSettingsState(settings)
	m.execRun = m.run.Run

	if settings.BackgroundUpdates {
		for _, p := range projects {
			m.queue.Add(updates.Task{Project: p.Name})
		}
	}

	m.rebuildList()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		ReadyTimeoutCmd(),
		updates.WaitForEventCmd(m.checker),
		runner.WaitForEventCmd(m.run),
		func() tea.Msg { return queueKickMsg{} },
	)
}

// Close releases the model's background resources.
func (m *Model) Close() {
	m.checker.Close()
	m.run.Close()
	if m.watch != nil {
		m.watch.Stop()
	}
	if m.hist != nil {
		m.hist.Close()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.list.SetSize(msg.Width, msg.Height-3)
		m.helpVP = viewport.New(msg.Width, msg.Height-3)
		for _, t := range m.tabs {
			t.resize(msg.Width, msg.Height-4)
		}
		return m, nil

	case ReadyTimeoutMsg:
		if !m.ready {
			m.ready = true
			if m.width == 0 {
				m.width, m.height = 80, 24
				m.list.SetSize(m.width, m.height-3)
			}
		}
		return m, nil

	case tickMsg:
		if len(m.checking) > 0 {
			m.spinnerIdx = (m.spinnerIdx + 1) % len(spinnerFrames)
			m.list.SetDelegate(ProjectDelegate{Theme: m.theme, Spinner: spinnerFrames[m.spinnerIdx]})
		}
		return m, tickCmd()

	case queueKickMsg:
		return m, m.dispatchQueue()

	case updates.CheckStartedMsg:
		cmds = append(cmds, updates.WaitForEventCmd(m.checker))
		// Never overwrite a completed result with "in progress": start and
		// completion events may arrive out of order.
		if !m.checked[msg.Project] {
			if i := m.findProject(msg.Project); i >= 0 {
				m.projects[i].MarkChecking()
				m.checking[msg.Project] = true
				m.rebuildList()
			}
		}
		return m, tea.Batch(cmds...)

	case updates.DependencyCheckedMsg:
		cmds = append(cmds, updates.WaitForEventCmd(m.checker))
		if i := m.findProject(msg.Project); i >= 0 {
			m.projects[i].MergeDependency(msg.Dependency)
			if m.wizard.locked == msg.Project {
				m.wizard.refresh(m.projects[i])
			}
			m.rebuildList()
		}
		return m, tea.Batch(cmds...)

	case updates.DependenciesCheckedMsg:
		cmds = append(cmds, updates.WaitForEventCmd(m.checker))
		cmds = append(cmds, m.applyCheckResult(msg))
		return m, tea.Batch(cmds...)

	case runner.OutputMsg:
		cmds = append(cmds, runner.WaitForEventCmd(m.run))
		if t := m.tabByRun(msg.RunID); t != nil {
			t.appendLine(msg.Project + " │ " + msg.Line)
		}
		return m, tea.Batch(cmds...)

	case runner.ProjectDoneMsg:
		cmds = append(cmds, runner.WaitForEventCmd(m.run))
		m.applyProjectDone(msg)
		return m, tea.Batch(cmds...)

	case runner.RunDoneMsg:
		cmds = append(cmds, runner.WaitForEventCmd(m.run))
		if t := m.tabByRun(msg.RunID); t != nil {
			t.done = true
			t.failed = msg.Failed
		}
		return m, tea.Batch(cmds...)

	case FileChangedMsg:
		// Lock content changed: the cached fingerprint no longer matches,
		// so drop the entry and schedule a recheck.
		if i := m.findProject(msg.Project); i >= 0 {
			if m.cache != nil {
				m.cache.Invalidate(m.projects[i].Path)
			}
			m.queue.Add(updates.Task{Project: msg.Project})
			cmds = append(cmds, m.dispatchQueue())
		}
		if m.watch != nil && m.watchProject == msg.Project {
			cmds = append(cmds, WatchFileCmd(m.watch, msg.Project))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// applyCheckResult is the batch-result transition: merge into the canonical
// list always, and into the wizard only when the lock matches. Returns the
// dispatch command for the next queued task, if any.
func (m *Model) applyCheckResult(msg updates.DependenciesCheckedMsg) tea.Cmd {
	m.checked[msg.Project] = true
	delete(m.checking, msg.Project)

	if i := m.findProject(msg.Project); i >= 0 {
		m.projects[i].MergeDependencies(msg.Dependencies)
		m.rebuildList()
	}

	if m.wizard.locked == msg.Project {
		if i := m.findProject(msg.Project); i >= 0 {
			m.wizard.refresh(m.projects[i])
		}
		m.wizard.cursor = 0
		m.wizard.checkInProgress = false
	}

	// Queue driver: completion frees the single-flight slot and pulls the
	// next task.
	if m.queueProject == msg.Project {
		m.queueProject = ""
		m.queue.Done()
		return m.dispatchQueue()
	}
	return nil
}

func (m *Model) applyProjectDone(msg runner.ProjectDoneMsg) {
	t := m.tabByRun(msg.RunID)
	if t == nil {
		return
	}
	if msg.Err != nil {
		t.appendLine(msg.Project + " │ error: " + msg.Err.Error())
	} else {
		t.appendLine(msg.Project + " │ exited with code " + strconv.Itoa(msg.ExitCode))
	}
	if m.hist != nil {
		_, err := m.hist.Record(history.Run{
			Project:    msg.Project,
			Command:    t.command,
			ExitCode:   msg.ExitCode,
			StartedAt:  t.startedAt,
			FinishedAt: time.Now(),
		})
		if err != nil {
			log.Printf("history: recording run for %s: %v", msg.Project, err)
		}
	}
}

// dispatchQueue pulls tasks until one is dispatched or the queue is empty.
// Tasks for projects that vanished complete immediately so the queue never
// stalls. Priority tasks are user-initiated and stream per-dep progress;
// plain background tasks run as a batch command whose single result message
// feeds back into the reducer.
func (m *Model) dispatchQueue() tea.Cmd {
	for {
		task, ok := m.queue.Next()
		if !ok {
			return nil
		}
		i := m.findProject(task.Project)
		if i < 0 {
			m.queue.Done()
			continue
		}

		m.queueProject = task.Project
		delete(m.checked, task.Project)
		m.checking[task.Project] = true
		m.projects[i].MarkChecking()
		m.rebuildList()

		opts := updates.CheckOptions{
			UseCache: true,
			TTL:      m.settings.CacheTTL(),
		}
		if task.Priority {
			m.checker.CheckStream(m.projects[i], opts)
			return nil
		}
		return m.checker.CheckCmd(m.projects[i], opts)
	}
}

// startDirectCheck bypasses the queue for a user-initiated fresh check of
// one project (RunUpdate's post-update refresh).
func (m *Model) startDirectCheck(name string, useCache bool) {
	i := m.findProject(name)
	if i < 0 {
		return
	}
	delete(m.checked, name)
	m.checking[name] = true
	m.projects[i].MarkChecking()
	m.rebuildList()
	m.checker.CheckStream(m.projects[i], updates.CheckOptions{
		UseCache: useCache,
		TTL:      m.settings.CacheTTL(),
	})
}

func (m *Model) findProject(name string) int {
	for i := range m.projects {
		if m.projects[i].Name == name {
			return i
		}
	}
	return -1
}

// highlighted returns the project under the list cursor.
func (m *Model) highlighted() (project.Project, bool) {
	item, ok := m.list.SelectedItem().(ProjectItem)
	if !ok {
		return project.Project{}, false
	}
	return item.Project, true
}

// targets returns the projects a command should run against: the marked set,
// or the highlighted project when nothing is marked.
func (m *Model) targets() []project.Project {
	var out []project.Project
	for _, p := range m.projects {
		if m.marked[p.Name] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		if p, ok := m.highlighted(); ok {
			out = append(out, p)
		}
	}
	return out
}

// rebuildList recomputes the derived view from the canonical list, keeping
// the cursor on the same project where possible.
func (m *Model) rebuildList() {
	var prevName string
	if item, ok := m.list.SelectedItem().(ProjectItem); ok {
		prevName = item.Project.Name
	}

	items := make([]list.Item, 0, len(m.projects))
	for _, p := range m.projects {
		if !m.settings.UI.ShowEmptyProjects && len(p.Dependencies) == 0 {
			continue
		}
		items = append(items, ProjectItem{Project: p, Marked: m.marked[p.Name]})
	}
	m.list.SetItems(items)

	if prevName != "" {
		for i, it := range items {
			if it.(ProjectItem).Project.Name == prevName {
				m.list.Select(i)
				break
			}
		}
	}
}

// startRun opens a tab and dispatches one process per target project.
func (m *Model) startRun(argv []string) {
	targets := m.targets()
	if len(argv) == 0 || len(targets) == 0 {
		return
	}

	runID := m.nextRunID
	m.nextRunID++

	t := newOutputTab(runID, strings.Join(argv, " "), m.width, m.height-4)
	if m.hist != nil {
		for _, p := range targets {
			if last, ok, err := m.hist.LastRun(p.Name); err == nil && ok {
				t.appendLine(p.Name + " │ last run: " + last.Command + " (" + FormatTimeRel(last.FinishedAt) + ")")
			}
		}
	}
	m.tabs = append(m.tabs, t)
	m.activeTab = len(m.tabs) - 1
	m.focused = focusTabs

	m.execRun(runID, argv, targets)
}

func (m *Model) tabByRun(runID int) *outputTab {
	for _, t := range m.tabs {
		if t.runID == runID {
			return t
		}
	}
	return nil
}

// rearmWatcher points the lock-file watcher at the highlighted project.
func (m *Model) rearmWatcher() tea.Cmd {
	p, ok := m.highlighted()
	if !ok || p.Name == m.watchProject {
		return nil
	}
	if m.watch != nil {
		m.watch.Stop()
		m.watch = nil
		m.watchProject = ""
	}
	w, err := watcher.New(discover.LockPath(p.Path))
	if err != nil || w.Start() != nil {
		return nil
	}
	m.watch = w
	m.watchProject = p.Name
	return WatchFileCmd(w, p.Name)
}

