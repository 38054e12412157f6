// Package runner executes build-tool subcommands against target projects,
// one process per project, streaming line-oriented output back as Bubble Tea
// messages. Only plumbing lives here; scheduling belongs to the caller.
package runner

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/depdeck/depdeck/pkg/project"
)

const defaultEventBuffer = 256

// OutputMsg is one line of combined stdout/stderr from a running process.
type OutputMsg struct {
	RunID   int
	Project string
	Line    string
}

// ProjectDoneMsg signals one project's process finished.
type ProjectDoneMsg struct {
	RunID    int
	Project  string
	ExitCode int
	Err      error // start failures; a non-zero exit is not an error here
}

// RunDoneMsg signals every target of a run has finished.
type RunDoneMsg struct {
	RunID  int
	Failed int // count of projects with non-zero exit
}

// Runner owns the event channel shared by all runs.
type Runner struct {
	msgCh  chan tea.Msg
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Runner.
func New() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		msgCh:  make(chan tea.Msg, defaultEventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Events returns the channel runs deliver their messages on.
func (r *Runner) Events() <-chan tea.Msg {
	return r.msgCh
}

// Done is closed when the runner shuts down.
func (r *Runner) Done() <-chan struct{} {
	return r.ctx.Done()
}

// Close terminates all running processes.
func (r *Runner) Close() {
	r.cancel()
}

// Run executes argv (argv[0] is the binary) once per target project, in
// order, with the project directory as working directory. Lines stream as
// OutputMsg; each process ends with a ProjectDoneMsg and the whole run with
// a RunDoneMsg.
func (r *Runner) Run(runID int, argv []string, targets []project.Project) {
	go func() {
		failed := 0
		for _, p := range targets {
			if r.ctx.Err() != nil {
				return
			}
			code, err := r.runOne(runID, argv, p)
			if err != nil || code != 0 {
				failed++
			}
			r.send(ProjectDoneMsg{RunID: runID, Project: p.Name, ExitCode: code, Err: err})
		}
		r.send(RunDoneMsg{RunID: runID, Failed: failed})
	}()
}

func (r *Runner) runOne(runID int, argv []string, p project.Project) (int, error) {
	cmd := exec.CommandContext(r.ctx, argv[0], argv[1:]...)
	cmd.Dir = p.Path

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return -1, err
	}

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			r.send(OutputMsg{RunID: runID, Project: p.Name, Line: scanner.Text()})
		}
	}()

	err := cmd.Wait()
	pw.Close()
	<-scanDone
	pr.Close()

	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// send delivers an event, dropping the oldest when the UI falls behind so a
// chatty process can't block its own Wait.
func (r *Runner) send(msg tea.Msg) {
	for {
		select {
		case r.msgCh <- msg:
			return
		case <-r.ctx.Done():
			return
		default:
		}
		select {
		case <-r.msgCh:
		default:
		}
	}
}

// WaitForEventCmd waits for the next runner event.
func WaitForEventCmd(r *Runner) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.Events():
			return msg
		case <-r.Done():
			return nil
		}
	}
}
