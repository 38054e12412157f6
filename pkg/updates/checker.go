package updates

import (
	"context"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/depdeck/depdeck/pkg/checkcache"
	"github.com/depdeck/depdeck/pkg/discover"
	"github.com/depdeck/depdeck/pkg/project"
	"github.com/depdeck/depdeck/pkg/registry"
)

const (
	// DefaultPerDepTimeout bounds one registry lookup.
	DefaultPerDepTimeout = 4 * time.Second
	// DefaultBatchTimeout bounds a whole project's check. When it fires the
	// checker still produces a complete result set.
	DefaultBatchTimeout = 30 * time.Second

	defaultLookupLimit = 8
	defaultEventBuffer = 64
)

// CheckStartedMsg announces that a streaming check began for a project.
type CheckStartedMsg struct {
	Project string
}

// DependencyCheckedMsg carries one resolved dependency from a streaming check.
type DependencyCheckedMsg struct {
	Project    string
	Dependency project.Dependency
}

// DependenciesCheckedMsg carries the complete result list for a project's
// check. Emitted exactly once per invocation, batch or streaming.
type DependenciesCheckedMsg struct {
	Project      string
	Dependencies []project.Dependency
}

// CheckOptions tune one check invocation.
type CheckOptions struct {
	// UseCache false forces a registry lookup for every dependency.
	UseCache bool
	// TTL is how long a previous observation stays fresh.
	TTL time.Duration
}

// NeedsRefresh decides whether a dependency requires a registry lookup.
func NeedsRefresh(d project.Dependency, useCache bool, ttl time.Duration, now time.Time) bool {
	if !useCache {
		return true
	}
	if d.LastChecked.IsZero() {
		return true
	}
	return now.Sub(d.LastChecked) > ttl
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithPerDepTimeout overrides the per-lookup timeout.
func WithPerDepTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) { c.perDepTimeout = d }
}

// WithBatchTimeout overrides the whole-batch timeout.
func WithBatchTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) { c.batchTimeout = d }
}

// WithLookupLimit caps concurrent registry lookups.
func WithLookupLimit(n int) CheckerOption {
	return func(c *Checker) {
		if n > 0 {
			c.lookupLimit = n
		}
	}
}

// WithClock injects a time source (tests).
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) { c.now = now }
}

// Checker runs dependency version checks for one project at a time and
// delivers results either as a return value (batch) or as events on its
// message channel (streaming). The channel is owned by the checker and never
// closed; use Done to stop waiting.
type Checker struct {
	registry      registry.Client
	cache         *checkcache.Store
	perDepTimeout time.Duration
	batchTimeout  time.Duration
	lookupLimit   int
	now           func() time.Time

	msgCh  chan tea.Msg
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChecker wires a checker to a registry client and a cache store. The
// cache may be nil, which disables persistence entirely.
func NewChecker(reg registry.Client, cache *checkcache.Store, opts ...CheckerOption) *Checker {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Checker{
		registry:      reg,
		cache:         cache,
		perDepTimeout: DefaultPerDepTimeout,
		batchTimeout:  DefaultBatchTimeout,
		lookupLimit:   defaultLookupLimit,
		now:           time.Now,
		msgCh:         make(chan tea.Msg, defaultEventBuffer),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the streaming event channel.
func (c *Checker) Events() <-chan tea.Msg {
	return c.msgCh
}

// Done is closed when the checker is shut down.
func (c *Checker) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close stops streaming delivery. In-flight batch checks still complete.
func (c *Checker) Close() {
	c.cancel()
}

// Check performs a batch check: every input dependency appears in the result
// exactly once, however the lookups went. The caller gets exactly one
// completion per invocation.
func (c *Checker) Check(ctx context.Context, proj project.Project, opts CheckOptions) []project.Dependency {
	return c.check(ctx, proj, opts, nil)
}

// CheckStream runs a check in the background, emitting CheckStartedMsg
// immediately, DependencyCheckedMsg as each dependency resolves, and a final
// DependenciesCheckedMsg. Used for the focused project so the UI updates
// progressively.
func (c *Checker) CheckStream(proj project.Project, opts CheckOptions) {
	go func() {
		c.sendWait(CheckStartedMsg{Project: proj.Name})
		deps := c.check(c.ctx, proj, opts, func(d project.Dependency) {
			c.send(DependencyCheckedMsg{Project: proj.Name, Dependency: d})
		})
		c.sendWait(DependenciesCheckedMsg{Project: proj.Name, Dependencies: deps})
	}()
}

// IsStale reports whether the project's cache entry is missing, invalidated
// by a lock change, or older than ttl for any dependency. Used to decide
// which projects to re-queue when background updates are (re-)enabled.
func (c *Checker) IsStale(proj project.Project, ttl time.Duration) bool {
	if c.cache == nil {
		return true
	}
	lock, err := discover.LockContent(proj.Path)
	if err != nil {
		return true
	}
	cached, ok := c.cache.Load(proj.Path, checkcache.Fingerprint(lock))
	if !ok {
		return true
	}
	now := c.now()
	for _, d := range proj.Dependencies {
		entry, ok := cached[d.Name]
		if !ok || now.Sub(entry.CachedAt) > ttl {
			return true
		}
	}
	return false
}

func (c *Checker) check(ctx context.Context, proj project.Project, opts CheckOptions, emit func(project.Dependency)) []project.Dependency {
	now := c.now()

	results := make([]project.Dependency, len(proj.Dependencies))
	copy(results, proj.Dependencies)

	// Seed previous observations from the cache; a fingerprint mismatch
	// (lock content changed) drops the whole entry.
	fingerprint := ""
	if c.cache != nil {
		if lock, err := discover.LockContent(proj.Path); err == nil {
			fingerprint = checkcache.Fingerprint(lock)
			if cached, ok := c.cache.Load(proj.Path, fingerprint); ok {
				for i := range results {
					if entry, ok := cached[results[i].Name]; ok {
						results[i].LatestVersion = entry.LatestVersion
						results[i].LastChecked = entry.CachedAt
					}
				}
			}
		}
	}

	var mu sync.Mutex
	needs := make([]bool, len(results))
	for i := range results {
		if NeedsRefresh(results[i], opts.UseCache, opts.TTL, now) {
			needs[i] = true
			results[i].Status = project.StatusChecking
			continue
		}
		// Fresh enough: checked without a network call, latest stays
		// whatever was last recorded.
		results[i].Status = project.StatusChecked
		if emit != nil {
			emit(results[i])
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.lookupLimit)
	for i := range results {
		if !needs[i] {
			continue
		}
		dep := results[i]
		idx := i
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, c.perDepTimeout)
			latest, err := c.registry.LatestVersion(lctx, dep.Name)
			cancel()

			// Timeouts and lookup failures still mark the dependency
			// checked so the UI never shows a perpetual spinner; the
			// latest version simply stays whatever it was.
			dep.Status = project.StatusChecked
			dep.LastChecked = now
			if err == nil {
				dep.LatestVersion = latest
			}

			mu.Lock()
			results[idx] = dep
			mu.Unlock()
			if emit != nil {
				emit(dep)
			}
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(c.batchTimeout):
		// Whole-batch timeout: respond anyway with whatever resolved.
	case <-ctx.Done():
	}

	mu.Lock()
	out := make([]project.Dependency, len(results))
	copy(out, results)
	mu.Unlock()

	c.persist(proj.Path, fingerprint, out)
	return out
}

// persist writes checked observations back to the cache. Failures are an
// optimization loss, not an error.
func (c *Checker) persist(projectPath, fingerprint string, deps []project.Dependency) {
	if c.cache == nil || fingerprint == "" {
		return
	}
	cached := make(map[string]checkcache.CachedDependency, len(deps))
	for _, d := range deps {
		if d.Status != project.StatusChecked || d.LastChecked.IsZero() {
			continue
		}
		cached[d.Name] = checkcache.CachedDependency{
			LatestVersion: d.LatestVersion,
			CachedAt:      d.LastChecked,
		}
	}
	if len(cached) == 0 {
		return
	}
	if err := c.cache.Save(projectPath, fingerprint, cached); err != nil {
		log.Printf("checkcache: persisting %s: %v", projectPath, err)
	}
}

// send delivers a per-dependency progress event without ever blocking the
// check. When the buffer is full the incoming event is discarded: progress
// is cosmetic and the completion carries the full result set. Evicting
// queued messages instead would risk throwing away another invocation's
// completion signal.
func (c *Checker) send(msg tea.Msg) {
	select {
	case c.msgCh <- msg:
	case <-c.ctx.Done():
	default:
	}
}

// sendWait delivers a control signal, blocking until the consumer makes
// room. Start and completion must reach the reducer: its bookkeeping and
// the queue driver both rely on exactly one completion per invocation.
func (c *Checker) sendWait(msg tea.Msg) {
	select {
	case c.msgCh <- msg:
	case <-c.ctx.Done():
	}
}

// CheckCmd wraps a batch check as a Bubble Tea command.
func (c *Checker) CheckCmd(proj project.Project, opts CheckOptions) tea.Cmd {
	return func() tea.Msg {
		deps := c.Check(c.ctx, proj, opts)
		return DependenciesCheckedMsg{Project: proj.Name, Dependencies: deps}
	}
}

// WaitForEventCmd waits for the next streaming event.
func WaitForEventCmd(c *Checker) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-c.Events():
			return msg
		case <-c.Done():
			return nil
		}
	}
}
