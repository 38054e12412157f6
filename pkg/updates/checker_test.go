package updates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/depdeck/depdeck/pkg/checkcache"
	"github.com/depdeck/depdeck/pkg/project"
)

// fakeRegistry is a scriptable registry client.
type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string]string
	errs     map[string]error
	delays   map[string]time.Duration
	calls    map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		versions: map[string]string{},
		errs:     map[string]error{},
		delays:   map[string]time.Duration{},
		calls:    map[string]int{},
	}
}

func (f *fakeRegistry) LatestVersion(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	f.calls[name]++
	delay := f.delays[name]
	v, err := f.versions[name], f.errs[name]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (f *fakeRegistry) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// tempProject writes a minimal go.mod/go.sum so LockContent works.
func tempProject(t *testing.T, name string) project.Project {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module "+name+"\n"), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "go.sum"), []byte(name+" lock v1\n"), 0o644); err != nil {
		t.Fatalf("write go.sum: %v", err)
	}
	return project.Project{Name: name, Path: dir}
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Now()
	ttl := 5 * time.Minute
	fresh := project.Dependency{Name: "a", LastChecked: now.Add(-2 * time.Minute)}
	stale := project.Dependency{Name: "a", LastChecked: now.Add(-10 * time.Minute)}
	never := project.Dependency{Name: "a"}

	if NeedsRefresh(fresh, true, ttl, now) {
		t.Error("fresh dep with cache enabled should not need refresh")
	}
	if !NeedsRefresh(fresh, false, ttl, now) {
		t.Error("cache disabled must force refresh regardless of age")
	}
	if !NeedsRefresh(stale, true, ttl, now) {
		t.Error("stale dep should need refresh")
	}
	if !NeedsRefresh(never, true, ttl, now) {
		t.Error("never-checked dep should need refresh")
	}
}

func TestCheckFreshCacheSkipsRegistry(t *testing.T) {
	reg := newFakeRegistry()
	reg.versions["github.com/foo/bar"] = "v2.0.0"
	store := checkcache.NewStore(filepath.Join(t.TempDir(), "checks"))
	proj := tempProject(t, "example.com/demo")
	proj.Dependencies = []project.Dependency{
		{Name: "github.com/foo/bar", CurrentVersion: "v1.0.0"},
	}

	// Seed the cache as if a check ran two minutes ago.
	lock, err := os.ReadFile(filepath.Join(proj.Path, "go.sum"))
	if err != nil {
		t.Fatalf("read go.sum: %v", err)
	}
	if err := store.Save(proj.Path, checkcache.Fingerprint(lock), map[string]checkcache.CachedDependency{
		"github.com/foo/bar": {LatestVersion: "v1.0.5", CachedAt: time.Now().Add(-2 * time.Minute)},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	c := NewChecker(reg, store)
	deps := c.Check(context.Background(), proj, CheckOptions{UseCache: true, TTL: 5 * time.Minute})

	if reg.callCount("github.com/foo/bar") != 0 {
		t.Fatal("fresh cached dep must not hit the registry")
	}
	if len(deps) != 1 || deps[0].Status != project.StatusChecked {
		t.Fatalf("unexpected result: %+v", deps)
	}
	if deps[0].LatestVersion != "v1.0.5" {
		t.Fatalf("latest = %q, want cached v1.0.5", deps[0].LatestVersion)
	}

	// Same dep, cache bypassed: the registry is consulted.
	deps = c.Check(context.Background(), proj, CheckOptions{UseCache: false, TTL: 5 * time.Minute})
	if reg.callCount("github.com/foo/bar") != 1 {
		t.Fatalf("no-cache check should hit registry once, got %d", reg.callCount("github.com/foo/bar"))
	}
	if deps[0].LatestVersion != "v2.0.0" {
		t.Fatalf("latest = %q, want fresh v2.0.0", deps[0].LatestVersion)
	}
}

func TestCheckCoversEveryDependency(t *testing.T) {
	reg := newFakeRegistry()
	reg.versions["ok.example/a"] = "v1.1.0"
	reg.errs["broken.example/b"] = errors.New("registry exploded")
	reg.delays["slow.example/c"] = time.Minute // will hit the per-dep timeout

	proj := tempProject(t, "example.com/demo")
	proj.Dependencies = []project.Dependency{
		{Name: "ok.example/a", CurrentVersion: "v1.0.0"},
		{Name: "broken.example/b", CurrentVersion: "v1.0.0"},
		{Name: "slow.example/c", CurrentVersion: "v1.0.0"},
	}

	c := NewChecker(reg, nil, WithPerDepTimeout(50*time.Millisecond))
	deps := c.Check(context.Background(), proj, CheckOptions{UseCache: false})

	if len(deps) != 3 {
		t.Fatalf("result dropped dependencies: %+v", deps)
	}
	byName := map[string]project.Dependency{}
	for _, d := range deps {
		if d.Status != project.StatusChecked {
			t.Errorf("dep %s status = %v, want Checked", d.Name, d.Status)
		}
		byName[d.Name] = d
	}
	if byName["ok.example/a"].LatestVersion != "v1.1.0" {
		t.Errorf("a latest = %q", byName["ok.example/a"].LatestVersion)
	}
	// Failed and timed-out lookups report no new info.
	if byName["broken.example/b"].LatestVersion != "" {
		t.Errorf("b latest = %q, want empty", byName["broken.example/b"].LatestVersion)
	}
	if byName["slow.example/c"].LatestVersion != "" {
		t.Errorf("c latest = %q, want empty", byName["slow.example/c"].LatestVersion)
	}
}

func TestCheckBatchTimeoutStillResponds(t *testing.T) {
	reg := newFakeRegistry()
	reg.delays["slow.example/a"] = time.Minute

	proj := tempProject(t, "example.com/demo")
	proj.Dependencies = []project.Dependency{
		{Name: "slow.example/a", CurrentVersion: "v1.0.0"},
	}

	c := NewChecker(reg, nil,
		WithPerDepTimeout(10*time.Second),
		WithBatchTimeout(50*time.Millisecond),
	)

	start := time.Now()
	deps := c.Check(context.Background(), proj, CheckOptions{UseCache: false})
	if time.Since(start) > 5*time.Second {
		t.Fatal("batch timeout did not bound the check")
	}
	if len(deps) != 1 {
		t.Fatalf("batch timeout dropped the response: %+v", deps)
	}
}

func TestCheckPersistsToCache(t *testing.T) {
	reg := newFakeRegistry()
	reg.versions["github.com/foo/bar"] = "v1.9.0"
	store := checkcache.NewStore(filepath.Join(t.TempDir(), "checks"))
	proj := tempProject(t, "example.com/demo")
	proj.Dependencies = []project.Dependency{
		{Name: "github.com/foo/bar", CurrentVersion: "v1.0.0"},
	}

	c := NewChecker(reg, store)
	c.Check(context.Background(), proj, CheckOptions{UseCache: true, TTL: time.Hour})

	lock, _ := os.ReadFile(filepath.Join(proj.Path, "go.sum"))
	cached, ok := store.Load(proj.Path, checkcache.Fingerprint(lock))
	if !ok {
		t.Fatal("check did not persist to cache")
	}
	if cached["github.com/foo/bar"].LatestVersion != "v1.9.0" {
		t.Fatalf("cached latest = %q", cached["github.com/foo/bar"].LatestVersion)
	}

	// Second check within TTL is served from cache.
	c.Check(context.Background(), proj, CheckOptions{UseCache: true, TTL: time.Hour})
	if reg.callCount("github.com/foo/bar") != 1 {
		t.Fatalf("registry hit %d times, want 1", reg.callCount("github.com/foo/bar"))
	}
}

func TestCheckStreamEmitsStartPerDepAndCompletion(t *testing.T) {
	reg := newFakeRegistry()
	reg.versions["a.example/x"] = "v1.1.0"
	reg.versions["b.example/y"] = "v2.2.0"

	proj := tempProject(t, "example.com/demo")
	proj.Dependencies = []project.Dependency{
		{Name: "a.example/x", CurrentVersion: "v1.0.0"},
		{Name: "b.example/y", CurrentVersion: "v2.0.0"},
	}

	c := NewChecker(reg, nil)
	defer c.Close()
	c.CheckStream(proj, CheckOptions{UseCache: false})

	deadline := time.After(5 * time.Second)
	var sawStart bool
	var depEvents int
	for {
		select {
		case msg := <-c.Events():
			switch m := msg.(type) {
			case CheckStartedMsg:
				if m.Project != proj.Name {
					t.Fatalf("start for wrong project %q", m.Project)
				}
				if depEvents > 0 {
					t.Fatal("start event after dependency events")
				}
				sawStart = true
			case DependencyCheckedMsg:
				if m.Dependency.Status != project.StatusChecked {
					t.Fatalf("streamed dep not checked: %+v", m.Dependency)
				}
				depEvents++
			case DependenciesCheckedMsg:
				if !sawStart {
					t.Fatal("completion before start event")
				}
				if depEvents != 2 {
					t.Fatalf("saw %d dep events, want 2", depEvents)
				}
				if len(m.Dependencies) != 2 {
					t.Fatalf("completion carries %d deps, want 2", len(m.Dependencies))
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for streaming events")
		}
	}
}

// A large check can flood the event buffer with per-dep progress faster
// than the UI drains it. Progress may be lost; the completion signal for
// every invocation must still come through exactly once.
func TestCheckStreamCompletionSurvivesFloodedChannel(t *testing.T) {
	reg := newFakeRegistry()
	reg.versions["small.example/a"] = "v1.1.0"

	small := tempProject(t, "example.com/small")
	small.Dependencies = []project.Dependency{
		{Name: "small.example/a", CurrentVersion: "v1.0.0"},
	}

	big := tempProject(t, "example.com/big")
	for i := 0; i < 3*defaultEventBuffer/2; i++ {
		name := fmt.Sprintf("big.example/dep%03d", i)
		reg.versions[name] = "v1.1.0"
		big.Dependencies = append(big.Dependencies, project.Dependency{
			Name: name, CurrentVersion: "v1.0.0",
		})
	}

	c := NewChecker(reg, nil)
	defer c.Close()

	// Leave the channel undrained while both checks run, so the big one
	// fills whatever buffer space the small one left behind.
	c.CheckStream(small, CheckOptions{UseCache: false})
	c.CheckStream(big, CheckOptions{UseCache: false})

	completions := map[string]int{}
	deadline := time.After(10 * time.Second)
	for {
		select {
		case msg := <-c.Events():
			if done, ok := msg.(DependenciesCheckedMsg); ok {
				completions[done.Project]++
			}
		case <-time.After(500 * time.Millisecond):
			if completions[small.Name] != 1 || completions[big.Name] != 1 {
				t.Fatalf("completions = %v, want exactly one per project", completions)
			}
			return
		case <-deadline:
			t.Fatalf("timed out, completions so far: %v", completions)
		}
	}
}

func TestIsStale(t *testing.T) {
	reg := newFakeRegistry()
	store := checkcache.NewStore(filepath.Join(t.TempDir(), "checks"))
	proj := tempProject(t, "example.com/demo")
	proj.Dependencies = []project.Dependency{
		{Name: "github.com/foo/bar", CurrentVersion: "v1.0.0"},
	}
	c := NewChecker(reg, store)

	if !c.IsStale(proj, time.Hour) {
		t.Fatal("project with no cache entry must be stale")
	}

	lock, _ := os.ReadFile(filepath.Join(proj.Path, "go.sum"))
	fp := checkcache.Fingerprint(lock)
	if err := store.Save(proj.Path, fp, map[string]checkcache.CachedDependency{
		"github.com/foo/bar": {LatestVersion: "v1.0.0", CachedAt: time.Now()},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if c.IsStale(proj, time.Hour) {
		t.Fatal("freshly cached project should not be stale")
	}

	if err := store.Save(proj.Path, fp, map[string]checkcache.CachedDependency{
		"github.com/foo/bar": {LatestVersion: "v1.0.0", CachedAt: time.Now().Add(-2 * time.Hour)},
	}); err != nil {
		t.Fatalf("reseed cache: %v", err)
	}
	if !c.IsStale(proj, time.Hour) {
		t.Fatal("expired cache entry must make the project stale")
	}

	// A lock content change invalidates the entry wholesale.
	if err := os.WriteFile(filepath.Join(proj.Path, "go.sum"), []byte("different lock\n"), 0o644); err != nil {
		t.Fatalf("rewrite go.sum: %v", err)
	}
	if err := store.Save(proj.Path, fp, map[string]checkcache.CachedDependency{
		"github.com/foo/bar": {LatestVersion: "v1.0.0", CachedAt: time.Now()},
	}); err != nil {
		t.Fatalf("reseed cache: %v", err)
	}
	if !c.IsStale(proj, time.Hour) {
		t.Fatal("fingerprint mismatch must make the project stale")
	}
}
