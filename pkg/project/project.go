// Package project defines the data model for discovered Go module projects
// and their dependencies, plus the pure status computations the UI reads.
package project

import (
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// CheckStatus is the per-dependency check state.
type CheckStatus int

const (
	// StatusNotChecked means no lookup has been attempted yet.
	StatusNotChecked CheckStatus = iota
	// StatusChecking means a registry lookup is in flight.
	StatusChecking
	// StatusChecked means a lookup finished (successfully or not).
	StatusChecked
)

func (s CheckStatus) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusChecked:
		return "checked"
	default:
		return "not_checked"
	}
}

// Dependency is one direct requirement of a project. Values are copied into
// cache entries and wizard lists; mutations go through the project merge
// helpers so every view reads the canonical copy.
type Dependency struct {
	Name           string
	CurrentVersion string
	// LatestVersion is the most recent version observed on the registry.
	// Empty means no information is available (never looked up, or the
	// lookup failed).
	LatestVersion string
	Status        CheckStatus
	LastChecked   time.Time
}

// HasUpdate reports whether the registry knows a version other than the
// current one. Any difference counts: a registry that moved backwards
// (retraction, rollback) still deserves attention in the wizard.
func (d Dependency) HasUpdate() bool {
	return d.LatestVersion != "" && d.LatestVersion != d.CurrentVersion
}

// IsMajorUpdate reports whether the known update crosses a major version
// boundary. False when either side is not parseable semver; the update is
// still shown, just without the extra warning.
func (d Dependency) IsMajorUpdate() bool {
	if !d.HasUpdate() {
		return false
	}
	cur, errCur := semver.NewVersion(strings.TrimPrefix(d.CurrentVersion, "v"))
	latest, errLatest := semver.NewVersion(strings.TrimPrefix(d.LatestVersion, "v"))
	if errCur != nil || errLatest != nil {
		return false
	}
	return latest.Major() > cur.Major()
}

// AggregateStatus summarizes a project's dependency check states.
type AggregateStatus int

const (
	// Unchecked means no dependency has been looked at.
	Unchecked AggregateStatus = iota
	// Checking means at least one dependency lookup is in flight.
	Checking
	// HasUpdates means at least one dependency has a newer version.
	HasUpdates
	// UpToDate means every dependency was checked and none are outdated.
	UpToDate
)

func (s AggregateStatus) String() string {
	switch s {
	case Checking:
		return "checking"
	case HasUpdates:
		return "has_updates"
	case UpToDate:
		return "up_to_date"
	default:
		return "unchecked"
	}
}

// Project is one discovered Go module.
type Project struct {
	Name         string // module path, unique key
	Path         string // absolute directory containing go.mod
	Version      string // declared module version, if any
	Dependencies []Dependency
}

// Status derives the aggregate check status from the dependency states.
// Priority order: HasUpdates > Checking > UpToDate > Unchecked.
func (p Project) Status() AggregateStatus {
	return ComputeAggregateStatus(p.Dependencies)
}

// ComputeAggregateStatus is the pure aggregation over a dependency list.
func ComputeAggregateStatus(deps []Dependency) AggregateStatus {
	if len(deps) == 0 {
		return Unchecked
	}

	anyChecking := false
	allChecked := true
	for _, d := range deps {
		if d.HasUpdate() {
			return HasUpdates
		}
		if d.Status == StatusChecking {
			anyChecking = true
		}
		if d.Status != StatusChecked {
			allChecked = false
		}
	}
	if anyChecking {
		return Checking
	}
	if allChecked {
		return UpToDate
	}
	return Unchecked
}

// MergeDependencies replaces the stored state of every dependency present in
// deps, matched by name. Names not already owned by the project are ignored:
// a check result cannot grow the dependency set, only refresh it.
func (p *Project) MergeDependencies(deps []Dependency) {
	for _, d := range deps {
		p.MergeDependency(d)
	}
}

// MergeDependency applies a single dependency result by name.
func (p *Project) MergeDependency(dep Dependency) {
	for i := range p.Dependencies {
		if p.Dependencies[i].Name == dep.Name {
			p.Dependencies[i] = dep
			return
		}
	}
}

// MarkChecking flags every dependency as mid-check. Used when a check is
// dispatched so the list view shows progress immediately.
func (p *Project) MarkChecking() {
	for i := range p.Dependencies {
		p.Dependencies[i].Status = StatusChecking
	}
}

// Outdated returns copies of the dependencies with a known newer version,
// sorted by name for stable display.
func (p Project) Outdated() []Dependency {
	var out []Dependency
	for _, d := range p.Dependencies {
		if d.HasUpdate() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindDependency returns a copy of the named dependency.
func (p Project) FindDependency(name string) (Dependency, bool) {
	for _, d := range p.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}
