// Package discover locates Go module projects under a workspace root.
//
// A project is any directory containing a go.mod. Only direct requirements
// are surfaced; indirect requires are registry noise for a freshness
// dashboard. Lock content (go.sum, falling back to go.mod) is what
// fingerprints a project for cache validation.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/depdeck/depdeck/pkg/project"
)

// DefaultMaxDepth bounds the scan when the caller doesn't care.
const DefaultMaxDepth = 4

// Directories never worth descending into.
var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"testdata":     true,
}

// Scan walks root up to maxDepth levels deep and returns one Project per
// go.mod found, sorted by module path. Unparseable manifests are skipped,
// not fatal: a broken checkout elsewhere in the tree must not hide the rest.
func Scan(root string, maxDepth int) ([]project.Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root: %w", err)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var projects []project.Project
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable subtree; keep scanning the rest.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot {
				if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				if depthOf(absRoot, path) > maxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Name() != "go.mod" {
			return nil
		}

		p, perr := loadProject(filepath.Dir(path))
		if perr != nil {
			return nil
		}
		projects = append(projects, p)
		// A module root owns everything below it; nested modules are rare
		// and usually fixtures.
		return filepath.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", absRoot, err)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func loadProject(dir string) (project.Project, error) {
	manifest := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(manifest)
	if err != nil {
		return project.Project{}, err
	}

	f, err := modfile.Parse(manifest, data, nil)
	if err != nil {
		return project.Project{}, fmt.Errorf("parsing %s: %w", manifest, err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return project.Project{}, fmt.Errorf("%s has no module directive", manifest)
	}

	p := project.Project{
		Name: f.Module.Mod.Path,
		Path: dir,
	}
	if f.Go != nil {
		p.Version = "go " + f.Go.Version
	}
	for _, r := range f.Require {
		if r.Indirect {
			continue
		}
		p.Dependencies = append(p.Dependencies, project.Dependency{
			Name:           r.Mod.Path,
			CurrentVersion: r.Mod.Version,
			Status:         project.StatusNotChecked,
		})
	}
	sort.Slice(p.Dependencies, func(i, j int) bool {
		return p.Dependencies[i].Name < p.Dependencies[j].Name
	})
	return p, nil
}

// LockContent returns the bytes that fingerprint a project's resolved
// dependency set: go.sum when present, the manifest itself otherwise.
func LockContent(projectPath string) ([]byte, error) {
	sum, err := os.ReadFile(filepath.Join(projectPath, "go.sum"))
	if err == nil {
		return sum, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return os.ReadFile(filepath.Join(projectPath, "go.mod"))
}

// LockPath returns the path whose changes invalidate the project's cache
// entry: go.sum when it exists, go.mod otherwise.
func LockPath(projectPath string) string {
	sum := filepath.Join(projectPath, "go.sum")
	if _, err := os.Stat(sum); err == nil {
		return sum
	}
	return filepath.Join(projectPath, "go.mod")
}
