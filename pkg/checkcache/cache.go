// Package checkcache persists the results of dependency version checks so
// repeated runs don't hammer the module proxy.
//
// Layout: one JSON file per project under the XDG cache dir
// (~/.cache/depdeck/checks/<sha256(absolute project path)[:16]>.json). Each
// file carries the lock-content fingerprint it was written against; a
// fingerprint mismatch means the dependency set changed and the whole entry
// is stale. Caching is an optimization only: every failure mode here reads
// as a miss, never as an error.
package checkcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// CachedDependency is the persisted per-dependency observation.
type CachedDependency struct {
	LatestVersion string    `json:"latest_version"`
	CachedAt      time.Time `json:"cached_at"`
}

// entry is the on-disk document, one per project.
type entry struct {
	Fingerprint  string                      `json:"fingerprint"`
	Dependencies map[string]CachedDependency `json:"dependencies"`
}

// Fingerprint hashes raw lock-content bytes. Order-sensitive by design: any
// byte change produces a new fingerprint. A change detector, not a security
// primitive.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Store is a directory of per-project cache files.
type Store struct {
	dir string
}

// DefaultDir returns the XDG cache directory for check results.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "depdeck", "checks")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "depdeck", "checks")
}

// NewStore creates a store rooted at dir (DefaultDir when empty).
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// filePath addresses a project's cache file by a hash of its absolute path,
// so repeated runs hit the same file and distinct paths don't collide.
func (s *Store) filePath(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])[:16]+".json")
}

// Load returns the cached dependency map for a project, but only when the
// stored fingerprint matches. Missing file, unreadable file, corrupt JSON,
// or a fingerprint mismatch all mean "recheck": ok is false and the caller
// moves on.
func (s *Store) Load(projectPath, fingerprint string) (map[string]CachedDependency, bool) {
	data, err := os.ReadFile(s.filePath(projectPath))
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	if e.Fingerprint == "" || e.Fingerprint != fingerprint {
		return nil, false
	}
	if e.Dependencies == nil {
		e.Dependencies = map[string]CachedDependency{}
	}
	return e.Dependencies, true
}

// Save overwrites the project's cache file wholesale, creating the cache
// directory on demand.
func (s *Store) Save(projectPath, fingerprint string, deps map[string]CachedDependency) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entry{Fingerprint: fingerprint, Dependencies: deps}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := os.WriteFile(s.filePath(projectPath), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Invalidate removes a single project's cache file. Absence is fine.
func (s *Store) Invalidate(projectPath string) error {
	err := os.Remove(s.filePath(projectPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}

// Clear wipes the whole store.
func (s *Store) Clear() error {
	err := os.RemoveAll(s.dir)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
