package checkcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFingerprintChangesWithContent(t *testing.T) {
	a := Fingerprint([]byte("github.com/foo/bar v1.2.3 h1:abc=\n"))
	b := Fingerprint([]byte("github.com/foo/bar v1.2.4 h1:abc=\n"))
	if a == b {
		t.Fatal("different content produced the same fingerprint")
	}
	if a != Fingerprint([]byte("github.com/foo/bar v1.2.3 h1:abc=\n")) {
		t.Fatal("fingerprint not deterministic")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checks"))
	fp := Fingerprint([]byte("lock content"))
	deps := map[string]CachedDependency{
		"github.com/foo/bar": {LatestVersion: "v1.4.2", CachedAt: time.Now().UTC().Truncate(time.Second)},
		"github.com/baz/qux": {LatestVersion: "", CachedAt: time.Now().UTC().Truncate(time.Second)},
	}

	if err := s.Save("/some/project", fp, deps); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok := s.Load("/some/project", fp)
	if !ok {
		t.Fatal("Load with matching fingerprint returned miss")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 cached deps, got %d", len(got))
	}
	if got["github.com/foo/bar"].LatestVersion != "v1.4.2" {
		t.Errorf("bar latest = %q", got["github.com/foo/bar"].LatestVersion)
	}
}

func TestLoadFingerprintMismatch(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checks"))
	fp := Fingerprint([]byte("old lock"))
	if err := s.Save("/p", fp, map[string]CachedDependency{"a": {LatestVersion: "v1.0.0"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok := s.Load("/p", Fingerprint([]byte("new lock"))); ok {
		t.Fatal("Load with stale fingerprint must miss")
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checks")
	s := NewStore(dir)

	if _, ok := s.Load("/never/saved", "fp"); ok {
		t.Fatal("Load of missing entry must miss")
	}

	fp := Fingerprint([]byte("lock"))
	if err := s.Save("/p", fp, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Corrupt the file in place; the next load is a miss, not an error.
	if err := os.WriteFile(s.filePath("/p"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, ok := s.Load("/p", fp); ok {
		t.Fatal("Load of corrupt entry must miss")
	}
}

func TestDistinctPathsDistinctFiles(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checks"))
	if s.filePath("/project/a") == s.filePath("/project/b") {
		t.Fatal("distinct project paths map to the same cache file")
	}
	// Same path always maps to the same file.
	if s.filePath("/project/a") != s.filePath("/project/a") {
		t.Fatal("cache file addressing is not deterministic")
	}
}

func TestSaveOverwritesWholesale(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checks"))
	fp := Fingerprint([]byte("lock"))

	if err := s.Save("/p", fp, map[string]CachedDependency{
		"a": {LatestVersion: "v1.0.0"},
		"b": {LatestVersion: "v2.0.0"},
	}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save("/p", fp, map[string]CachedDependency{
		"a": {LatestVersion: "v1.1.0"},
	}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, ok := s.Load("/p", fp)
	if !ok {
		t.Fatal("Load after overwrite missed")
	}
	if len(got) != 1 || got["a"].LatestVersion != "v1.1.0" {
		t.Fatalf("overwrite was not wholesale: %+v", got)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checks"))
	fp := Fingerprint([]byte("lock"))
	if err := s.Save("/p", fp, map[string]CachedDependency{"a": {LatestVersion: "v1.0.0"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Invalidate("/p"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := s.Load("/p", fp); ok {
		t.Fatal("Load after Invalidate must miss")
	}
	// Invalidating again is fine.
	if err := s.Invalidate("/p"); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}

	if err := s.Save("/p", fp, map[string]CachedDependency{"a": {LatestVersion: "v1.0.0"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Load("/p", fp); ok {
		t.Fatal("Load after Clear must miss")
	}
	// Store keeps working after Clear.
	if err := s.Save("/p", fp, map[string]CachedDependency{"a": {LatestVersion: "v1.0.0"}}); err != nil {
		t.Fatalf("Save after Clear: %v", err)
	}
}
