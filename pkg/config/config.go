// Package config handles loading and saving depdeck configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/depdeck/config.yaml
//   - Cache:  ~/.cache/depdeck/ (check results, owned by pkg/checkcache)
//   - State:  ~/.local/state/depdeck/ (run history database)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UIConfig holds UI preference settings.
type UIConfig struct {
	ShowEmptyProjects bool `yaml:"show_empty_projects,omitempty"` // list projects without dependencies
}

// Settings is the top-level configuration for depdeck.
type Settings struct {
	ScanRoot          string   `yaml:"scan_root,omitempty"`
	MaxDepth          int      `yaml:"max_depth,omitempty"`
	CacheTTLMinutes   int      `yaml:"cache_ttl_minutes,omitempty"`
	BackgroundUpdates bool     `yaml:"background_updates"`
	UI                UIConfig `yaml:"ui,omitempty"`
}

// Default values for fresh installs.
const (
	DefaultCacheTTLMinutes = 60
	DefaultMaxDepth        = 4
)

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		ScanRoot:          ".",
		MaxDepth:          DefaultMaxDepth,
		CacheTTLMinutes:   DefaultCacheTTLMinutes,
		BackgroundUpdates: true,
	}
}

// CacheTTL returns the configured TTL as a duration.
func (s Settings) CacheTTL() time.Duration {
	minutes := s.CacheTTLMinutes
	if minutes <= 0 {
		minutes = DefaultCacheTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// ValidateTTL parses a cache-TTL minutes value typed into the settings
// modal. The returned error text is shown inline and blocks save.
func ValidateTTL(raw string) (int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, fmt.Errorf("cache TTL is required")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("cache TTL must be a number of minutes")
	}
	if n < 1 || n > 7*24*60 {
		return 0, fmt.Errorf("cache TTL must be between 1 minute and 7 days")
	}
	return n, nil
}

// ConfigDir returns the XDG config directory for depdeck.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "depdeck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "depdeck")
}

// StateDir returns the XDG state directory for depdeck.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "depdeck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "depdeck")
}

// Path returns the full path to config.yaml.
func Path() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads settings from the XDG config directory. A missing or corrupt
// file yields defaults; corruption is never fatal.
func Load() (Settings, error) {
	path := Path()
	if path == "" {
		return DefaultSettings(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from a specific path.
func LoadFrom(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		// Malformed persisted data falls back to defaults.
		return DefaultSettings(), nil
	}

	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.CacheTTLMinutes <= 0 {
		s.CacheTTLMinutes = DefaultCacheTTLMinutes
	}
	s.ScanRoot = expandHome(s.ScanRoot)
	return s, nil
}

// Save writes the settings to the XDG config directory.
func Save(s Settings) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(s, path)
}

// SaveTo writes the settings to a specific path.
func SaveTo(s Settings, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
