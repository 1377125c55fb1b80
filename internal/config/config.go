// internal/config/config.go
//
// This package handles configuration and the .caseline directory structure.
// Every workspace that uses caseline gets a .caseline/ folder in its root,
// holding the config file and the session journals.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// CaselineDir is the name of the directory created in each workspace.
	CaselineDir = ".caseline"

	// DefaultBackendURL points at a locally running caseline-stubd.
	DefaultBackendURL = "http://127.0.0.1:8787"

	// DefaultTimeout bounds every backend request so a dead backend surfaces
	// as a retrievable error instead of a hang.
	DefaultTimeout = 5 * time.Second
)

const defaultConfigYAML = `# caseline workspace configuration
version: 1

backend:
  # Base URL of the rules-evaluation backend. caseline-stubd serves this
  # address by default for local demos.
  url: http://127.0.0.1:8787
  timeout_seconds: 5

cases:
  # Case opened when caseline starts without a -case flag.
  default: ""
`

// BackendConfig declares how to reach the rules-evaluation backend.
type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// CaseConfig captures case selection preferences.
type CaseConfig struct {
	Default string   `yaml:"default"`
	Recent  []string `yaml:"recent,omitempty"`
}

// WorkspaceConfig models .caseline/config.yaml.
type WorkspaceConfig struct {
	Version int           `yaml:"version"`
	Backend BackendConfig `yaml:"backend"`
	Cases   CaseConfig    `yaml:"cases"`
}

// Config holds the runtime configuration for caseline.
type Config struct {
	// WorkspaceDir is the directory the user ran caseline from.
	WorkspaceDir string

	// CaselineWorkspaceDir is WorkspaceDir/.caseline.
	CaselineWorkspaceDir string

	Workspace WorkspaceConfig
}

// InitCaselineDir creates the .caseline directory structure.
func InitCaselineDir(workspaceDir string) error {
	caselineDir := filepath.Join(workspaceDir, CaselineDir)
	dirs := []string{
		filepath.Join(caselineDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureWorkspaceConfig(filepath.Join(caselineDir, "config.yaml"))
}

// New creates a Config populated from the workspace file and environment.
func New(workspaceDir string) (*Config, error) {
	cfg := &Config{
		WorkspaceDir:         workspaceDir,
		CaselineWorkspaceDir: filepath.Join(workspaceDir, CaselineDir),
		Workspace:            defaultWorkspaceConfig(),
	}
	if err := cfg.loadWorkspaceConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.CaselineWorkspaceDir, "logs")
}

// SessionLogPath returns the journal file for the current session.
func (c *Config) SessionLogPath() string {
	return filepath.Join(c.LogsDir(), "session.log")
}

// ConfigPath returns the on-disk location of the workspace config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.CaselineWorkspaceDir, "config.yaml")
}

// BackendURL returns the backend base URL.
func (c *Config) BackendURL() string {
	return c.Workspace.Backend.URL
}

// Timeout returns the per-request backend deadline.
func (c *Config) Timeout() time.Duration {
	seconds := c.Workspace.Backend.TimeoutSeconds
	if seconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(seconds) * time.Second
}

// DefaultCase returns the configured default case identifier.
func (c *Config) DefaultCase() string {
	return c.Workspace.Cases.Default
}

// RecentCases returns previously opened case identifiers, most recent first.
func (c *Config) RecentCases() []string {
	return c.Workspace.Cases.Recent
}

// SetDefaultCase updates the default case, records it in the recent list,
// and persists the config back to .caseline/config.yaml.
func (c *Config) SetDefaultCase(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: case id is required")
	}
	c.Workspace.Cases.Default = id
	recent := []string{id}
	for _, known := range c.Workspace.Cases.Recent {
		if strings.EqualFold(known, id) {
			continue
		}
		recent = append(recent, known)
	}
	if len(recent) > 10 {
		recent = recent[:10]
	}
	c.Workspace.Cases.Recent = recent
	return c.saveWorkspaceConfig()
}

func (c *Config) loadWorkspaceConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed WorkspaceConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Workspace = parsed
	return nil
}

func (c *Config) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("CASELINE_BACKEND_URL")); value != "" {
		if validBackendURL(value) {
			c.Workspace.Backend.URL = strings.TrimRight(value, "/")
		}
	}
	if value := strings.TrimSpace(os.Getenv("CASELINE_TIMEOUT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			c.Workspace.Backend.TimeoutSeconds = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("CASELINE_CASE")); value != "" {
		c.Workspace.Cases.Default = value
	}
}

func defaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Version: 1,
		Backend: BackendConfig{
			URL:            DefaultBackendURL,
			TimeoutSeconds: int(DefaultTimeout / time.Second),
		},
	}
}

func (wc *WorkspaceConfig) applyDefaults() {
	if wc.Version == 0 {
		wc.Version = 1
	}
	if strings.TrimSpace(wc.Backend.URL) == "" {
		wc.Backend.URL = DefaultBackendURL
	}
	if wc.Backend.TimeoutSeconds <= 0 {
		wc.Backend.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
}

func (wc *WorkspaceConfig) normalize() {
	wc.Backend.URL = strings.TrimRight(strings.TrimSpace(wc.Backend.URL), "/")
	wc.Cases.Default = strings.TrimSpace(wc.Cases.Default)
	recent := wc.Cases.Recent[:0]
	for _, id := range wc.Cases.Recent {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			recent = append(recent, trimmed)
		}
	}
	wc.Cases.Recent = recent
}

func (wc WorkspaceConfig) validate() error {
	if wc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !validBackendURL(wc.Backend.URL) {
		return fmt.Errorf("backend.url %q is not a valid http(s) URL", wc.Backend.URL)
	}
	return nil
}

func validBackendURL(value string) bool {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func ensureWorkspaceConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func (c *Config) saveWorkspaceConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Workspace.applyDefaults()
	c.Workspace.normalize()
	if err := c.Workspace.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.CaselineWorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure caseline dir: %w", err)
	}
	data, err := yaml.Marshal(c.Workspace)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write workspace config: %w", err)
	}
	return nil
}
