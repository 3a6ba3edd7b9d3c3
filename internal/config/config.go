package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Storage describes where organized files land. Root is the default base for
// synthesized area/category/folder paths; Drives maps a drive identifier (for
// example a synced cloud folder) onto an alternative base root.
type Storage struct {
	Root   string            `toml:"root"`
	Drives map[string]string `toml:"drives"`
}

// Matching contains rule engine tuning.
type Matching struct {
	CacheTTLSeconds   int  `toml:"cache_ttl_seconds"`
	RegexTimeoutMs    int  `toml:"regex_timeout_ms"`
	SlowRegexMs       int  `toml:"slow_regex_ms"`
	HeuristicsEnabled bool `toml:"heuristics_enabled"`
}

// Organizer contains move executor settings.
type Organizer struct {
	// ConflictStrategy is the default policy for an occupied destination:
	// "rename", "skip", or "overwrite".
	ConflictStrategy  string `toml:"conflict_strategy"`
	MaxRenameAttempts int    `toml:"max_rename_attempts"`
	VerifyCopies      bool   `toml:"verify_copies"`
}

// Watch contains directory monitoring settings.
type Watch struct {
	DebounceMs          int      `toml:"debounce_ms"`
	RestartDelaySeconds int      `toml:"restart_delay_seconds"`
	IgnorePatterns      []string `toml:"ignore_patterns"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Organized          bool   `toml:"organized"`
	Queued             bool   `toml:"queued"`
	Errors             bool   `toml:"errors"`
	MinIntervalSeconds int    `toml:"min_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics toggles the Prometheus endpoint on the daemon API server.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for filer.
//
// Configuration sections by subsystem:
//   - Paths: database/log directories and API bind address
//   - Storage: base root and drive mappings for organized files
//   - Matching: rule cache TTL and regex time limits
//   - Organizer: conflict policy and copy verification
//   - Watch: debounce and restart timings
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
//   - Metrics: Prometheus exposition
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Matching      Matching      `toml:"matching"`
	Organizer     Organizer     `toml:"organizer"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/filer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. The second return value is the resolved
// path and the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("filer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation. The
// storage root is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Storage.Root) != "" {
		_ = os.MkdirAll(c.Storage.Root, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "filer.db")
}

// DriveRoot returns the base root mapped to driveID.
func (c *Config) DriveRoot(driveID string) (string, bool) {
	root, ok := c.Storage.Drives[strings.TrimSpace(driveID)]
	if !ok || strings.TrimSpace(root) == "" {
		return "", false
	}
	return root, true
}

// CacheTTL returns the rule/folder cache staleness window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Matching.CacheTTLSeconds) * time.Second
}

// RegexTimeout returns the per-evaluation regex time limit.
func (c *Config) RegexTimeout() time.Duration {
	return time.Duration(c.Matching.RegexTimeoutMs) * time.Millisecond
}

// SlowRegexThreshold returns the duration above which regex evaluation is logged.
func (c *Config) SlowRegexThreshold() time.Duration {
	return time.Duration(c.Matching.SlowRegexMs) * time.Millisecond
}

// DebounceDelay returns the per-path quiet period before classification.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// RestartDelay returns the fixed delay between watcher restart attempts.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Watch.RestartDelaySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
