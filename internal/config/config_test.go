package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"filer/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantData := filepath.Join(tempHome, ".local", "share", "filer")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Storage.Root != filepath.Join(tempHome, "Documents", "Filed") {
		t.Fatalf("unexpected storage root: %q", cfg.Storage.Root)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "filer.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.CacheTTL() != 30*time.Second {
		t.Fatalf("unexpected cache ttl: %s", cfg.CacheTTL())
	}
	if cfg.Organizer.ConflictStrategy != "rename" {
		t.Fatalf("unexpected conflict strategy: %q", cfg.Organizer.ConflictStrategy)
	}
	if cfg.Organizer.MaxRenameAttempts != 100 {
		t.Fatalf("unexpected rename attempts: %d", cfg.Organizer.MaxRenameAttempts)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
root = "~/filed"

[storage.drives]
cloud = "~/Dropbox/Filed"

[matching]
cache_ttl_seconds = 5
regex_timeout_ms = 250

[organizer]
conflict_strategy = "SKIP"

[watch]
debounce_ms = 500

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Storage.Root != filepath.Join(tempHome, "filed") {
		t.Fatalf("unexpected storage root: %q", cfg.Storage.Root)
	}
	root, ok := cfg.DriveRoot("cloud")
	if !ok || root != filepath.Join(tempHome, "Dropbox", "Filed") {
		t.Fatalf("unexpected drive root: %q ok=%v", root, ok)
	}
	if _, ok := cfg.DriveRoot("missing"); ok {
		t.Fatal("expected unknown drive to be absent")
	}
	if cfg.CacheTTL() != 5*time.Second {
		t.Fatalf("unexpected cache ttl: %s", cfg.CacheTTL())
	}
	if cfg.RegexTimeout() != 250*time.Millisecond {
		t.Fatalf("unexpected regex timeout: %s", cfg.RegexTimeout())
	}
	if cfg.Organizer.ConflictStrategy != "skip" {
		t.Fatalf("expected lower-cased strategy, got %q", cfg.Organizer.ConflictStrategy)
	}
	if cfg.DebounceDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.DebounceDelay())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging format: %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[storage]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestStorageRootFromEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FILER_STORAGE_ROOT", "~/from-env")
	t.Setenv("FILER_NTFY_TOPIC", "https://ntfy.sh/filer")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Root != filepath.Join(tempHome, "from-env") {
		t.Fatalf("unexpected storage root: %q", cfg.Storage.Root)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/filer" {
		t.Fatalf("unexpected ntfy topic: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"strategy", func(c *config.Config) { c.Organizer.ConflictStrategy = "merge" }, "conflict_strategy"},
		{"debounce", func(c *config.Config) { c.Watch.DebounceMs = 0 }, "debounce_ms"},
		{"regex timeout", func(c *config.Config) { c.Matching.RegexTimeoutMs = 0 }, "regex_timeout_ms"},
		{"glob", func(c *config.Config) { c.Watch.IgnorePatterns = []string{"["} }, "ignore_patterns"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"root", func(c *config.Config) { c.Storage.Root = "" }, "storage.root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Root = filepath.Join(base, "filed")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Storage.Root} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}
}

func TestCreateSampleProducesParsableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
