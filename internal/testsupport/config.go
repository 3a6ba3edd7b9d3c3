package testsupport

import (
	"path/filepath"
	"testing"

	"filer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.Root = filepath.Join(base, "filed")
	cfgVal.Watch.DebounceMs = 20
	cfgVal.Watch.RestartDelaySeconds = 1
	cfgVal.Notifications.MinIntervalSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDrive maps a drive identifier onto a directory under the test base.
func WithDrive(id string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Storage.Drives == nil {
			b.cfg.Storage.Drives = map[string]string{}
		}
		b.cfg.Storage.Drives[id] = filepath.Join(b.baseDir, "drives", id)
	}
}

// WithConflictStrategy overrides the default conflict strategy.
func WithConflictStrategy(strategy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Organizer.ConflictStrategy = strategy
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
