// Package daemonrun hosts the filer daemon process: logger setup, log
// retention, the PID file, and the signal-driven run loop.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"filer/internal/config"
	"filer/internal/daemon"
	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/preflight"
	"filer/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the filer daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	logPath := logging.RunLogPath(cfg.Paths.LogDir, started)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := logging.PointCurrent(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update filer.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, started)
	logConfigSnapshot(logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	for _, result := range preflight.Failed(preflight.RunAll(signalCtx, cfg, st)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "files routed through this path may fail to organize"),
			logging.String(logging.FieldErrorHint, "run 'filer doctor' for the full report"),
		)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	d, err := daemon.New(cfg, st, daemon.Options{Logger: logger, Metrics: m, LogPath: logPath})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("filer daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// PIDPath returns the daemon PID file location.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "filerd.pid")
}

// ReadPID returns the PID recorded by a running daemon, or 0 when no PID file exists.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	drives := make([]string, 0, len(cfg.Storage.Drives))
	for id := range cfg.Storage.Drives {
		drives = append(drives, id)
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("storage_root", cfg.Storage.Root),
		logging.Any("drives", drives),
		logging.String("conflict_strategy", cfg.Organizer.ConflictStrategy),
		logging.Bool("heuristics", cfg.Matching.HeuristicsEnabled),
		logging.Duration("debounce", cfg.DebounceDelay()),
		logging.Duration("restart_delay", cfg.RestartDelay()),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
