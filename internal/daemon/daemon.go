package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"filer/internal/config"
	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/notifications"
	"filer/internal/store"
	"filer/internal/supervisor"
	"filer/internal/watcher"
)

// Options configures optional daemon collaborators.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Source  watcher.Source
	LogPath string
}

// Daemon coordinates the watchers and API server and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	services *Services
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	api        *apiServer
	stopNotify func()

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Watchers     []supervisor.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, opts Options) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "filerd.lock")
	d := &Daemon{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "daemon"),
		metrics: opts.Metrics,
		services: BuildServices(cfg, st, ServiceOptions{
			Logger:  logger,
			Metrics: opts.Metrics,
			Source:  opts.Source,
		}),
		notifier: notifications.NewService(cfg, opts.Metrics),
		logPath:  opts.LogPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Services exposes the wired components.
func (d *Daemon) Services() *Services { return d.services }

// Start acquires the daemon lock, starts every active watcher, and brings up
// the API server when one is configured. Watchers that fail to start are
// logged; they do not abort the daemon.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another filer daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.stopNotify = notifications.Attach(d.services.Bus, d.notifier, d.logger, d.metrics)
	if err := d.services.Supervisor.StartAll(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "some watchers did not start", "watchers_start_partial",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'filer status' to see which folders cannot run"),
			logging.String(logging.FieldImpact, "files in those folders are not organized automatically"),
		)
	}

	d.running.Store(true)
	d.logger.Info("filer daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("watchers", d.services.Supervisor.Running()),
	)
	return nil
}

// Stop stops the watchers and API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.services.Supervisor.StopAll()
	if d.stopNotify != nil {
		d.stopNotify()
		d.stopNotify = nil
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.String("lock", d.lockPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next daemon start may report an existing instance"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("filer daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.services.Store != nil {
		return d.services.Store.Close()
	}
	return nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status. Watcher status is omitted when
// the store cannot be read.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	watchers, err := d.services.Supervisor.Status(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "watcher status unavailable", "watcher_status_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status omits watcher details"),
		)
		return status
	}
	status.Watchers = watchers
	return status
}
