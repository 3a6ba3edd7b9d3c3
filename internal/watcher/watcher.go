package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/services"
	"filer/internal/taxonomy"
)

// ErrDirectoryMissing means a watched directory does not exist.
var ErrDirectoryMissing = errors.New("watched directory missing")

// State is the lifecycle position of a FolderWatcher.
type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateError      State = "error"
	StateRestarting State = "restarting"
)

const (
	defaultDebounce     = 2 * time.Second
	defaultRestartDelay = 5 * time.Second
	stopTimeout         = 3 * time.Second
)

// ProcessFunc handles one debounced path.
type ProcessFunc func(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string)

// Options configures a FolderWatcher.
type Options struct {
	Source         Source
	Process        ProcessFunc
	Debounce       time.Duration
	RestartDelay   time.Duration
	IgnorePatterns []string
	// OnError is called for every notification failure before a restart.
	OnError func(cfg taxonomy.WatchedFolderConfig, err error)
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// FolderWatcher watches one configured directory.
type FolderWatcher struct {
	cfg          taxonomy.WatchedFolderConfig
	source       Source
	process      ProcessFunc
	restartDelay time.Duration
	ignore       []string
	onError      func(taxonomy.WatchedFolderConfig, error)
	logger       *slog.Logger
	metrics      *metrics.Metrics
	debouncer    *Debouncer

	mu      sync.Mutex
	state   State
	lastErr error
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// inflight counts pipeline passes started by fire. Add happens under mu
	// while the watcher is not stopped.
	inflight sync.WaitGroup
}

// New builds a stopped watcher for cfg.
func New(cfg taxonomy.WatchedFolderConfig, opts Options) *FolderWatcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	w := &FolderWatcher{
		cfg:          cfg,
		source:       opts.Source,
		process:      opts.Process,
		restartDelay: opts.RestartDelay,
		ignore:       opts.IgnorePatterns,
		onError:      opts.OnError,
		logger:       logging.NewComponentLogger(opts.Logger, "watcher").With(logging.Int64(logging.FieldWatchID, cfg.ID)),
		metrics:      opts.Metrics,
		state:        StateStopped,
	}
	w.debouncer = NewDebouncer(opts.Debounce, w.fire)
	return w
}

// Config returns the configuration the watcher was built with.
func (w *FolderWatcher) Config() taxonomy.WatchedFolderConfig { return w.cfg }

// State returns the current lifecycle state.
func (w *FolderWatcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastError returns the most recent notification failure, if any.
func (w *FolderWatcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Pending reports paths waiting on their debounce timer.
func (w *FolderWatcher) Pending() int { return w.debouncer.Pending() }

// Start validates the directory and opens the subscription. ctx supplies
// values only; the watcher runs until Stop.
func (w *FolderWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateStopped {
		w.mu.Unlock()
		return services.Wrap(services.ErrState, "watcher", "start", fmt.Sprintf("Watcher is %s", w.state), nil)
	}
	w.state = StateStarting
	w.mu.Unlock()

	if err := checkDirectory(w.cfg.Path); err != nil {
		w.setState(StateStopped, err)
		return err
	}
	sub, err := w.source.Watch(w.cfg.Path, w.cfg.IncludeSubdirectories)
	if err != nil {
		w.setState(StateStopped, err)
		return services.Wrap(services.ErrTransient, "watcher", "start", "Unable to watch "+w.cfg.Path, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = services.WithWatchID(runCtx, w.cfg.ID)
	w.mu.Lock()
	if w.state != StateStarting {
		w.mu.Unlock()
		cancel()
		_ = sub.Close()
		return services.Wrap(services.ErrState, "watcher", "start", "Watcher stopped while starting", nil)
	}
	w.ctx = runCtx
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = StateRunning
	w.lastErr = nil
	done := w.done
	w.mu.Unlock()

	go w.run(runCtx, sub, done)
	w.logger.Info("watcher started",
		logging.Path(w.cfg.Path),
		logging.Bool("recursive", w.cfg.IncludeSubdirectories),
	)
	return nil
}

// Stop cancels the subscription and every pending debounce timer, then waits
// (bounded) for passes already handed to Process. It is safe to call on a
// stopped watcher.
func (w *FolderWatcher) Stop() {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.state = StateStopped
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.debouncer.CancelAll()
	deadline := time.NewTimer(stopTimeout)
	defer deadline.Stop()
	if done != nil {
		select {
		case <-done:
		case <-deadline.C:
			logging.WarnWithContext(w.logger, "watcher did not stop in time", "watcher_stop_timeout",
				logging.Path(w.cfg.Path),
				logging.String(logging.FieldImpact, "a notification goroutine may linger until it unblocks"),
			)
		}
	}
	passes := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(passes)
	}()
	select {
	case <-passes:
	case <-deadline.C:
		logging.WarnWithContext(w.logger, "pipeline pass still running after stop", "watcher_pass_timeout",
			logging.Path(w.cfg.Path),
			logging.String(logging.FieldImpact, "the pass may write to a closed store"),
		)
	}
	w.logger.Info("watcher stopped", logging.Path(w.cfg.Path))
}

func (w *FolderWatcher) run(ctx context.Context, sub Subscription, done chan struct{}) {
	defer close(done)
	for {
		err := w.consume(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		w.setState(StateError, err)
		logging.WarnWithContext(w.logger, "watcher notification failed", "watcher_error",
			logging.Path(w.cfg.Path),
			logging.Error(err),
			logging.Duration("restart_in", w.restartDelay),
			logging.String(logging.FieldErrorHint, "check that the directory is still mounted and readable"),
			logging.String(logging.FieldImpact, "changes are not detected until the watcher restarts"),
		)
		if w.onError != nil {
			w.onError(w.cfg, err)
		}
		if sub = w.resubscribe(ctx); sub == nil {
			return
		}
	}
}

func (w *FolderWatcher) consume(ctx context.Context, sub Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-sub.Events():
			if !ok {
				return errors.New("event stream closed")
			}
			w.handle(path)
		case err, ok := <-sub.Errors():
			if !ok {
				return errors.New("error stream closed")
			}
			return err
		}
	}
}

// resubscribe retries at a fixed delay until it succeeds or ctx ends.
func (w *FolderWatcher) resubscribe(ctx context.Context) Subscription {
	for {
		w.setState(StateRestarting, nil)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.restartDelay):
		}
		if err := checkDirectory(w.cfg.Path); err != nil {
			w.setState(StateRestarting, err)
			continue
		}
		sub, err := w.source.Watch(w.cfg.Path, w.cfg.IncludeSubdirectories)
		if err != nil {
			w.setState(StateRestarting, err)
			continue
		}
		w.metrics.RecordWatcherRestart()
		w.mu.Lock()
		if ctx.Err() != nil {
			w.mu.Unlock()
			_ = sub.Close()
			return nil
		}
		w.state = StateRunning
		w.mu.Unlock()
		w.logger.Info("watcher restarted", logging.Path(w.cfg.Path))
		return sub
	}
}

func (w *FolderWatcher) handle(path string) {
	if Ignored(filepath.Base(path), w.ignore) {
		return
	}
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.debouncer.Cancel(path)
		}
		return
	}
	if info.IsDir() {
		return
	}
	if !w.cfg.IncludeSubdirectories && filepath.Dir(path) != filepath.Clean(w.cfg.Path) {
		return
	}
	w.debouncer.Add(path)
}

func (w *FolderWatcher) fire(path string) {
	w.mu.Lock()
	ctx := w.ctx
	if w.state == StateStopped || ctx == nil || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()
	w.process(ctx, w.cfg, path)
}

func (w *FolderWatcher) setState(state State, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateStopped && state != StateStopped {
		return
	}
	w.state = state
	if err != nil {
		w.lastErr = err
	}
}

func checkDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "watcher", "check directory", path+" does not exist", ErrDirectoryMissing)
		}
		return services.Wrap(services.ErrPermission, "watcher", "check directory", "Unable to access "+path, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "watcher", "check directory", path+" is not a directory", ErrDirectoryMissing)
	}
	return nil
}

// Ignored reports whether name is hidden, temporary, or matches one of the
// glob patterns.
func Ignored(name string, patterns []string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}
