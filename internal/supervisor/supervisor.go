// Package supervisor owns the live FolderWatcher instances for every persisted
// watched folder. It starts and stops them from stored configuration, reports
// their runtime status, runs one-shot sweeps of existing files, and exposes
// the event bus that pipeline notifications are published on.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"filer/internal/config"
	"filer/internal/events"
	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/services"
	"filer/internal/taxonomy"
	"filer/internal/watcher"
)

var (
	// ErrConfigNotFound means no watched folder exists with the requested id.
	ErrConfigNotFound = errors.New("watched folder configuration not found")
	// ErrDirectoryMissing means the configured directory is gone.
	ErrDirectoryMissing = watcher.ErrDirectoryMissing
)

// Store is the persistence the supervisor reads configuration from.
type Store interface {
	ListWatchedFolders(ctx context.Context, activeOnly bool) ([]taxonomy.WatchedFolderConfig, error)
	GetWatchedFolder(ctx context.Context, id int64) (taxonomy.WatchedFolderConfig, error)
	TouchLastChecked(ctx context.Context, id int64, at time.Time) error
}

// Processor runs the classification pipeline for one file.
type Processor interface {
	ProcessFile(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string) watcher.Outcome
}

// Options wires optional collaborators.
type Options struct {
	// Source defaults to fsnotify.
	Source  watcher.Source
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Status is the runtime view of one persisted watched folder.
type Status struct {
	ID        int64
	Path      string
	Active    bool
	Running   bool
	CanRun    bool
	State     watcher.State
	LastError string
}

// Supervisor manages one FolderWatcher per watched folder id.
type Supervisor struct {
	store     Store
	processor Processor
	bus       *events.Bus
	source    watcher.Source
	base      *slog.Logger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	debounce     time.Duration
	restartDelay time.Duration
	ignore       []string

	mu       sync.Mutex
	watchers map[int64]*watcher.FolderWatcher
}

// New builds a supervisor. A nil bus gets a private one so OnEvent still works.
func New(cfg *config.Config, st Store, processor Processor, bus *events.Bus, opts Options) *Supervisor {
	logger := logging.NewComponentLogger(opts.Logger, "supervisor")
	if bus == nil {
		bus = events.NewBus(opts.Logger)
	}
	source := opts.Source
	if source == nil {
		source = watcher.FSNotifySource{Logger: opts.Logger}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Supervisor{
		store:     st,
		processor: processor,
		bus:       bus,
		source:    source,
		base:      opts.Logger,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       now,
		watchers:  make(map[int64]*watcher.FolderWatcher),
	}
	if cfg != nil {
		s.debounce = cfg.DebounceDelay()
		s.restartDelay = cfg.RestartDelay()
		s.ignore = append([]string(nil), cfg.Watch.IgnorePatterns...)
	}
	return s
}

// Bus returns the event bus pipeline notifications are published on.
func (s *Supervisor) Bus() *events.Bus { return s.bus }

// OnEvent subscribes fn to typ and returns the unsubscribe function.
func (s *Supervisor) OnEvent(typ events.Type, fn events.Handler) func() {
	return s.bus.Subscribe(typ, fn)
}

// StartAll starts a watcher for every active configuration. Failures for one
// folder do not prevent the others from starting; they are joined into the
// returned error.
func (s *Supervisor) StartAll(ctx context.Context) error {
	configs, err := s.store.ListWatchedFolders(ctx, true)
	if err != nil {
		return services.Wrap(services.ErrTransient, "supervisor", "start all", "Unable to list watched folders", err)
	}
	var errs []error
	started := 0
	for _, cfg := range configs {
		if err := s.start(ctx, cfg); err != nil {
			errs = append(errs, fmt.Errorf("watch %d (%s): %w", cfg.ID, cfg.Path, err))
			continue
		}
		started++
	}
	s.logger.Info("watchers started",
		logging.Int("started", started),
		logging.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// StopAll stops every live watcher. Each watcher cancels its pending debounce
// timers before Stop returns, so no callback fires after StopAll.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	live := make([]*watcher.FolderWatcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		live = append(live, w)
	}
	s.watchers = make(map[int64]*watcher.FolderWatcher)
	s.mu.Unlock()

	for _, w := range live {
		w.Stop()
	}
	s.metrics.SetActiveWatchers(0)
	if len(live) > 0 {
		s.logger.Info("watchers stopped", logging.Int("count", len(live)))
	}
}

// StartWatcher (re)starts the watcher for one configuration. A running
// watcher for the same id is stopped first.
func (s *Supervisor) StartWatcher(ctx context.Context, id int64) error {
	cfg, err := s.loadConfig(ctx, id)
	if err != nil {
		return err
	}
	return s.start(ctx, cfg)
}

// StopWatcher stops the watcher for id. It reports whether one was live.
func (s *Supervisor) StopWatcher(id int64) bool {
	s.mu.Lock()
	w, ok := s.watchers[id]
	delete(s.watchers, id)
	active := len(s.watchers)
	s.mu.Unlock()
	if !ok {
		return false
	}
	w.Stop()
	s.metrics.SetActiveWatchers(active)
	return true
}

func (s *Supervisor) start(ctx context.Context, cfg taxonomy.WatchedFolderConfig) error {
	s.StopWatcher(cfg.ID)

	w := watcher.New(cfg, watcher.Options{
		Source:         s.source,
		Process:        s.process,
		Debounce:       s.debounce,
		RestartDelay:   s.restartDelay,
		IgnorePatterns: s.ignore,
		OnError:        s.watcherFailed,
		Logger:         s.base,
		Metrics:        s.metrics,
	})
	if err := w.Start(ctx); err != nil {
		logging.WarnWithContext(s.logger, "watcher not started", "watcher_start_failed",
			logging.Int64(logging.FieldWatchID, cfg.ID),
			logging.Path(cfg.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the directory exists and is readable"),
			logging.String(logging.FieldImpact, "new files in this folder are not organized"),
		)
		return err
	}

	s.mu.Lock()
	previous := s.watchers[cfg.ID]
	s.watchers[cfg.ID] = w
	active := len(s.watchers)
	s.mu.Unlock()
	if previous != nil {
		// a concurrent StartWatcher for the same id won the race to register
		previous.Stop()
	}
	s.metrics.SetActiveWatchers(active)
	return nil
}

func (s *Supervisor) process(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string) {
	s.processor.ProcessFile(ctx, cfg, path)
}

func (s *Supervisor) watcherFailed(cfg taxonomy.WatchedFolderConfig, err error) {
	s.bus.Publish(events.Event{
		Type:    events.WatcherError,
		WatchID: cfg.ID,
		Path:    cfg.Path,
		Message: err.Error(),
	})
}

// Status reports every persisted configuration with its live watcher state.
func (s *Supervisor) Status(ctx context.Context) ([]Status, error) {
	configs, err := s.store.ListWatchedFolders(ctx, false)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "supervisor", "status", "Unable to list watched folders", err)
	}
	s.mu.Lock()
	live := make(map[int64]*watcher.FolderWatcher, len(s.watchers))
	for id, w := range s.watchers {
		live[id] = w
	}
	s.mu.Unlock()

	statuses := make([]Status, 0, len(configs))
	for _, cfg := range configs {
		status := Status{
			ID:     cfg.ID,
			Path:   cfg.Path,
			Active: cfg.Active,
			CanRun: directoryReachable(cfg.Path),
			State:  watcher.StateStopped,
		}
		if w, ok := live[cfg.ID]; ok {
			status.State = w.State()
			status.Running = status.State != watcher.StateStopped
			if lastErr := w.LastError(); lastErr != nil {
				status.LastError = lastErr.Error()
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses, nil
}

// Running reports how many watchers are live.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Supervisor) loadConfig(ctx context.Context, id int64) (taxonomy.WatchedFolderConfig, error) {
	cfg, err := s.store.GetWatchedFolder(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return cfg, services.Wrap(services.ErrNotFound, "supervisor", "load config",
				fmt.Sprintf("Watched folder %d does not exist", id), ErrConfigNotFound)
		}
		return cfg, services.Wrap(services.ErrTransient, "supervisor", "load config", "Unable to read watched folder", err)
	}
	return cfg, nil
}

func directoryReachable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
