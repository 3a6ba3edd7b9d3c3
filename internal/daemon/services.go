package daemon

import (
	"log/slog"

	"filer/internal/config"
	"filer/internal/events"
	"filer/internal/matcher"
	"filer/internal/metrics"
	"filer/internal/organizer"
	"filer/internal/store"
	"filer/internal/supervisor"
	"filer/internal/watcher"
)

// Services bundles the components shared by the daemon and one-shot CLI
// commands.
type Services struct {
	Store      *store.Store
	Engine     *matcher.Engine
	Organizer  *organizer.Organizer
	Bus        *events.Bus
	Pipeline   *watcher.Pipeline
	Supervisor *supervisor.Supervisor
}

// ServiceOptions carries optional collaborators for BuildServices.
type ServiceOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Source overrides the fsnotify source, mostly for tests.
	Source watcher.Source
}

// BuildServices wires the matching engine, organizer, pipeline, and
// supervisor over st. Taxonomy mutations on st invalidate the engine cache.
func BuildServices(cfg *config.Config, st *store.Store, opts ServiceOptions) *Services {
	engine := matcher.NewEngine(st, matcher.Options{
		TTL:          cfg.CacheTTL(),
		RegexTimeout: cfg.RegexTimeout(),
		SlowRegex:    cfg.SlowRegexThreshold(),
		Heuristics:   cfg.Matching.HeuristicsEnabled,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	st.OnChange(engine.Invalidate)

	org := organizer.New(cfg, st, opts.Logger, opts.Metrics)
	bus := events.NewBus(opts.Logger)
	pipeline := watcher.NewPipeline(watcher.PipelineDeps{
		Matcher: engine,
		Mover:   org,
		Store:   st,
		Bus:     bus,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	sup := supervisor.New(cfg, st, pipeline, bus, supervisor.Options{
		Source:  opts.Source,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	return &Services{
		Store:      st,
		Engine:     engine,
		Organizer:  org,
		Bus:        bus,
		Pipeline:   pipeline,
		Supervisor: sup,
	}
}
