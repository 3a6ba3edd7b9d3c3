package watcher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"filer/internal/config"
	"filer/internal/events"
	"filer/internal/logging"
	"filer/internal/matcher"
	"filer/internal/organizer"
	"filer/internal/store"
	"filer/internal/taxonomy"
	"filer/internal/testsupport"
	"filer/internal/watcher"
)

type pipelineFixture struct {
	cfg      *config.Config
	store    *store.Store
	engine   *matcher.Engine
	bus      *events.Bus
	pipeline *watcher.Pipeline
	inbox    string

	mu        sync.Mutex
	published []events.Event
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedHierarchy(t, st)

	f := &pipelineFixture{
		cfg:   cfg,
		store: st,
		bus:   events.NewBus(logging.NewNop()),
		inbox: filepath.Join(testsupport.BaseDir(cfg), "inbox"),
	}
	if err := os.MkdirAll(f.inbox, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}
	f.engine = matcher.NewEngine(st, matcher.Options{Logger: logging.NewNop()})
	f.pipeline = watcher.NewPipeline(watcher.PipelineDeps{
		Matcher: f.engine,
		Mover:   organizer.New(cfg, st, logging.NewNop(), nil),
		Store:   st,
		Bus:     f.bus,
		Logger:  logging.NewNop(),
	})
	f.bus.Subscribe(events.All, func(e events.Event) {
		f.mu.Lock()
		f.published = append(f.published, e)
		f.mu.Unlock()
	})
	return f
}

func (f *pipelineFixture) watch(t *testing.T, cfg taxonomy.WatchedFolderConfig) taxonomy.WatchedFolderConfig {
	t.Helper()
	cfg.Path = f.inbox
	cfg.Active = true
	created, err := f.store.CreateWatchedFolder(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateWatchedFolder: %v", err)
	}
	return created
}

func (f *pipelineFixture) file(t *testing.T, name string) string {
	t.Helper()
	return testsupport.WriteFiles(t, f.inbox, name)[0]
}

func (f *pipelineFixture) emitted() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.published...)
}

func (f *pipelineFixture) actions(t *testing.T, folderID int64) []taxonomy.ActivityAction {
	t.Helper()
	entries, err := f.store.ListActivity(context.Background(), folderID, 0)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	actions := make([]taxonomy.ActivityAction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].Action)
	}
	return actions
}

func (f *pipelineFixture) counters(t *testing.T, id int64) (int64, int64) {
	t.Helper()
	cfg, err := f.store.GetWatchedFolder(context.Background(), id)
	if err != nil {
		t.Fatalf("GetWatchedFolder: %v", err)
	}
	return cfg.FilesProcessed, cfg.FilesOrganized
}

func equalActions(got []taxonomy.ActivityAction, want ...taxonomy.ActivityAction) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestProcessFileAutoOrganizes(t *testing.T) {
	f := newPipelineFixture(t)
	rule := testsupport.MustCreateRule(t, f.store, taxonomy.Rule{Type: taxonomy.RuleExtension, Pattern: "pdf", TargetID: "11.01"})
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true, NotifyOnOrganize: true})
	path := f.file(t, "invoice.pdf")

	out := f.pipeline.ProcessFile(context.Background(), cfg, path)
	if out.Action != taxonomy.ActionAutoOrganized || out.Move == nil {
		t.Fatalf("expected auto organize, got %+v", out)
	}
	if _, err := os.Stat(out.Move.DestinationPath); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if got := f.actions(t, cfg.ID); !equalActions(got, taxonomy.ActionDetected, taxonomy.ActionAutoOrganized) {
		t.Fatalf("unexpected activity %v", got)
	}
	if processed, organized := f.counters(t, cfg.ID); processed != 1 || organized != 1 {
		t.Fatalf("expected counters 1/1, got %d/%d", processed, organized)
	}
	stored, err := f.store.GetRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if stored.MatchCount != 1 {
		t.Fatalf("expected match count 1, got %d", stored.MatchCount)
	}
	evts := f.emitted()
	if len(evts) != 1 || evts[0].Type != events.FileOrganized || evts[0].Folder != "11.01" {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestProcessFileQueuesWhenAutoOrganizeDisabled(t *testing.T) {
	f := newPipelineFixture(t)
	rule := testsupport.MustCreateRule(t, f.store, taxonomy.Rule{Type: taxonomy.RuleExtension, Pattern: "pdf", TargetID: "11.01"})
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: false})
	path := f.file(t, "invoice.pdf")

	out := f.pipeline.ProcessFile(context.Background(), cfg, path)
	if out.Action != taxonomy.ActionQueued || out.Suggestion == nil {
		t.Fatalf("expected queued with candidate, got %+v", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("queued file must stay in place: %v", err)
	}
	entries, err := f.store.ListActivity(context.Background(), cfg.ID, 1)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if entries[0].Action != taxonomy.ActionQueued || entries[0].TargetFolder != "11.01" {
		t.Fatalf("expected queued entry with candidate, got %+v", entries[0])
	}
	if processed, organized := f.counters(t, cfg.ID); processed != 1 || organized != 0 {
		t.Fatalf("expected counters 1/0, got %d/%d", processed, organized)
	}
	stored, err := f.store.GetRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if stored.MatchCount != 0 {
		t.Fatalf("suggestions alone must not count as matches, got %d", stored.MatchCount)
	}
	evts := f.emitted()
	if len(evts) != 1 || evts[0].Type != events.FileQueued || evts[0].Folder != "11.01" {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestProcessFileQueuesBelowThreshold(t *testing.T) {
	f := newPipelineFixture(t)
	testsupport.MustCreateRule(t, f.store, taxonomy.Rule{Type: taxonomy.RuleRegex, Pattern: `quarterly`, TargetID: "11.02"})
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true, ConfidenceThreshold: taxonomy.ConfidenceHigh})
	path := f.file(t, "quarterly-summary.txt")

	out := f.pipeline.ProcessFile(context.Background(), cfg, path)
	if out.Action != taxonomy.ActionQueued || out.Suggestion == nil || out.Suggestion.Confidence != taxonomy.ConfidenceLow {
		t.Fatalf("expected low-confidence candidate to queue, got %+v", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file moved despite low confidence: %v", err)
	}
}

func TestProcessFileWithoutSuggestionQueues(t *testing.T) {
	f := newPipelineFixture(t)
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true})
	path := f.file(t, "zzqx.bin")

	out := f.pipeline.ProcessFile(context.Background(), cfg, path)
	if out.Action != taxonomy.ActionQueued || out.Suggestion != nil {
		t.Fatalf("expected queue without candidate, got %+v", out)
	}
	evts := f.emitted()
	if len(evts) != 1 || evts[0].Type != events.FileQueued || evts[0].Folder != "" {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestProcessFileSkipsDisallowedTypes(t *testing.T) {
	f := newPipelineFixture(t)
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true, FileTypes: []string{"image"}})
	path := f.file(t, "invoice.pdf")

	out := f.pipeline.ProcessFile(context.Background(), cfg, path)
	if out.Action != taxonomy.ActionSkipped {
		t.Fatalf("expected skipped, got %+v", out)
	}
	if got := f.actions(t, cfg.ID); !equalActions(got, taxonomy.ActionSkipped) {
		t.Fatalf("unexpected activity %v", got)
	}
	if processed, _ := f.counters(t, cfg.ID); processed != 0 {
		t.Fatalf("skipped files are not processed, got %d", processed)
	}
}

type failingMover struct{}

func (failingMover) MoveFile(context.Context, organizer.MoveRequest) (organizer.MoveOutcome, error) {
	return organizer.MoveOutcome{}, errors.New("storage offline")
}

type panickingMatcher struct{}

func (panickingMatcher) MatchFile(context.Context, taxonomy.FileDescriptor) ([]taxonomy.MatchSuggestion, error) {
	panic("matcher exploded")
}

func (panickingMatcher) RecordMatch(context.Context, int64) error { return nil }

func TestProcessFileMoveFailureBecomesErrorEntry(t *testing.T) {
	f := newPipelineFixture(t)
	testsupport.MustCreateRule(t, f.store, taxonomy.Rule{Type: taxonomy.RuleExtension, Pattern: "pdf", TargetID: "11.01"})
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true})
	pipeline := watcher.NewPipeline(watcher.PipelineDeps{
		Matcher: f.engine,
		Mover:   failingMover{},
		Store:   f.store,
		Bus:     f.bus,
		Logger:  logging.NewNop(),
	})

	out := pipeline.ProcessFile(context.Background(), cfg, f.file(t, "invoice.pdf"))
	if out.Action != taxonomy.ActionError || out.Err == nil {
		t.Fatalf("expected error outcome, got %+v", out)
	}
	entries, err := f.store.ListActivity(context.Background(), cfg.ID, 1)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if entries[0].Action != taxonomy.ActionError || entries[0].ErrorMessage != "storage offline" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	evts := f.emitted()
	if len(evts) != 1 || evts[0].Type != events.FileError {
		t.Fatalf("unexpected events %+v", evts)
	}
}

func TestProcessFileRecoversFromPanics(t *testing.T) {
	f := newPipelineFixture(t)
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true})
	pipeline := watcher.NewPipeline(watcher.PipelineDeps{
		Matcher: panickingMatcher{},
		Mover:   failingMover{},
		Store:   f.store,
		Bus:     f.bus,
		Logger:  logging.NewNop(),
	})

	out := pipeline.ProcessFile(context.Background(), cfg, f.file(t, "report.pdf"))
	if out.Action != taxonomy.ActionError {
		t.Fatalf("expected error outcome after panic, got %+v", out)
	}
	if got := f.actions(t, cfg.ID); !equalActions(got, taxonomy.ActionDetected, taxonomy.ActionError) {
		t.Fatalf("unexpected activity %v", got)
	}
}

func TestProcessFileVanishedFileIsSkipped(t *testing.T) {
	f := newPipelineFixture(t)
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true})

	out := f.pipeline.ProcessFile(context.Background(), cfg, filepath.Join(f.inbox, "gone.pdf"))
	if out.Action != taxonomy.ActionSkipped {
		t.Fatalf("expected skipped, got %+v", out)
	}
}

func TestProcessFileSkipsSymlinks(t *testing.T) {
	f := newPipelineFixture(t)
	testsupport.MustCreateRule(t, f.store, taxonomy.Rule{Type: taxonomy.RuleExtension, Pattern: "pdf", TargetID: "11.01"})
	cfg := f.watch(t, taxonomy.WatchedFolderConfig{AutoOrganize: true})

	target := filepath.Join(t.TempDir(), "real.pdf")
	if err := os.WriteFile(target, []byte("content"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	link := filepath.Join(f.inbox, "linked.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	out := f.pipeline.ProcessFile(context.Background(), cfg, link)
	if out.Action != taxonomy.ActionSkipped {
		t.Fatalf("expected skipped, got %+v", out)
	}
	if got := f.actions(t, cfg.ID); !equalActions(got, taxonomy.ActionSkipped) {
		t.Fatalf("unexpected activity %v", got)
	}
	if evts := f.emitted(); len(evts) != 0 {
		t.Fatalf("expected no events, got %+v", evts)
	}
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("link should stay in place: %v", err)
	}
}
