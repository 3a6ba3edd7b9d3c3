package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"filer/internal/events"
	"filer/internal/filetype"
	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/organizer"
	"filer/internal/services"
	"filer/internal/taxonomy"
)

// Matcher ranks destinations for a file.
type Matcher interface {
	MatchFile(ctx context.Context, file taxonomy.FileDescriptor) ([]taxonomy.MatchSuggestion, error)
	RecordMatch(ctx context.Context, ruleID int64) error
}

// Mover relocates a file.
type Mover interface {
	MoveFile(ctx context.Context, req organizer.MoveRequest) (organizer.MoveOutcome, error)
}

// ActivityStore persists pipeline decisions.
type ActivityStore interface {
	AddActivity(ctx context.Context, entry taxonomy.WatchActivityEntry) (taxonomy.WatchActivityEntry, error)
	IncrementWatchCounters(ctx context.Context, id int64, processed, organized int64) error
}

// Outcome is the final decision for one file.
type Outcome struct {
	Action     taxonomy.ActivityAction
	Path       string
	Suggestion *taxonomy.MatchSuggestion
	Move       *organizer.MoveOutcome
	Err        error
}

// Pipeline classifies a file, matches it and either organizes or queues it.
type Pipeline struct {
	matcher Matcher
	mover   Mover
	store   ActivityStore
	bus     *events.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// PipelineDeps wires a Pipeline. Bus and Metrics may be nil.
type PipelineDeps struct {
	Matcher Matcher
	Mover   Mover
	Store   ActivityStore
	Bus     *events.Bus
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewPipeline builds a pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		matcher: deps.Matcher,
		mover:   deps.Mover,
		store:   deps.Store,
		bus:     deps.Bus,
		logger:  logging.NewComponentLogger(deps.Logger, "pipeline"),
		metrics: deps.Metrics,
	}
}

// ProcessFile runs one classification pass. It never returns an error or
// panics: failures become an error activity entry and a file_error event.
func (p *Pipeline) ProcessFile(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string) (out Outcome) {
	ctx = services.WithWatchID(ctx, cfg.ID)
	out.Path = path
	defer func() {
		if r := recover(); r != nil {
			out = p.fail(ctx, cfg, path, out.Suggestion, fmt.Errorf("pipeline panic: %v", r))
		}
		p.metrics.RecordPipeline(string(out.Action))
	}()

	info, err := os.Lstat(path)
	if err == nil && !info.Mode().IsRegular() {
		p.record(ctx, cfg, path, taxonomy.ActionSkipped, nil, "not a regular file")
		out.Action = taxonomy.ActionSkipped
		return out
	}
	file, err := taxonomy.DescribeFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.record(ctx, cfg, path, taxonomy.ActionSkipped, nil, "file no longer exists")
			out.Action = taxonomy.ActionSkipped
			return out
		}
		return p.fail(ctx, cfg, path, nil, err)
	}
	path = file.Path
	out.Path = path

	if !filetype.Allowed(cfg.FileTypes, file.Ext) {
		p.record(ctx, cfg, path, taxonomy.ActionSkipped, nil,
			fmt.Sprintf("type %s not in allow-list", file.TypeCategory))
		out.Action = taxonomy.ActionSkipped
		return out
	}
	p.record(ctx, cfg, path, taxonomy.ActionDetected, nil, "")

	suggestions, err := p.matcher.MatchFile(ctx, file)
	if err != nil {
		return p.fail(ctx, cfg, path, nil, err)
	}
	if len(suggestions) == 0 {
		return p.queue(ctx, cfg, path, nil, "no matching folder")
	}
	best := suggestions[0]
	out.Suggestion = &best

	if !best.Confidence.AtLeast(cfg.ConfidenceThreshold) {
		return p.queue(ctx, cfg, path, &best,
			fmt.Sprintf("confidence %s below %s", best.Confidence, cfg.ConfidenceThreshold))
	}
	if !cfg.AutoOrganize {
		return p.queue(ctx, cfg, path, &best, "auto organize disabled")
	}
	return p.organize(ctx, cfg, path, best)
}

func (p *Pipeline) organize(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string, best taxonomy.MatchSuggestion) Outcome {
	logger := logging.WithContext(ctx, p.logger)
	out := Outcome{Path: path, Suggestion: &best}

	moved, err := p.mover.MoveFile(ctx, organizer.MoveRequest{
		SourcePath:   path,
		FolderNumber: best.Folder.Number,
		RuleID:       best.RuleID(),
	})
	if err != nil && moved.Status != organizer.MoveStatusMoved {
		return p.fail(ctx, cfg, path, &best, err)
	}
	out.Move = &moved

	if moved.Status == organizer.MoveStatusSkipped {
		p.record(ctx, cfg, path, taxonomy.ActionSkipped, &best, moved.Reason)
		p.bump(ctx, cfg, 1, 0)
		out.Action = taxonomy.ActionSkipped
		return out
	}

	message := ""
	if err != nil {
		message = err.Error()
		out.Err = err
	}
	p.record(ctx, cfg, path, taxonomy.ActionAutoOrganized, &best, message)
	p.bump(ctx, cfg, 1, 1)
	if ruleID := best.RuleID(); ruleID != nil {
		if err := p.matcher.RecordMatch(ctx, *ruleID); err != nil {
			logging.WarnWithContext(logger, "rule match count not updated", "record_match_failed",
				logging.RuleID(*ruleID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "rule statistics undercount this match"),
			)
		}
	}
	logger.Info("file auto organized",
		logging.Decision("watch_pipeline", string(taxonomy.ActionAutoOrganized), best.Reason,
			logging.Path(moved.DestinationPath))...)
	if cfg.NotifyOnOrganize {
		p.bus.Publish(events.Event{
			Type:     events.FileOrganized,
			WatchID:  cfg.ID,
			Path:     moved.DestinationPath,
			Filename: moved.Filename,
			Folder:   best.Folder.Number,
			RecordID: moved.RecordID,
			RuleID:   best.RuleID(),
			Message:  best.Reason,
		})
	}
	out.Action = taxonomy.ActionAutoOrganized
	return out
}

func (p *Pipeline) queue(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string, best *taxonomy.MatchSuggestion, reason string) Outcome {
	logger := logging.WithContext(ctx, p.logger)
	p.record(ctx, cfg, path, taxonomy.ActionQueued, best, "")
	p.bump(ctx, cfg, 1, 0)
	logger.Info("file queued for review",
		logging.Decision("watch_pipeline", string(taxonomy.ActionQueued), reason, logging.Path(path))...)

	evt := events.Event{
		Type:     events.FileQueued,
		WatchID:  cfg.ID,
		Path:     path,
		Filename: filepath.Base(path),
		Message:  reason,
	}
	if best != nil {
		evt.Folder = best.Folder.Number
		evt.RuleID = best.RuleID()
	}
	p.bus.Publish(evt)
	return Outcome{Action: taxonomy.ActionQueued, Path: path, Suggestion: best}
}

func (p *Pipeline) fail(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string, best *taxonomy.MatchSuggestion, err error) Outcome {
	logger := logging.WithContext(ctx, p.logger)
	logging.WarnWithContext(logger, "file processing failed", "watch_pipeline_error",
		logging.Path(path),
		logging.String("error_kind", string(services.Classify(err))),
		logging.Error(err),
		logging.String(logging.FieldImpact, "file left in place"),
	)
	p.record(ctx, cfg, path, taxonomy.ActionError, best, err.Error())
	evt := events.Event{
		Type:     events.FileError,
		WatchID:  cfg.ID,
		Path:     path,
		Filename: filepath.Base(path),
		Message:  err.Error(),
	}
	if best != nil {
		evt.Folder = best.Folder.Number
	}
	p.bus.Publish(evt)
	return Outcome{Action: taxonomy.ActionError, Path: path, Suggestion: best, Err: err}
}

// record writes an activity entry; store failures are logged and swallowed.
func (p *Pipeline) record(ctx context.Context, cfg taxonomy.WatchedFolderConfig, path string, action taxonomy.ActivityAction, best *taxonomy.MatchSuggestion, message string) {
	entry := taxonomy.WatchActivityEntry{
		FolderID:     cfg.ID,
		Filename:     filepath.Base(path),
		Path:         path,
		Action:       action,
		ErrorMessage: message,
	}
	if best != nil {
		entry.RuleID = best.RuleID()
		entry.TargetFolder = best.Folder.Number
	}
	if _, err := p.store.AddActivity(ctx, entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "activity entry not written", "activity_write_failed",
			logging.String("action", string(action)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "watch history is incomplete"),
		)
	}
}

func (p *Pipeline) bump(ctx context.Context, cfg taxonomy.WatchedFolderConfig, processed, organized int64) {
	if err := p.store.IncrementWatchCounters(ctx, cfg.ID, processed, organized); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "watch counters not updated", "counter_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "folder statistics undercount"),
		)
	}
}
