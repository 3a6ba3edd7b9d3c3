package supervisor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"filer/internal/logging"
	"filer/internal/services"
	"filer/internal/taxonomy"
	"filer/internal/watcher"
)

// SweepResult aggregates one ProcessExistingFiles pass.
type SweepResult struct {
	Processed int
	Organized int
	Queued    int
	Skipped   int
	Errors    int
}

// ProcessExistingFiles runs every regular, non-hidden file directly inside
// the configured directory through the pipeline once. Subdirectories are not
// descended. last_checked_at is stamped when the listing completes.
func (s *Supervisor) ProcessExistingFiles(ctx context.Context, id int64) (SweepResult, error) {
	var result SweepResult
	cfg, err := s.loadConfig(ctx, id)
	if err != nil {
		return result, err
	}
	ctx = services.WithWatchID(ctx, cfg.ID)
	logger := logging.WithContext(ctx, s.logger)

	entries, err := os.ReadDir(cfg.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, services.Wrap(services.ErrNotFound, "supervisor", "sweep",
				cfg.Path+" does not exist", ErrDirectoryMissing)
		}
		return result, services.Wrap(services.ErrPermission, "supervisor", "sweep", "Unable to list "+cfg.Path, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, services.Wrap(services.ErrTimeout, "supervisor", "sweep", "Sweep cancelled", err)
		}
		if entry.IsDir() || watcher.Ignored(entry.Name(), s.ignore) {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		out := s.processor.ProcessFile(ctx, cfg, filepath.Join(cfg.Path, entry.Name()))
		result.Processed++
		switch out.Action {
		case taxonomy.ActionAutoOrganized:
			result.Organized++
		case taxonomy.ActionQueued:
			result.Queued++
		case taxonomy.ActionSkipped:
			result.Skipped++
		case taxonomy.ActionError:
			result.Errors++
		}
	}

	if err := s.store.TouchLastChecked(ctx, cfg.ID, s.now()); err != nil {
		logging.WarnWithContext(logger, "last checked time not recorded", "touch_last_checked_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status shows an older sweep time"),
		)
	}
	logger.Info("sweep complete",
		logging.Path(cfg.Path),
		logging.Int("processed", result.Processed),
		logging.Int("organized", result.Organized),
		logging.Int("queued", result.Queued),
		logging.Int("skipped", result.Skipped),
		logging.Int("errors", result.Errors),
	)
	return result, nil
}
