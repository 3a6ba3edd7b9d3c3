package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"filer/internal/fileutil"
	"filer/internal/logging"
	"filer/internal/services"
	"filer/internal/taxonomy"
)

var (
	// ErrNotMovable means the record is not in the moved state.
	ErrNotMovable = errors.New("record not in movable state")
	// ErrFileMissing means nothing exists at the record's current path.
	ErrFileMissing = errors.New("file missing at destination")
	// ErrOriginalOccupied means something already sits at the original path.
	ErrOriginalOccupied = errors.New("original location occupied")
)

// RollbackOutcome reports a completed rollback.
type RollbackOutcome struct {
	RecordID     int64
	RestoredPath string
	FromPath     string
	CrossDevice  bool
}

// RollbackMove returns a moved file to its original location and marks the
// record undone. Concurrent rollbacks of one record serialize on a per-record
// lock and the status transition is conditional, so exactly one succeeds.
func (o *Organizer) RollbackMove(ctx context.Context, recordID int64) (RollbackOutcome, error) {
	outcome, err := o.rollbackMove(ctx, recordID)
	if err != nil {
		o.metrics.RecordRollback(string(services.Classify(err)))
	} else {
		o.metrics.RecordRollback("undone")
	}
	return outcome, err
}

func (o *Organizer) rollbackMove(ctx context.Context, recordID int64) (RollbackOutcome, error) {
	ctx = services.WithRecordID(ctx, recordID)
	logger := logging.WithContext(ctx, o.logger)

	unlockRecord := o.locks.Lock(fmt.Sprintf("record:%d", recordID))
	defer unlockRecord()

	record, err := o.store.GetOrganizedFile(ctx, recordID)
	if err != nil {
		return RollbackOutcome{}, err
	}
	if record.Status != taxonomy.StatusMoved {
		return RollbackOutcome{}, services.Wrap(services.ErrState, "organizer", "rollback",
			fmt.Sprintf("Record %d is %s", recordID, record.Status), ErrNotMovable)
	}

	unlockDir := o.locks.Lock("dir:" + filepath.Dir(record.OriginalPath))
	defer unlockDir()

	present, err := fileutil.Exists(record.CurrentPath)
	if err != nil {
		return RollbackOutcome{}, wrapFSError("rollback", "Unable to inspect current path", err)
	}
	if !present {
		return RollbackOutcome{}, services.Wrap(services.ErrNotFound, "organizer", "rollback",
			fmt.Sprintf("Nothing at %s", record.CurrentPath), ErrFileMissing)
	}
	occupied, err := fileutil.Exists(record.OriginalPath)
	if err != nil {
		return RollbackOutcome{}, wrapFSError("rollback", "Unable to inspect original path", err)
	}
	if occupied {
		return RollbackOutcome{}, services.Wrap(services.ErrConflict, "organizer", "rollback",
			fmt.Sprintf("%s is occupied", record.OriginalPath), ErrOriginalOccupied)
	}

	if err := os.MkdirAll(filepath.Dir(record.OriginalPath), 0o755); err != nil {
		return RollbackOutcome{}, wrapFSError("rollback", "Unable to recreate original directory", err)
	}
	result, err := fileutil.Move(record.CurrentPath, record.OriginalPath, fileutil.MoveOptions{Verify: o.cfg.Organizer.VerifyCopies})
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return RollbackOutcome{}, services.Wrap(services.ErrConflict, "organizer", "rollback",
				fmt.Sprintf("%s was taken during rollback", record.OriginalPath), ErrOriginalOccupied)
		}
		return RollbackOutcome{}, wrapMoveError(err)
	}

	ok, err := o.store.TransitionOrganizedFile(ctx, recordID, taxonomy.StatusMoved, taxonomy.StatusUndone, record.OriginalPath)
	if err == nil && !ok {
		err = services.Wrap(services.ErrState, "organizer", "rollback",
			fmt.Sprintf("Record %d changed state during rollback", recordID), ErrNotMovable)
	}
	if err != nil {
		o.restoreAfterFailedTransition(ctx, record)
		return RollbackOutcome{}, err
	}

	logger.Info("move rolled back",
		logging.String("restored", record.OriginalPath),
		logging.String("from", record.CurrentPath),
		logging.Bool("cross_device", result.CrossDevice),
	)
	return RollbackOutcome{
		RecordID:     recordID,
		RestoredPath: record.OriginalPath,
		FromPath:     record.CurrentPath,
		CrossDevice:  result.CrossDevice,
	}, nil
}

// restoreAfterFailedTransition puts the file back where the record says it is.
func (o *Organizer) restoreAfterFailedTransition(ctx context.Context, record taxonomy.OrganizedFileRecord) {
	logger := logging.WithContext(ctx, o.logger)
	if _, err := fileutil.Move(record.OriginalPath, record.CurrentPath, fileutil.MoveOptions{Verify: o.cfg.Organizer.VerifyCopies}); err != nil {
		logging.ErrorWithContext(logger, "rollback left file at original path without updating record", "rollback_inconsistent",
			logging.String("original", record.OriginalPath),
			logging.String("recorded", record.CurrentPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "move the file back manually or mark the record undone"),
		)
	}
}
