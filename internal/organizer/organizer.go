package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"filer/internal/config"
	"filer/internal/fileutil"
	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/services"
	"filer/internal/taxonomy"
)

// Store is the persistence the organizer needs.
type Store interface {
	FolderByNumber(ctx context.Context, number string) (taxonomy.FolderTarget, error)
	CreateOrganizedFile(ctx context.Context, record taxonomy.OrganizedFileRecord) (taxonomy.OrganizedFileRecord, error)
	GetOrganizedFile(ctx context.Context, id int64) (taxonomy.OrganizedFileRecord, error)
	TransitionOrganizedFile(ctx context.Context, id int64, from, to taxonomy.RecordStatus, currentPath string) (bool, error)
}

// MoveRequest asks for one file to be placed into a folder.
type MoveRequest struct {
	SourcePath   string
	FolderNumber string
	// Strategy overrides organizer.conflict_strategy when set.
	Strategy Strategy
	// DriveID selects a [storage.drives] base root.
	DriveID string
	RuleID  *int64
}

// MoveStatus summarizes a move attempt.
type MoveStatus string

const (
	MoveStatusMoved   MoveStatus = "moved"
	MoveStatusSkipped MoveStatus = "skipped"
)

// MoveOutcome reports where a file ended up.
type MoveOutcome struct {
	Status          MoveStatus
	SourcePath      string
	DestinationPath string
	Filename        string
	FolderNumber    string
	RecordID        int64
	Action          Action
	CrossDevice     bool
	Reason          string
}

// Organizer executes moves and rollbacks.
type Organizer struct {
	store    Store
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	resolver *ConflictResolver
	locks    keyedMutex
	now      func() time.Time
}

// New constructs an organizer. m may be nil.
func New(cfg *config.Config, store Store, logger *slog.Logger, m *metrics.Metrics) *Organizer {
	return &Organizer{
		store:    store,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "organizer"),
		metrics:  m,
		resolver: NewConflictResolver(cfg.Organizer.MaxRenameAttempts),
		now:      time.Now,
	}
}

// MoveFile relocates req.SourcePath into the requested folder and records the
// move. When the record cannot be written the outcome is still returned along
// with a transient error, since the file has already moved.
func (o *Organizer) MoveFile(ctx context.Context, req MoveRequest) (MoveOutcome, error) {
	outcome, err := o.moveFile(ctx, req)
	switch {
	case err != nil && outcome.Status == MoveStatusMoved:
		o.metrics.RecordMove("unrecorded")
	case err != nil:
		o.metrics.RecordMove("failed")
	default:
		o.metrics.RecordMove(string(outcome.Status))
	}
	return outcome, err
}

func (o *Organizer) moveFile(ctx context.Context, req MoveRequest) (MoveOutcome, error) {
	logger := logging.WithContext(ctx, o.logger)

	source, info, err := validateSource(req.SourcePath)
	if err != nil {
		return MoveOutcome{}, err
	}
	number := strings.TrimSpace(req.FolderNumber)
	if _, _, err := taxonomy.ParseFolderNumber(number); err != nil {
		return MoveOutcome{}, services.Wrap(services.ErrValidation, "organizer", "validate folder", "Folder number must look like 11.01", err)
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy, err = ParseStrategy(o.cfg.Organizer.ConflictStrategy)
		if err != nil {
			return MoveOutcome{}, err
		}
	}

	folder, err := o.store.FolderByNumber(ctx, number)
	if err != nil {
		return MoveOutcome{}, err
	}
	baseRoot, err := o.baseRoot(folder, req.DriveID)
	if err != nil {
		return MoveOutcome{}, err
	}
	dest, err := BuildDestinationPath(folder, filepath.Base(source), baseRoot)
	if err != nil {
		return MoveOutcome{}, err
	}

	outcome := MoveOutcome{SourcePath: source, FolderNumber: folder.Number, Filename: filepath.Base(dest)}
	if dest == source {
		outcome.Status = MoveStatusSkipped
		outcome.Action = ActionSkip
		outcome.DestinationPath = dest
		outcome.Reason = "already in place"
		return outcome, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		if isStorageUnavailable(err) {
			logStorageUnavailable(logger, err)
		}
		return MoveOutcome{}, wrapFSError("create destination", "Unable to create destination directory", err)
	}

	unlock := o.locks.Lock("dir:" + filepath.Dir(dest))
	defer unlock()

	resolution, err := o.resolver.Resolve(dest, strategy)
	if err != nil {
		return MoveOutcome{}, err
	}
	outcome.Action = resolution.Action
	outcome.DestinationPath = resolution.Path
	outcome.Filename = filepath.Base(resolution.Path)
	logger.Info("conflict decision",
		logging.Decision("conflict_resolution", string(resolution.Action), string(strategy), logging.Path(resolution.Path))...)
	if resolution.Action == ActionSkip {
		outcome.Status = MoveStatusSkipped
		outcome.Reason = "destination exists"
		logger.Info("move skipped", logging.String("source", source), logging.String("destination", resolution.Path))
		return outcome, nil
	}

	result, err := fileutil.Move(source, resolution.Path, fileutil.MoveOptions{
		Overwrite: resolution.Action == ActionOverwrite,
		Verify:    o.cfg.Organizer.VerifyCopies,
	})
	if err != nil {
		return MoveOutcome{}, wrapMoveError(err)
	}
	outcome.Status = MoveStatusMoved
	outcome.CrossDevice = result.CrossDevice

	desc := taxonomy.NewFileDescriptor(source, info.Size())
	batchID, _ := services.BatchIDFromContext(ctx)
	record, err := o.store.CreateOrganizedFile(ctx, taxonomy.OrganizedFileRecord{
		Filename:     outcome.Filename,
		OriginalPath: source,
		CurrentPath:  resolution.Path,
		FolderNumber: folder.Number,
		RuleID:       req.RuleID,
		Status:       taxonomy.StatusMoved,
		OrganizedAt:  o.now(),
		Metadata: taxonomy.FileMetadata{
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			Extension:    desc.Ext,
			TypeCategory: string(desc.TypeCategory),
			CrossDevice:  result.CrossDevice,
			BatchID:      batchID,
		},
	})
	if err != nil {
		logging.ErrorWithContext(logger, "move succeeded but audit record failed", "record_write_failed",
			logging.String("source", source),
			logging.String("destination", resolution.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database; the file is in place but cannot be rolled back"),
		)
		return outcome, services.Wrap(services.ErrTransient, "organizer", "record move", "File moved but the audit record was not written", err)
	}
	outcome.RecordID = record.ID

	logger.Info("file organized",
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("source", source),
		logging.String("destination", resolution.Path),
		logging.String("folder", folder.Number),
		logging.Bool("cross_device", result.CrossDevice),
	)
	return outcome, nil
}

// baseRoot picks the drive mapping, then the area root, then storage.root.
func (o *Organizer) baseRoot(folder taxonomy.FolderTarget, driveID string) (string, error) {
	if id := strings.TrimSpace(driveID); id != "" {
		root, ok := o.cfg.DriveRoot(id)
		if !ok {
			return "", services.Wrap(services.ErrConfiguration, "organizer", "resolve drive",
				fmt.Sprintf("Drive %q is not mapped; add it under [storage.drives]", id), nil)
		}
		return root, nil
	}
	if root := strings.TrimSpace(folder.AreaRoot); root != "" {
		return root, nil
	}
	return o.cfg.Storage.Root, nil
}

func validateSource(path string) (string, os.FileInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil, services.Wrap(services.ErrValidation, "organizer", "validate source", "Source path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, services.Wrap(services.ErrValidation, "organizer", "validate source", "Source path is invalid", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", nil, wrapFSError("stat source", fmt.Sprintf("Source %s is not accessible", abs), err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, services.Wrap(services.ErrValidation, "organizer", "validate source",
			fmt.Sprintf("Source %s is not a regular file", abs), nil)
	}
	return abs, info, nil
}

func wrapFSError(operation, message string, err error) error {
	marker := services.ErrTransient
	switch {
	case errors.Is(err, fs.ErrNotExist):
		marker = services.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		marker = services.ErrPermission
	case errors.Is(err, fs.ErrExist):
		marker = services.ErrConflict
	}
	return services.Wrap(marker, "organizer", operation, message, err)
}

// wrapMoveError keeps copy and rename failures distinguishable: copy fallback
// failures classify as cross_device, rename failures by their cause.
func wrapMoveError(err error) error {
	if errors.Is(err, fileutil.ErrCopyFailed) {
		return services.Wrap(services.ErrCrossDevice, "organizer", "copy file", "Cross-device copy failed; source left in place", err)
	}
	return wrapFSError("rename file", "Rename into destination failed", err)
}

var storageUnavailableErrors = []error{
	syscall.ENODEV,
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EIO,
	syscall.ESTALE,
}

func isStorageUnavailable(err error) bool {
	for _, target := range storageUnavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logStorageUnavailable(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "storage unavailable", "storage_unavailable",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that storage.root or the drive mount is online"),
		logging.String(logging.FieldImpact, "file left in place"),
	)
}
