package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Each daemon run writes filer-<stamp>.log in the log directory; filer.log
// points at the newest one so `filer logs` has a stable path.
const (
	PointerName = "filer.log"

	runLogPrefix = "filer-"
	runLogSuffix = ".log"
	runStamp     = "20060102T150405.000Z"
)

// PointerPath returns the filer.log location inside logDir.
func PointerPath(logDir string) string {
	return filepath.Join(logDir, PointerName)
}

// RunLogPath names the log file for a daemon run started at started.
func RunLogPath(logDir string, started time.Time) string {
	return filepath.Join(logDir, runLogPrefix+started.UTC().Format(runStamp)+runLogSuffix)
}

// runLogTime reports when the run that wrote name started. Names without a
// valid stamp (hand-copied logs, older layouts) are not run logs.
func runLogTime(name string) (time.Time, bool) {
	if name == PointerName || !strings.HasPrefix(name, runLogPrefix) || !strings.HasSuffix(name, runLogSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, runLogPrefix), runLogSuffix)
	started, err := time.Parse(runStamp, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return started, true
}

// PointCurrent repoints filer.log at target, preferring a symlink and falling
// back to a hard link where symlinks are unavailable.
func PointCurrent(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	pointer := PointerPath(logDir)
	if err := os.Remove(pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, pointer); err == nil {
		return nil
	}
	if err := os.Link(target, pointer); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

// PruneRunLogs removes run logs whose run started more than retentionDays
// before now and returns how many were removed. The log filer.log resolves to
// is always kept, even when its run is older than the cutoff. A retentionDays
// of 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, logDir string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 || strings.TrimSpace(logDir) == "" {
		return 0
	}
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return 0
	}
	current, _ := os.Stat(PointerPath(logDir))
	cutoff := now.AddDate(0, 0, -retentionDays)

	pruned := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		started, ok := runLogTime(entry.Name())
		if !ok || !started.Before(cutoff) {
			continue
		}
		path := filepath.Join(logDir, entry.Name())
		if current != nil {
			if info, err := entry.Info(); err == nil && os.SameFile(current, info) {
				continue
			}
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				Path(path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "old run log remains on disk"),
			)
			continue
		}
		pruned++
		if logger != nil {
			logger.Debug("run log pruned", Path(path), String(FieldEventType, "log_pruned"))
		}
	}
	return pruned
}
