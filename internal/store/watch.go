package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"filer/internal/services"
	"filer/internal/taxonomy"
)

const watchColumns = "id, path, is_active, auto_organize, confidence_threshold, include_subdirectories, file_types_json, notify_on_organize, files_processed, files_organized, last_checked_at, created_at"

func scanWatchedFolder(scanner rowScanner) (taxonomy.WatchedFolderConfig, error) {
	var (
		cfg          taxonomy.WatchedFolderConfig
		active       int
		autoOrganize int
		threshold    string
		recursive    int
		fileTypes    sql.NullString
		notify       int
		lastChecked  sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(
		&cfg.ID,
		&cfg.Path,
		&active,
		&autoOrganize,
		&threshold,
		&recursive,
		&fileTypes,
		&notify,
		&cfg.FilesProcessed,
		&cfg.FilesOrganized,
		&lastChecked,
		&createdRaw,
	); err != nil {
		return cfg, err
	}
	cfg.Active = active != 0
	cfg.AutoOrganize = autoOrganize != 0
	cfg.ConfidenceThreshold, _ = taxonomy.ParseConfidence(threshold)
	cfg.IncludeSubdirectories = recursive != 0
	cfg.FileTypes = decodeStrings(fileTypes)
	cfg.NotifyOnOrganize = notify != 0
	cfg.LastCheckedAt = parseNullTime(lastChecked)
	if t, err := parseTimeString(createdRaw); err == nil {
		cfg.CreatedAt = t
	}
	return cfg, nil
}

// CreateWatchedFolder inserts a watched directory. Paths are stored absolute
// and must be unique.
func (s *Store) CreateWatchedFolder(ctx context.Context, cfg taxonomy.WatchedFolderConfig) (taxonomy.WatchedFolderConfig, error) {
	if cfg.Path == "" {
		return cfg, services.Wrap(services.ErrValidation, "store", "create watched folder", "path is required", nil)
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return cfg, services.Wrap(services.ErrValidation, "store", "create watched folder", "invalid path", err)
	}
	cfg.Path = abs
	if cfg.ConfidenceThreshold == taxonomy.ConfidenceNone {
		cfg.ConfidenceThreshold = taxonomy.ConfidenceMedium
	}
	fileTypes, err := encodeStrings(cfg.FileTypes)
	if err != nil {
		return cfg, fmt.Errorf("encode file types: %w", err)
	}
	now := s.now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO watched_folders (path, is_active, auto_organize, confidence_threshold, include_subdirectories,
		file_types_json, notify_on_organize, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.Path, boolToInt(cfg.Active), boolToInt(cfg.AutoOrganize), cfg.ConfidenceThreshold.String(),
		boolToInt(cfg.IncludeSubdirectories), fileTypes, boolToInt(cfg.NotifyOnOrganize), formatTime(now),
	)
	if err != nil {
		return cfg, fmt.Errorf("insert watched folder: %w", err)
	}
	cfg.ID, _ = res.LastInsertId()
	cfg.CreatedAt = now
	return cfg, nil
}

// UpdateWatchedFolder replaces a watched folder's settings. Counters are left untouched.
func (s *Store) UpdateWatchedFolder(ctx context.Context, cfg taxonomy.WatchedFolderConfig) error {
	fileTypes, err := encodeStrings(cfg.FileTypes)
	if err != nil {
		return fmt.Errorf("encode file types: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE watched_folders SET is_active = ?, auto_organize = ?, confidence_threshold = ?, include_subdirectories = ?,
		file_types_json = ?, notify_on_organize = ? WHERE id = ?`,
		boolToInt(cfg.Active), boolToInt(cfg.AutoOrganize), cfg.ConfidenceThreshold.String(),
		boolToInt(cfg.IncludeSubdirectories), fileTypes, boolToInt(cfg.NotifyOnOrganize), cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("update watched folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update watched folder", fmt.Sprintf("watched folder %d does not exist", cfg.ID), nil)
	}
	return nil
}

// DeleteWatchedFolder removes a watched folder and its activity log.
func (s *Store) DeleteWatchedFolder(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM watched_folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete watched folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete watched folder", fmt.Sprintf("watched folder %d does not exist", id), nil)
	}
	return nil
}

// GetWatchedFolder fetches one watched folder.
func (s *Store) GetWatchedFolder(ctx context.Context, id int64) (taxonomy.WatchedFolderConfig, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+watchColumns+` FROM watched_folders WHERE id = ?`, id)
	cfg, err := scanWatchedFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, services.Wrap(services.ErrNotFound, "store", "get watched folder", fmt.Sprintf("watched folder %d does not exist", id), nil)
	}
	if err != nil {
		return cfg, fmt.Errorf("get watched folder: %w", err)
	}
	return cfg, nil
}

// ListWatchedFolders returns watched folders ordered by id.
func (s *Store) ListWatchedFolders(ctx context.Context, activeOnly bool) ([]taxonomy.WatchedFolderConfig, error) {
	query := `SELECT ` + watchColumns + ` FROM watched_folders`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ensureContext(ctx), query)
	if err != nil {
		return nil, fmt.Errorf("list watched folders: %w", err)
	}
	defer rows.Close()
	var configs []taxonomy.WatchedFolderConfig
	for rows.Next() {
		cfg, err := scanWatchedFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watched folder: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// IncrementWatchCounters adds to a watched folder's cumulative counters.
func (s *Store) IncrementWatchCounters(ctx context.Context, id int64, processed, organized int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE watched_folders SET files_processed = files_processed + ?, files_organized = files_organized + ? WHERE id = ?`,
		processed, organized, id)
	if err != nil {
		return fmt.Errorf("increment watch counters: %w", err)
	}
	return nil
}

// TouchLastChecked stamps a watched folder's last sweep time.
func (s *Store) TouchLastChecked(ctx context.Context, id int64, at time.Time) error {
	_, err := s.execWithRetry(ctx, `UPDATE watched_folders SET last_checked_at = ? WHERE id = ?`, nullableTime(&at), id)
	if err != nil {
		return fmt.Errorf("touch last checked: %w", err)
	}
	return nil
}

// AddActivity appends a watch activity entry.
func (s *Store) AddActivity(ctx context.Context, entry taxonomy.WatchActivityEntry) (taxonomy.WatchActivityEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO watch_activity (folder_id, filename, path, action, rule_id, target_folder, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.FolderID, entry.Filename, entry.Path, string(entry.Action), nullableInt64(entry.RuleID),
		nullableString(entry.TargetFolder), nullableString(entry.ErrorMessage), formatTime(entry.CreatedAt),
	)
	if err != nil {
		return entry, fmt.Errorf("insert watch activity: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return entry, nil
}

// ListActivity returns the most recent activity, optionally for one folder.
func (s *Store) ListActivity(ctx context.Context, folderID int64, limit int) ([]taxonomy.WatchActivityEntry, error) {
	query := `SELECT id, folder_id, filename, path, action, rule_id, target_folder, error_message, created_at FROM watch_activity`
	var args []any
	if folderID > 0 {
		query += ` WHERE folder_id = ?`
		args = append(args, folderID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list watch activity: %w", err)
	}
	defer rows.Close()
	var entries []taxonomy.WatchActivityEntry
	for rows.Next() {
		var (
			entry        taxonomy.WatchActivityEntry
			action       string
			ruleID       sql.NullInt64
			targetFolder sql.NullString
			errMessage   sql.NullString
			createdRaw   string
		)
		if err := rows.Scan(&entry.ID, &entry.FolderID, &entry.Filename, &entry.Path, &action, &ruleID,
			&targetFolder, &errMessage, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan watch activity: %w", err)
		}
		entry.Action = taxonomy.ActivityAction(action)
		entry.RuleID = int64Ptr(ruleID)
		entry.TargetFolder = targetFolder.String
		entry.ErrorMessage = errMessage.String
		if t, err := parseTimeString(createdRaw); err == nil {
			entry.CreatedAt = t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
