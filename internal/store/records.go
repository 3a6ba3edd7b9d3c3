package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"filer/internal/services"
	"filer/internal/taxonomy"
)

const recordColumns = "id, filename, original_path, current_path, folder_number, rule_id, metadata_json, status, organized_at, updated_at"

func scanRecord(scanner rowScanner) (taxonomy.OrganizedFileRecord, error) {
	var (
		record      taxonomy.OrganizedFileRecord
		ruleID      sql.NullInt64
		metadata    sql.NullString
		status      string
		organizedAt string
		updatedAt   string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.Filename,
		&record.OriginalPath,
		&record.CurrentPath,
		&record.FolderNumber,
		&ruleID,
		&metadata,
		&status,
		&organizedAt,
		&updatedAt,
	); err != nil {
		return record, err
	}
	record.RuleID = int64Ptr(ruleID)
	record.Status = taxonomy.RecordStatus(status)
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &record.Metadata)
	}
	if t, err := parseTimeString(organizedAt); err == nil {
		record.OrganizedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		record.UpdatedAt = t
	}
	return record, nil
}

// CreateOrganizedFile inserts an audit record and returns it with its id.
func (s *Store) CreateOrganizedFile(ctx context.Context, record taxonomy.OrganizedFileRecord) (taxonomy.OrganizedFileRecord, error) {
	if record.Status == "" {
		record.Status = taxonomy.StatusMoved
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return record, fmt.Errorf("encode metadata: %w", err)
	}
	now := s.now().UTC()
	if record.OrganizedAt.IsZero() {
		record.OrganizedAt = now
	}
	record.UpdatedAt = now
	res, err := s.execWithRetry(ctx,
		`INSERT INTO organized_files (filename, original_path, current_path, folder_number, rule_id, metadata_json, status, organized_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Filename, record.OriginalPath, record.CurrentPath, record.FolderNumber,
		nullableInt64(record.RuleID), string(metadata), string(record.Status),
		formatTime(record.OrganizedAt), formatTime(now),
	)
	if err != nil {
		return record, fmt.Errorf("insert organized file: %w", err)
	}
	record.ID, _ = res.LastInsertId()
	return record, nil
}

// GetOrganizedFile fetches one record.
func (s *Store) GetOrganizedFile(ctx context.Context, id int64) (taxonomy.OrganizedFileRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM organized_files WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record, services.Wrap(services.ErrNotFound, "store", "get organized file", fmt.Sprintf("record %d does not exist", id), nil)
	}
	if err != nil {
		return record, fmt.Errorf("get organized file: %w", err)
	}
	return record, nil
}

// TransitionOrganizedFile moves a record from one status to another only when
// it is currently in from, optionally updating its current path. It reports
// whether the transition happened.
func (s *Store) TransitionOrganizedFile(ctx context.Context, id int64, from, to taxonomy.RecordStatus, currentPath string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE organized_files SET status = ?, current_path = COALESCE(?, current_path), updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), nullableString(currentPath), s.timestamp(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition organized file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition organized file: %w", err)
	}
	return n == 1, nil
}

// RecordFilter narrows ListOrganizedFiles.
type RecordFilter struct {
	Status taxonomy.RecordStatus
	Limit  int
}

// ListOrganizedFiles returns records newest first.
func (s *Store) ListOrganizedFiles(ctx context.Context, filter RecordFilter) ([]taxonomy.OrganizedFileRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM organized_files`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY organized_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organized files: %w", err)
	}
	defer rows.Close()
	var records []taxonomy.OrganizedFileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organized file: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
