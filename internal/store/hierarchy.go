package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"filer/internal/services"
	"filer/internal/taxonomy"
)

// CreateArea inserts an area spanning start-end.
func (s *Store) CreateArea(ctx context.Context, area taxonomy.Area) (taxonomy.Area, error) {
	if strings.TrimSpace(area.Name) == "" {
		return area, services.Wrap(services.ErrValidation, "store", "create area", "name is required", nil)
	}
	if _, _, err := taxonomy.ParseAreaRange(area.Range()); err != nil {
		return area, services.Wrap(services.ErrValidation, "store", "create area", "invalid range", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO areas (range_start, range_end, name, root_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		area.Start, area.End, strings.TrimSpace(area.Name), nullableString(area.RootPath), s.timestamp(),
	)
	if err != nil {
		return area, fmt.Errorf("insert area: %w", err)
	}
	area.ID, _ = res.LastInsertId()
	s.notifyChange()
	return area, nil
}

// CreateCategory inserts a category under the area whose range contains its number.
func (s *Store) CreateCategory(ctx context.Context, category taxonomy.Category) (taxonomy.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return category, services.Wrap(services.ErrValidation, "store", "create category", "name is required", nil)
	}
	var areaID int64
	var areaStart int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, range_start FROM areas WHERE range_start <= ? AND range_end >= ?`,
		category.Number, category.Number,
	).Scan(&areaID, &areaStart)
	if errors.Is(err, sql.ErrNoRows) {
		return category, services.Wrap(services.ErrNotFound, "store", "create category",
			fmt.Sprintf("no area contains category %02d", category.Number), nil)
	}
	if err != nil {
		return category, fmt.Errorf("find area: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO categories (number, name, area_id, created_at) VALUES (?, ?, ?, ?)`,
		category.Number, strings.TrimSpace(category.Name), areaID, s.timestamp(),
	)
	if err != nil {
		return category, fmt.Errorf("insert category: %w", err)
	}
	category.ID, _ = res.LastInsertId()
	category.AreaStart = areaStart
	s.notifyChange()
	return category, nil
}

// CreateFolder inserts a folder; its category is derived from the "CC.SS" number.
func (s *Store) CreateFolder(ctx context.Context, folder taxonomy.FolderTarget) (taxonomy.FolderTarget, error) {
	categoryNumber, _, err := taxonomy.ParseFolderNumber(folder.Number)
	if err != nil {
		return folder, services.Wrap(services.ErrValidation, "store", "create folder", "invalid folder number", err)
	}
	if strings.TrimSpace(folder.Name) == "" {
		return folder, services.Wrap(services.ErrValidation, "store", "create folder", "name is required", nil)
	}
	var categoryID int64
	err = s.db.QueryRowContext(ensureContext(ctx), `SELECT id FROM categories WHERE number = ?`, categoryNumber).Scan(&categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return folder, services.Wrap(services.ErrNotFound, "store", "create folder",
			fmt.Sprintf("category %02d does not exist", categoryNumber), nil)
	}
	if err != nil {
		return folder, fmt.Errorf("find category: %w", err)
	}
	keywords, err := encodeStrings(folder.Keywords)
	if err != nil {
		return folder, fmt.Errorf("encode keywords: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO folders (number, name, category_id, storage_path, keywords_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(folder.Number), strings.TrimSpace(folder.Name), categoryID,
		nullableString(folder.StoragePath), keywords, s.timestamp(),
	)
	if err != nil {
		return folder, fmt.Errorf("insert folder: %w", err)
	}
	folder.ID, _ = res.LastInsertId()
	folder.CategoryNumber = categoryNumber
	s.notifyChange()
	return folder, nil
}

// DeleteFolder removes a folder by number.
func (s *Store) DeleteFolder(ctx context.Context, number string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM folders WHERE number = ?`, strings.TrimSpace(number))
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete folder", "folder "+number+" does not exist", nil)
	}
	s.notifyChange()
	return nil
}

// ListAreas returns every area ordered by range.
func (s *Store) ListAreas(ctx context.Context) ([]taxonomy.Area, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, range_start, range_end, name, root_path FROM areas ORDER BY range_start`)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	defer rows.Close()
	var areas []taxonomy.Area
	for rows.Next() {
		var (
			area taxonomy.Area
			root sql.NullString
		)
		if err := rows.Scan(&area.ID, &area.Start, &area.End, &area.Name, &root); err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		area.RootPath = root.String
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

const folderQuery = `SELECT f.id, f.number, f.name, f.storage_path, f.keywords_json,
	c.number, c.name, a.range_start, a.range_end, a.name, a.root_path
	FROM folders f
	JOIN categories c ON c.id = f.category_id
	JOIN areas a ON a.id = c.area_id`

func scanFolder(scanner rowScanner) (taxonomy.FolderTarget, error) {
	var (
		folder      taxonomy.FolderTarget
		storagePath sql.NullString
		keywords    sql.NullString
		areaStart   int
		areaEnd     int
		areaRoot    sql.NullString
	)
	if err := scanner.Scan(
		&folder.ID,
		&folder.Number,
		&folder.Name,
		&storagePath,
		&keywords,
		&folder.CategoryNumber,
		&folder.CategoryName,
		&areaStart,
		&areaEnd,
		&folder.AreaName,
		&areaRoot,
	); err != nil {
		return folder, err
	}
	folder.StoragePath = storagePath.String
	folder.Keywords = decodeStrings(keywords)
	folder.AreaRange = taxonomy.FormatAreaRange(areaStart, areaEnd)
	folder.AreaRoot = areaRoot.String
	return folder, nil
}

// Hierarchy returns every folder with its ancestry, ordered by folder number.
func (s *Store) Hierarchy(ctx context.Context) (taxonomy.Hierarchy, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), folderQuery+` ORDER BY c.number, f.number`)
	if err != nil {
		return taxonomy.Hierarchy{}, fmt.Errorf("load hierarchy: %w", err)
	}
	defer rows.Close()
	var folders []taxonomy.FolderTarget
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return taxonomy.Hierarchy{}, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return taxonomy.Hierarchy{}, err
	}
	return taxonomy.NewHierarchy(folders), nil
}

// FolderByNumber returns one folder by its "CC.SS" number.
func (s *Store) FolderByNumber(ctx context.Context, number string) (taxonomy.FolderTarget, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), folderQuery+` WHERE f.number = ?`, strings.TrimSpace(number))
	folder, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return folder, services.Wrap(services.ErrNotFound, "store", "folder lookup", "folder "+strconv.Quote(number)+" does not exist", nil)
	}
	if err != nil {
		return folder, fmt.Errorf("folder lookup: %w", err)
	}
	return folder, nil
}
