package postgres

import (
	"context"
	"database/sql"

	"iams/internal/model"
	"iams/internal/repository"
)

const directoryColumns = `directory_id, name, parent_id, full_path, kind, owner_id, is_public,
		is_system_directory, description, icon, color, sort_order,
		can_create_subdirs, can_upload_files, created_at, modified_at`

// DirectoryPostgres is a PostgreSQL implementation of repository.DirectoryRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DirectoryPostgres struct {
	db *sql.DB
}

// NewDirectoryPostgres creates a new DirectoryPostgres repository.
func NewDirectoryPostgres(db *sql.DB) *DirectoryPostgres {
	return &DirectoryPostgres{db: db}
}

var _ repository.DirectoryRepository = (*DirectoryPostgres)(nil)

func scanDirectory(s interface{ Scan(...any) error }) (*model.Directory, error) {
	var d model.Directory
	if err := s.Scan(
		&d.ID,
		&d.Name,
		&d.ParentID,
		&d.FullPath,
		&d.Kind,
		&d.OwnerID,
		&d.IsPublic,
		&d.IsSystemDirectory,
		&d.Description,
		&d.Icon,
		&d.Color,
		&d.SortOrder,
		&d.CanCreateSubdirs,
		&d.CanUploadFiles,
		&d.CreatedAt,
		&d.ModifiedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new directory row and returns the stored record.
func (r *DirectoryPostgres) Create(ctx context.Context, dir *model.Directory) (*model.Directory, error) {
	const q = `
		INSERT INTO directory (name, parent_id, full_path, kind, owner_id, is_public,
			is_system_directory, description, icon, color, sort_order,
			can_create_subdirs, can_upload_files)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + directoryColumns
	row := r.db.QueryRowContext(ctx, q,
		dir.Name,
		dir.ParentID,
		dir.FullPath,
		dir.Kind,
		dir.OwnerID,
		dir.IsPublic,
		dir.IsSystemDirectory,
		dir.Description,
		dir.Icon,
		dir.Color,
		dir.SortOrder,
		dir.CanCreateSubdirs,
		dir.CanUploadFiles,
	)
	return scanDirectory(row)
}

// FindRoot fetches the single directory without a parent.
func (r *DirectoryPostgres) FindRoot(ctx context.Context) (*model.Directory, error) {
	const q = `
		SELECT ` + directoryColumns + `
		FROM directory
		WHERE parent_id IS NULL
	`
	return scanDirectory(r.db.QueryRowContext(ctx, q))
}

// FindChildByName fetches a child of parentID by case-insensitive name match.
func (r *DirectoryPostgres) FindChildByName(ctx context.Context, parentID int64, name string) (*model.Directory, error) {
	const q = `
		SELECT ` + directoryColumns + `
		FROM directory
		WHERE parent_id = $1 AND lower(name) = lower($2)
	`
	return scanDirectory(r.db.QueryRowContext(ctx, q, parentID, name))
}

// ListAll returns every directory ordered so parents precede their children.
func (r *DirectoryPostgres) ListAll(ctx context.Context) ([]model.Directory, error) {
	const q = `
		SELECT ` + directoryColumns + `
		FROM directory
		ORDER BY full_path ASC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Directory, 0)
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ancestors walks the parent chain with a recursive CTE and returns it
// root-first, ending at the requested directory.
func (r *DirectoryPostgres) Ancestors(ctx context.Context, id int64) ([]model.Directory, error) {
	const q = `
		WITH RECURSIVE chain AS (
			SELECT ` + directoryColumns + `, 0 AS depth
			FROM directory WHERE directory_id = $1
			UNION ALL
			SELECT d.directory_id, d.name, d.parent_id, d.full_path, d.kind, d.owner_id, d.is_public,
				d.is_system_directory, d.description, d.icon, d.color, d.sort_order,
				d.can_create_subdirs, d.can_upload_files, d.created_at, d.modified_at, chain.depth + 1
			FROM directory d
			JOIN chain ON chain.parent_id = d.directory_id
		)
		SELECT ` + directoryColumns + `
		FROM chain
		ORDER BY depth DESC
	`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Directory, 0)
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, sql.ErrNoRows
	}
	return items, nil
}

// FileCounts aggregates file rows per directory id.
func (r *DirectoryPostgres) FileCounts(ctx context.Context) (map[int64]int64, error) {
	const q = `
		SELECT directory_id, COUNT(*)
		FROM file_metadata
		WHERE directory_id IS NOT NULL
		GROUP BY directory_id
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
