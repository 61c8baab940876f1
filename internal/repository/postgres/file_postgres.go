package postgres

import (
	"context"
	"database/sql"
	"strings"

	"iams/internal/model"
	"iams/internal/repository"
)

const fileColumns = `file_id, filename, original_filename, file_type, mime_type, file_size,
		storage_location, file_path, checksum, directory_id, uploaded_by, asset_id,
		project_id, description, tags, is_public, uploaded_at, last_accessed`

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func scanFile(s interface{ Scan(...any) error }) (*model.File, error) {
	var f model.File
	var tags string
	if err := s.Scan(
		&f.ID,
		&f.Filename,
		&f.OriginalFilename,
		&f.FileType,
		&f.MimeType,
		&f.FileSize,
		&f.StorageLocation,
		&f.FilePath,
		&f.Checksum,
		&f.DirectoryID,
		&f.UploadedBy,
		&f.AssetID,
		&f.ProjectID,
		&f.Description,
		&tags,
		&f.IsPublic,
		&f.UploadedAt,
		&f.LastAccessed,
	); err != nil {
		return nil, err
	}
	f.Tags = splitTags(tags)
	return &f, nil
}

// Create inserts the file row, its inline content row when present, and the
// version-1 history row in a single transaction.
func (r *FilePostgres) Create(ctx context.Context, file *model.File, inline []byte) (*model.File, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qFile = `
		INSERT INTO file_metadata (filename, original_filename, file_type, mime_type, file_size,
			storage_location, file_path, checksum, directory_id, uploaded_by, asset_id,
			project_id, description, tags, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + fileColumns
	row := tx.QueryRowContext(ctx, qFile,
		file.Filename,
		file.OriginalFilename,
		file.FileType,
		file.MimeType,
		file.FileSize,
		file.StorageLocation,
		file.FilePath,
		file.Checksum,
		file.DirectoryID,
		file.UploadedBy,
		file.AssetID,
		file.ProjectID,
		file.Description,
		joinTags(file.Tags),
		file.IsPublic,
	)
	stored, err := scanFile(row)
	if err != nil {
		return nil, err
	}

	if inline != nil {
		const qContent = `INSERT INTO file_content (file_id, content) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, qContent, stored.ID, inline); err != nil {
			return nil, err
		}
	}

	const qVersion = `
		INSERT INTO file_version (file_id, version_number, file_path, content, checksum, changed_by, change_description)
		VALUES ($1, 1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, qVersion,
		stored.ID,
		file.FilePath,
		inline,
		file.Checksum,
		file.UploadedBy,
		"initial upload",
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByID fetches a single file by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id int64) (*model.File, error) {
	const q = `
		SELECT ` + fileColumns + `
		FROM file_metadata
		WHERE file_id = $1
	`
	return scanFile(r.db.QueryRowContext(ctx, q, id))
}

// ListByDirectory returns files in a directory newest first; nil selects
// root-level files.
func (r *FilePostgres) ListByDirectory(ctx context.Context, directoryID *int64) ([]model.File, error) {
	var rows *sql.Rows
	var err error
	if directoryID == nil {
		const q = `
			SELECT ` + fileColumns + `
			FROM file_metadata
			WHERE directory_id IS NULL
			ORDER BY uploaded_at DESC, file_id DESC
		`
		rows, err = r.db.QueryContext(ctx, q)
	} else {
		const q = `
			SELECT ` + fileColumns + `
			FROM file_metadata
			WHERE directory_id = $1
			ORDER BY uploaded_at DESC, file_id DESC
		`
		rows, err = r.db.QueryContext(ctx, q, *directoryID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes the file row; dependent rows cascade. Returns rows deleted.
func (r *FilePostgres) Delete(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM file_metadata WHERE file_id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetContent returns the inline content bytes of a file.
func (r *FilePostgres) GetContent(ctx context.Context, fileID int64) ([]byte, error) {
	const q = `SELECT content FROM file_content WHERE file_id = $1`
	var content []byte
	if err := r.db.QueryRowContext(ctx, q, fileID).Scan(&content); err != nil {
		return nil, err
	}
	return content, nil
}

// TouchLastAccessed stamps last_accessed; missing rows are not an error.
func (r *FilePostgres) TouchLastAccessed(ctx context.Context, id int64) error {
	const q = `UPDATE file_metadata SET last_accessed = now() WHERE file_id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Revise appends the next version row and updates the current file row in one
// transaction. The version number is assigned inside the transaction from
// max(version_number) + 1.
func (r *FilePostgres) Revise(ctx context.Context, file *model.File, version *model.FileVersion, newInline []byte) (*model.FileVersion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qVersion = `
		INSERT INTO file_version (file_id, version_number, file_path, content, checksum, changed_by, change_description)
		SELECT $1, COALESCE(MAX(version_number), 0) + 1, $2, $3, $4, $5, $6
		FROM file_version WHERE file_id = $1
		RETURNING version_id, file_id, version_number, file_path, checksum, changed_by, change_description, created_at
	`
	var stored model.FileVersion
	if err := tx.QueryRowContext(ctx, qVersion,
		version.FileID,
		version.FilePath,
		version.Content,
		version.Checksum,
		version.ChangedBy,
		version.ChangeDescription,
	).Scan(
		&stored.ID,
		&stored.FileID,
		&stored.VersionNumber,
		&stored.FilePath,
		&stored.Checksum,
		&stored.ChangedBy,
		&stored.ChangeDescription,
		&stored.CreatedAt,
	); err != nil {
		return nil, err
	}

	const qFile = `
		UPDATE file_metadata
		SET file_size = $2, storage_location = $3, file_path = $4, checksum = $5
		WHERE file_id = $1
	`
	if _, err := tx.ExecContext(ctx, qFile,
		file.ID,
		file.FileSize,
		file.StorageLocation,
		file.FilePath,
		file.Checksum,
	); err != nil {
		return nil, err
	}

	const qDropInline = `DELETE FROM file_content WHERE file_id = $1`
	if _, err := tx.ExecContext(ctx, qDropInline, file.ID); err != nil {
		return nil, err
	}
	if newInline != nil {
		const qContent = `INSERT INTO file_content (file_id, content) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, qContent, file.ID, newInline); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListVersions returns the version history of a file, oldest first.
func (r *FilePostgres) ListVersions(ctx context.Context, fileID int64) ([]model.FileVersion, error) {
	const q = `
		SELECT version_id, file_id, version_number, file_path, checksum, changed_by, change_description, created_at
		FROM file_version
		WHERE file_id = $1
		ORDER BY version_number ASC
	`
	rows, err := r.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.FileVersion, 0)
	for rows.Next() {
		var v model.FileVersion
		if err := rows.Scan(
			&v.ID,
			&v.FileID,
			&v.VersionNumber,
			&v.FilePath,
			&v.Checksum,
			&v.ChangedBy,
			&v.ChangeDescription,
			&v.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindVersion returns one version row including stored inline bytes.
func (r *FilePostgres) FindVersion(ctx context.Context, fileID int64, number int) (*model.FileVersion, error) {
	const q = `
		SELECT version_id, file_id, version_number, file_path, content, checksum, changed_by, change_description, created_at
		FROM file_version
		WHERE file_id = $1 AND version_number = $2
	`
	var v model.FileVersion
	if err := r.db.QueryRowContext(ctx, q, fileID, number).Scan(
		&v.ID,
		&v.FileID,
		&v.VersionNumber,
		&v.FilePath,
		&v.Content,
		&v.Checksum,
		&v.ChangedBy,
		&v.ChangeDescription,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateLink inserts a polymorphic link row and returns the stored record.
func (r *FilePostgres) CreateLink(ctx context.Context, link *model.DocumentLink) (*model.DocumentLink, error) {
	const q = `
		INSERT INTO document_link (file_id, entity_type, entity_id, link_type, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING link_id, file_id, entity_type, entity_id, link_type, created_at, created_by
	`
	var out model.DocumentLink
	if err := r.db.QueryRowContext(ctx, q,
		link.FileID,
		link.EntityType,
		link.EntityID,
		link.LinkType,
		link.CreatedBy,
	).Scan(
		&out.ID,
		&out.FileID,
		&out.EntityType,
		&out.EntityID,
		&out.LinkType,
		&out.CreatedAt,
		&out.CreatedBy,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLink removes one link row of a file; returns rows deleted.
func (r *FilePostgres) DeleteLink(ctx context.Context, fileID, linkID int64) (int64, error) {
	const q = `DELETE FROM document_link WHERE link_id = $1 AND file_id = $2`
	res, err := r.db.ExecContext(ctx, q, linkID, fileID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListLinks returns a file's links oldest first.
func (r *FilePostgres) ListLinks(ctx context.Context, fileID int64) ([]model.DocumentLink, error) {
	const q = `
		SELECT link_id, file_id, entity_type, entity_id, link_type, created_at, created_by
		FROM document_link
		WHERE file_id = $1
		ORDER BY created_at ASC, link_id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentLink, 0)
	for rows.Next() {
		var l model.DocumentLink
		if err := rows.Scan(
			&l.ID,
			&l.FileID,
			&l.EntityType,
			&l.EntityID,
			&l.LinkType,
			&l.CreatedAt,
			&l.CreatedBy,
		); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
