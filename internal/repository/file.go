package repository

import (
	"context"

	"iams/internal/model"
)

// FileRepository defines data access for file metadata, inline content,
// version history, and polymorphic links. Multi-row operations (Create,
// Revise, Delete) run in a single transaction each.
type FileRepository interface {
	// Create inserts the file row, the inline content row when inline is
	// non-nil, and the version-1 history row, all in one transaction.
	Create(ctx context.Context, file *model.File, inline []byte) (*model.File, error)

	// FindByID returns a file by its ID.
	FindByID(ctx context.Context, id int64) (*model.File, error)

	// ListByDirectory returns files in the given directory, newest first.
	// A nil directoryID selects root-level files (directory_id IS NULL).
	ListByDirectory(ctx context.Context, directoryID *int64) ([]model.File, error)

	// Delete removes the file row; content, version, and link rows go with it
	// via cascading constraints. Returns the number of rows deleted so the
	// caller can treat repeated deletes as a success.
	Delete(ctx context.Context, id int64) (int64, error)

	// GetContent returns the inline content row bytes for a file.
	GetContent(ctx context.Context, fileID int64) ([]byte, error)

	// TouchLastAccessed stamps last_accessed with the current time.
	TouchLastAccessed(ctx context.Context, id int64) error

	// Revise appends the next version row (max version + 1), updates the file
	// row's current checksum, size, placement, and path, and replaces the
	// inline content row (removed when newInline is nil), in one transaction.
	// It returns the stored version row including its assigned number.
	Revise(ctx context.Context, file *model.File, version *model.FileVersion, newInline []byte) (*model.FileVersion, error)

	// ListVersions returns a file's history ordered by version number.
	ListVersions(ctx context.Context, fileID int64) ([]model.FileVersion, error)

	// FindVersion returns one version row including inline bytes if present.
	FindVersion(ctx context.Context, fileID int64, number int) (*model.FileVersion, error)

	// CreateLink inserts a polymorphic link row.
	CreateLink(ctx context.Context, link *model.DocumentLink) (*model.DocumentLink, error)

	// DeleteLink removes one link row; returns rows deleted.
	DeleteLink(ctx context.Context, fileID, linkID int64) (int64, error)

	// ListLinks returns the links of a file, oldest first.
	ListLinks(ctx context.Context, fileID int64) ([]model.DocumentLink, error)
}
