package repository

import (
	"context"

	"iams/internal/model"
)

// DirectoryRepository defines data access for the directory tree using SQL
// queries only. No access rules or path logic here, strictly persistence.
type DirectoryRepository interface {
	// Create inserts a new directory row and returns the stored record.
	Create(ctx context.Context, dir *model.Directory) (*model.Directory, error)

	// FindRoot returns the single directory with no parent, or sql.ErrNoRows
	// if the tree has not been seeded.
	FindRoot(ctx context.Context) (*model.Directory, error)

	// FindChildByName returns a child of parentID whose name matches
	// case-insensitively, or sql.ErrNoRows.
	FindChildByName(ctx context.Context, parentID int64, name string) (*model.Directory, error)

	// ListAll returns every directory ordered by full_path, which places each
	// node after its parent.
	ListAll(ctx context.Context) ([]model.Directory, error)

	// Ancestors returns the chain from the root down to and including id.
	Ancestors(ctx context.Context, id int64) ([]model.Directory, error)

	// FileCounts returns the number of files per directory id.
	FileCounts(ctx context.Context) (map[int64]int64, error)
}
