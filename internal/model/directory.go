package model

import "time"

// DirectoryKind distinguishes seeded infrastructure directories from
// user-created ones.
type DirectoryKind string

const (
	DirectoryKindSystem DirectoryKind = "system"
	DirectoryKindUser   DirectoryKind = "user"
)

// Directory represents one node of the hierarchical namespace.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Directory struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	ParentID          *int64        `json:"parent_id"`
	FullPath          string        `json:"full_path"`
	Kind              DirectoryKind `json:"kind"`
	OwnerID           *int64        `json:"owner_id,omitempty"`
	IsPublic          bool          `json:"is_public"`
	IsSystemDirectory bool          `json:"is_system_directory"`
	Description       string        `json:"description,omitempty"`
	Icon              string        `json:"icon,omitempty"`
	Color             string        `json:"color,omitempty"`
	SortOrder         int           `json:"sort_order"`
	CanCreateSubdirs  bool          `json:"can_create_subdirs"`
	CanUploadFiles    bool          `json:"can_upload_files"`
	CreatedAt         time.Time     `json:"created_at"`
	ModifiedAt        time.Time     `json:"modified_at"`
}

// IsRoot reports whether the directory is the namespace root.
func (d *Directory) IsRoot() bool {
	return d.ParentID == nil
}

// TreeEntry is one row of a flat tree listing. Entries are ordered so that
// every node appears after its parent; HasChildren and FileCount are
// aggregated at listing time.
type TreeEntry struct {
	Directory
	HasChildren bool  `json:"has_children"`
	FileCount   int64 `json:"file_count"`
	Depth       int   `json:"depth"`
}

// DirectoryAccess is the (can_view, can_upload) capability pair computed for
// one requester against one directory.
type DirectoryAccess struct {
	CanView   bool `json:"can_view"`
	CanUpload bool `json:"can_upload"`
}
