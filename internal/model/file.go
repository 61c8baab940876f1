package model

import (
	"time"

	"iams/internal/domain"
)

// FileKind is the declared kind of an uploaded file. It drives the
// inline-versus-external routing decision together with the file size.
type FileKind string

const (
	FileKindMarkdown FileKind = "markdown"
	FileKindText     FileKind = "text"
	FileKindPDF      FileKind = "pdf"
	FileKindSVG      FileKind = "svg"
	FileKindPNG      FileKind = "png"
	FileKindJPEG     FileKind = "jpeg"
	FileKindOther    FileKind = "other"
)

// KindForFilename maps a filename extension to its declared file kind.
func KindForFilename(name string) FileKind {
	dot := -1
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			dot = i
			break
		}
		if name[i] == '/' {
			break
		}
	}
	if dot < 0 {
		return FileKindOther
	}
	switch name[dot+1:] {
	case "md", "markdown":
		return FileKindMarkdown
	case "txt", "text", "log":
		return FileKindText
	case "pdf":
		return FileKindPDF
	case "svg":
		return FileKindSVG
	case "png":
		return FileKindPNG
	case "jpg", "jpeg":
		return FileKindJPEG
	default:
		return FileKindOther
	}
}

// Placement is the chosen backend for a file's bytes.
type Placement string

const (
	PlacementInline   Placement = "inline"
	PlacementExternal Placement = "external"
)

// File is the metadata record of one stored file. Bytes live either in a
// file_content row (inline) or under FilePath on the external store.
type File struct {
	ID               int64      `json:"id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	FileType         FileKind   `json:"file_type"`
	MimeType         string     `json:"mime_type"`
	FileSize         int64      `json:"file_size"`
	StorageLocation  Placement  `json:"storage_location"`
	FilePath         *string    `json:"file_path,omitempty"`
	Checksum         string     `json:"checksum"`
	DirectoryID      *int64     `json:"directory_id"`
	UploadedBy       int64      `json:"uploaded_by"`
	AssetID          *int64     `json:"asset_id,omitempty"`
	ProjectID        *int64     `json:"project_id,omitempty"`
	Description      string     `json:"description,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	IsPublic         bool       `json:"is_public"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	LastAccessed     *time.Time `json:"last_accessed,omitempty"`
}

// FileVersion is one entry of a file's revision history. Version numbers per
// file form the gapless sequence 1..N; the file row always reflects version N.
type FileVersion struct {
	ID                int64     `json:"id"`
	FileID            int64     `json:"file_id"`
	VersionNumber     int       `json:"version_number"`
	FilePath          *string   `json:"file_path,omitempty"`
	Content           []byte    `json:"-"`
	Checksum          string    `json:"checksum"`
	ChangedBy         int64     `json:"changed_by"`
	ChangeDescription string    `json:"change_description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// DocumentLink is a polymorphic edge from a file to a host-application
// entity identified by (kind, id).
type DocumentLink struct {
	ID         int64             `json:"id"`
	FileID     int64             `json:"file_id"`
	EntityType domain.EntityKind `json:"entity_type"`
	EntityID   int64             `json:"entity_id"`
	LinkType   string            `json:"link_type"`
	CreatedAt  time.Time         `json:"created_at"`
	CreatedBy  int64             `json:"created_by"`
}
