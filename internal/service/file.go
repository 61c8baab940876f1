package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"iams/internal/domain"
	"iams/internal/model"
	"iams/internal/repository"
	"iams/internal/repository/postgres"
)

// RegisterInput carries everything needed to record a freshly stored file.
// The content has already been placed by this point: Inline holds the bytes
// for inline placement, ExternalHandle the store handle otherwise.
type RegisterInput struct {
	Requester        int64
	DirectoryID      *int64
	Filename         string
	OriginalFilename string
	Kind             model.FileKind
	MimeType         string
	Size             int64
	Checksum         string
	Placement        model.Placement
	ExternalHandle   string
	Inline           []byte
	Description      string
	Tags             []string
}

// FileService creates, mutates, and retires file rows, maintains version
// history, and exposes polymorphic linkage. Mutations of a single file id
// are serialised; reads never wait behind them and rely on the checksum to
// catch torn content.
type FileService interface {
	// List returns files in a directory newest first; a nil directory id
	// selects root-level files. The directory's read rule must grant.
	List(ctx context.Context, requester int64, directoryID *int64) ([]model.File, error)

	// Register records metadata (and the inline row, atomically) for content
	// the Content Store has already persisted. The checksum is re-verified
	// against the stored bytes before the row is committed.
	Register(ctx context.Context, in RegisterInput) (*model.File, error)

	// Read returns metadata plus the full byte content, integrity-checked.
	Read(ctx context.Context, requester, fileID int64) (*model.File, []byte, error)

	// Delete removes the file row, its versions, links, inline row, and any
	// external bytes. Idempotent for already-absent ids.
	Delete(ctx context.Context, requester, fileID int64) error

	// Revise appends version N+1 with the new bytes and updates the current
	// row. Old bytes stay retrievable under their version rows.
	Revise(ctx context.Context, requester, fileID int64, data []byte, changeDescription string) (*model.FileVersion, error)

	// Versions lists a file's history oldest first.
	Versions(ctx context.Context, requester, fileID int64) ([]model.FileVersion, error)

	// ReadVersion returns one historic version's bytes, integrity-checked.
	ReadVersion(ctx context.Context, requester, fileID int64, number int) (*model.FileVersion, []byte, error)

	// Link attaches a file to a host-application entity; Unlink detaches.
	Link(ctx context.Context, requester, fileID int64, entityType domain.EntityKind, entityID int64, linkType string) (*model.DocumentLink, error)
	Unlink(ctx context.Context, requester, fileID, linkID int64) error
	Links(ctx context.Context, requester, fileID int64) ([]model.DocumentLink, error)
}

type fileService struct {
	repo      repository.FileRepository
	dirs      DirectoryService
	content   ContentStore
	fileLocks *keyedMutex
	log       *zap.Logger
}

// NewFileService constructs a new FileService.
func NewFileService(repo repository.FileRepository, dirs DirectoryService, content ContentStore, log *zap.Logger) FileService {
	return &fileService{
		repo:      repo,
		dirs:      dirs,
		content:   content,
		fileLocks: newKeyedMutex(),
		log:       log,
	}
}

// viewAccess applies the directory read rule; a nil directory id means the
// tenant root, which everyone may browse.
func (s *fileService) viewAccess(ctx context.Context, requester int64, directoryID *int64) error {
	if directoryID == nil {
		return nil
	}
	access, err := s.dirs.Access(ctx, requester, *directoryID)
	if err != nil {
		return err
	}
	if !access.CanView {
		return domain.ErrAccessDenied
	}
	return nil
}

// writeAccess applies the directory write rule. Root-level files (nil
// directory) fall back to uploader-only mutation since the root itself is
// not writable.
func (s *fileService) writeAccess(ctx context.Context, requester int64, file *model.File) error {
	if file.DirectoryID == nil {
		if file.UploadedBy != requester {
			return domain.ErrUploadForbidden
		}
		return nil
	}
	access, err := s.dirs.Access(ctx, requester, *file.DirectoryID)
	if err != nil {
		return err
	}
	if !access.CanUpload {
		return domain.ErrUploadForbidden
	}
	return nil
}

func (s *fileService) List(ctx context.Context, requester int64, directoryID *int64) ([]model.File, error) {
	if err := s.viewAccess(ctx, requester, directoryID); err != nil {
		return nil, err
	}
	files, err := s.repo.ListByDirectory(ctx, directoryID)
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "list files: %v", err)
	}
	return files, nil
}

func (s *fileService) Register(ctx context.Context, in RegisterInput) (*model.File, error) {
	if in.Filename == "" {
		return nil, domain.Errf(domain.KindInvalidName, "filename must not be empty")
	}

	if in.DirectoryID != nil {
		access, err := s.dirs.Access(ctx, in.Requester, *in.DirectoryID)
		if err != nil {
			return nil, err
		}
		if !access.CanUpload {
			return nil, domain.ErrUploadForbidden
		}
		// The containing directory must accept files at insert time.
		dir, _, err := s.dirs.Navigate(ctx, in.Requester, *in.DirectoryID)
		if err != nil {
			return nil, err
		}
		if !dir.CanUploadFiles {
			return nil, domain.Errf(domain.KindUploadForbidden, "directory %q does not accept files", dir.Name)
		}
	}

	// Re-verify the stored bytes against the declared checksum before the
	// metadata becomes visible.
	switch in.Placement {
	case model.PlacementInline:
		if ChecksumBytes(in.Inline) != in.Checksum {
			return nil, domain.ErrIntegrityMismatch
		}
		if int64(len(in.Inline)) != in.Size {
			return nil, domain.ErrIntegrityMismatch
		}
	case model.PlacementExternal:
		ok, err := s.content.VerifyExternal(ctx, in.ExternalHandle, in.Checksum)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrIntegrityMismatch
		}
	default:
		return nil, domain.Errf(domain.KindConfigurationInvalid, "unknown placement %q", in.Placement)
	}

	file := &model.File{
		Filename:         in.Filename,
		OriginalFilename: in.OriginalFilename,
		FileType:         in.Kind,
		MimeType:         in.MimeType,
		FileSize:         in.Size,
		StorageLocation:  in.Placement,
		Checksum:         in.Checksum,
		DirectoryID:      in.DirectoryID,
		UploadedBy:       in.Requester,
		Description:      in.Description,
		Tags:             in.Tags,
	}
	var inline []byte
	if in.Placement == model.PlacementExternal {
		handle := in.ExternalHandle
		file.FilePath = &handle
	} else {
		inline = in.Inline
	}

	stored, err := s.repo.Create(ctx, file, inline)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrDeadlineExceeded
		}
		if postgres.IsForeignKeyViolation(err) {
			// The destination directory disappeared after the access check.
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "register file: %v", err)
	}

	s.log.Info("file registered",
		zap.Int64("file_id", stored.ID),
		zap.String("filename", stored.Filename),
		zap.String("placement", string(stored.StorageLocation)),
		zap.Int64("size", stored.FileSize),
	)
	return stored, nil
}

// loadBytes materialises a file's content from its placement.
func (s *fileService) loadBytes(ctx context.Context, file *model.File) ([]byte, error) {
	if file.StorageLocation == model.PlacementInline {
		data, err := s.repo.GetContent(ctx, file.ID)
		if err != nil {
			if postgres.IsNoRowsError(err) {
				return nil, domain.ErrContentMissing
			}
			return nil, domain.Errf(domain.KindStorageIO, "read inline content: %v", err)
		}
		return data, nil
	}
	if file.FilePath == nil {
		return nil, domain.ErrContentMissing
	}
	rc, err := s.content.OpenExternal(ctx, *file.FilePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "read external content: %v", err)
	}
	return data, nil
}

func (s *fileService) Read(ctx context.Context, requester, fileID int64) (*model.File, []byte, error) {
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.viewAccess(ctx, requester, file.DirectoryID); err != nil {
		return nil, nil, err
	}

	data, err := s.loadBytes(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	if ChecksumBytes(data) != file.Checksum {
		return nil, nil, domain.Errf(domain.KindIntegrityMismatch,
			"stored content of file %d no longer matches its checksum", file.ID)
	}

	// Best effort; a failed timestamp update must not fail the read.
	if err := s.repo.TouchLastAccessed(ctx, fileID); err != nil {
		s.log.Warn("failed to update last_accessed", zap.Int64("file_id", fileID), zap.Error(err))
	}
	return file, data, nil
}

func (s *fileService) Delete(ctx context.Context, requester, fileID int64) error {
	unlock := s.fileLocks.Lock(fileID)
	defer unlock()

	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			// Idempotent: deleting an absent file succeeds.
			return nil
		}
		return domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.writeAccess(ctx, requester, file); err != nil {
		return err
	}

	// Collect every external handle referenced by the file or its history
	// before the rows disappear.
	handles := make(map[string]struct{})
	if file.FilePath != nil {
		handles[*file.FilePath] = struct{}{}
	}
	versions, err := s.repo.ListVersions(ctx, fileID)
	if err != nil {
		return domain.Errf(domain.KindStorageIO, "list versions: %v", err)
	}
	for _, v := range versions {
		if v.FilePath != nil {
			handles[*v.FilePath] = struct{}{}
		}
	}

	if _, err := s.repo.Delete(ctx, fileID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrDeadlineExceeded
		}
		return domain.Errf(domain.KindStorageIO, "delete file: %v", err)
	}

	// External bytes go last: the metadata row is already gone, and the
	// content store swallows I/O failures here.
	for handle := range handles {
		_ = s.content.DeleteExternal(ctx, handle)
	}

	s.log.Info("file deleted", zap.Int64("file_id", fileID), zap.Int("external_handles", len(handles)))
	return nil
}

func (s *fileService) Revise(ctx context.Context, requester, fileID int64, data []byte, changeDescription string) (*model.FileVersion, error) {
	unlock := s.fileLocks.Lock(fileID)
	defer unlock()

	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.writeAccess(ctx, requester, file); err != nil {
		return nil, err
	}

	checksum := ChecksumBytes(data)
	size := int64(len(data))
	placement := s.content.PlacementFor(file.FileType, size)

	var handle string
	var inline []byte
	if placement == model.PlacementExternal {
		handle, err = s.content.WriteExternal(ctx, file.Filename, bytes.NewReader(data), size)
		if err != nil {
			return nil, err
		}
	} else {
		inline = data
	}

	updated := *file
	updated.FileSize = size
	updated.Checksum = checksum
	updated.StorageLocation = placement
	if placement == model.PlacementExternal {
		updated.FilePath = &handle
	} else {
		updated.FilePath = nil
	}

	version := &model.FileVersion{
		FileID:            fileID,
		Checksum:          checksum,
		Content:           inline,
		ChangedBy:         requester,
		ChangeDescription: changeDescription,
	}
	if placement == model.PlacementExternal {
		version.FilePath = &handle
	}

	stored, err := s.repo.Revise(ctx, &updated, version, inline)
	if err != nil {
		// Compensate the external write; the old version rows are untouched.
		if placement == model.PlacementExternal {
			_ = s.content.DeleteExternal(ctx, handle)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrDeadlineExceeded
		}
		return nil, domain.Errf(domain.KindStorageIO, "revise file: %v", err)
	}

	s.log.Info("file revised",
		zap.Int64("file_id", fileID),
		zap.Int("version", stored.VersionNumber),
		zap.String("placement", string(placement)),
	)
	return stored, nil
}

func (s *fileService) Versions(ctx context.Context, requester, fileID int64) ([]model.FileVersion, error) {
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.viewAccess(ctx, requester, file.DirectoryID); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, fileID)
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "list versions: %v", err)
	}
	return versions, nil
}

func (s *fileService) ReadVersion(ctx context.Context, requester, fileID int64, number int) (*model.FileVersion, []byte, error) {
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.viewAccess(ctx, requester, file.DirectoryID); err != nil {
		return nil, nil, err
	}

	version, err := s.repo.FindVersion(ctx, fileID, number)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, domain.Errf(domain.KindStorageIO, "find version: %v", err)
	}

	var data []byte
	switch {
	case version.Content != nil:
		data = version.Content
	case version.FilePath != nil:
		rc, err := s.content.OpenExternal(ctx, *version.FilePath)
		if err != nil {
			return nil, nil, err
		}
		data, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, domain.Errf(domain.KindStorageIO, "read version content: %v", err)
		}
	default:
		return nil, nil, domain.ErrContentMissing
	}

	if ChecksumBytes(data) != version.Checksum {
		return nil, nil, domain.Errf(domain.KindIntegrityMismatch,
			"stored content of file %d version %d no longer matches its checksum", fileID, number)
	}
	return version, data, nil
}

func (s *fileService) Link(ctx context.Context, requester, fileID int64, entityType domain.EntityKind, entityID int64, linkType string) (*model.DocumentLink, error) {
	if !domain.ValidEntityKind(entityType) {
		return nil, domain.Errf(domain.KindInvalidName, "unknown entity kind %q", entityType)
	}
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.viewAccess(ctx, requester, file.DirectoryID); err != nil {
		return nil, err
	}

	link, err := s.repo.CreateLink(ctx, &model.DocumentLink{
		FileID:     fileID,
		EntityType: entityType,
		EntityID:   entityID,
		LinkType:   linkType,
		CreatedBy:  requester,
	})
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			// The file was deleted between the lookup and the insert.
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "create link: %v", err)
	}
	return link, nil
}

func (s *fileService) Unlink(ctx context.Context, requester, fileID, linkID int64) error {
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return domain.ErrNotFound
		}
		return domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.viewAccess(ctx, requester, file.DirectoryID); err != nil {
		return err
	}
	if _, err := s.repo.DeleteLink(ctx, fileID, linkID); err != nil {
		return domain.Errf(domain.KindStorageIO, "delete link: %v", err)
	}
	return nil
}

func (s *fileService) Links(ctx context.Context, requester, fileID int64) ([]model.DocumentLink, error) {
	file, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "find file: %v", err)
	}
	if err := s.viewAccess(ctx, requester, file.DirectoryID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListLinks(ctx, fileID)
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "list links: %v", err)
	}
	return links, nil
}
