package service

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"iams/internal/domain"
	"iams/internal/model"
	"iams/internal/repository"
	"iams/internal/repository/postgres"
)

// DirectoryService exposes the hierarchical namespace and enforces who may
// read it and who may write into it.
type DirectoryService interface {
	// ListTree returns every directory ordered parent-before-child, each
	// entry carrying has_children and file_count as of call time. Fails with
	// not-ready if the root has not been seeded.
	ListTree(ctx context.Context, requester int64) ([]model.TreeEntry, error)

	// Navigate returns one directory plus its breadcrumb from the root.
	Navigate(ctx context.Context, requester, directoryID int64) (*model.Directory, []model.Directory, error)

	// CreateChild creates a user directory under parentID. Creation is
	// serialised per parent to keep sibling names unique.
	CreateChild(ctx context.Context, requester, parentID int64, name, description string) (*model.Directory, error)

	// Access computes the (can_view, can_upload) pair for the requester.
	Access(ctx context.Context, requester, directoryID int64) (model.DirectoryAccess, error)
}

type directoryService struct {
	repo        repository.DirectoryRepository
	createLocks *keyedMutex
	log         *zap.Logger
}

// NewDirectoryService constructs a new DirectoryService.
func NewDirectoryService(repo repository.DirectoryRepository, log *zap.Logger) DirectoryService {
	return &directoryService{
		repo:        repo,
		createLocks: newKeyedMutex(),
		log:         log,
	}
}

// CanonicalPathSegment lowercases a directory name and replaces spaces with
// underscores. This transformation is authoritative: full paths are always
// derived from it, never stored free-form.
func CanonicalPathSegment(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ComputeFullPath appends the canonical segment of name to the parent path.
func ComputeFullPath(parentFullPath, name string) string {
	segment := CanonicalPathSegment(name)
	if parentFullPath == "/" || parentFullPath == "" {
		return "/" + segment
	}
	return parentFullPath + "/" + segment
}

// AccessFor evaluates the access rules for one directory given its ancestor
// chain (root first, excluding the directory itself). Pure function: the
// result depends only on the records and the requester.
func AccessFor(dir *model.Directory, ancestors []model.Directory, requester int64) model.DirectoryAccess {
	// Rule 1: the root is browsable by everyone, writable by no one.
	if dir.IsRoot() {
		return model.DirectoryAccess{CanView: true, CanUpload: false}
	}
	// Rule 2: the owner has full access.
	if dir.OwnerID != nil && *dir.OwnerID == requester {
		return model.DirectoryAccess{CanView: true, CanUpload: true}
	}
	// Rule 3: public flag, or a name carrying the "public" token.
	if dir.IsPublic || strings.Contains(strings.ToLower(dir.Name), "public") {
		return model.DirectoryAccess{CanView: true, CanUpload: true}
	}
	// Rule 4: a non-owned subdirectory of someone's home is private.
	for _, a := range ancestors {
		if a.OwnerID != nil && *a.OwnerID != requester {
			return model.DirectoryAccess{}
		}
	}
	// Rule 5: nothing granted permission.
	return model.DirectoryAccess{}
}

func (s *directoryService) ListTree(ctx context.Context, requester int64) ([]model.TreeEntry, error) {
	if _, err := s.repo.FindRoot(ctx); err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, domain.ErrNotReady
		}
		return nil, domain.Errf(domain.KindStorageIO, "find root directory: %v", err)
	}

	dirs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "list directories: %v", err)
	}

	counts, err := s.repo.FileCounts(ctx)
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "count files: %v", err)
	}

	// Map-keyed aggregation instead of recursing over the adjacency list.
	children := make(map[int64]bool, len(dirs))
	for _, d := range dirs {
		if d.ParentID != nil {
			children[*d.ParentID] = true
		}
	}

	entries := make([]model.TreeEntry, 0, len(dirs))
	for _, d := range dirs {
		depth := 0
		if d.FullPath != "/" {
			depth = strings.Count(d.FullPath, "/")
		}
		entries = append(entries, model.TreeEntry{
			Directory:   d,
			HasChildren: children[d.ID],
			FileCount:   counts[d.ID],
			Depth:       depth,
		})
	}
	return entries, nil
}

func (s *directoryService) Navigate(ctx context.Context, requester, directoryID int64) (*model.Directory, []model.Directory, error) {
	chain, err := s.repo.Ancestors(ctx, directoryID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, domain.Errf(domain.KindStorageIO, "load directory chain: %v", err)
	}

	dir := chain[len(chain)-1]
	ancestors := chain[:len(chain)-1]

	if access := AccessFor(&dir, ancestors, requester); !access.CanView {
		return nil, nil, domain.ErrAccessDenied
	}
	return &dir, ancestors, nil
}

func (s *directoryService) Access(ctx context.Context, requester, directoryID int64) (model.DirectoryAccess, error) {
	chain, err := s.repo.Ancestors(ctx, directoryID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return model.DirectoryAccess{}, domain.ErrNotFound
		}
		return model.DirectoryAccess{}, domain.Errf(domain.KindStorageIO, "load directory chain: %v", err)
	}
	dir := chain[len(chain)-1]
	return AccessFor(&dir, chain[:len(chain)-1], requester), nil
}

func (s *directoryService) CreateChild(ctx context.Context, requester, parentID int64, name, description string) (*model.Directory, error) {
	if err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 255),
	); err != nil {
		return nil, domain.Errf(domain.KindInvalidName, "invalid directory name: %v", err)
	}
	if strings.ContainsAny(name, "/\x00") {
		return nil, domain.Errf(domain.KindInvalidName, "directory name must not contain path separators")
	}

	// Sibling-name uniqueness needs check-then-insert; serialise per parent.
	unlock := s.createLocks.Lock(parentID)
	defer unlock()

	chain, err := s.repo.Ancestors(ctx, parentID)
	if err != nil {
		if postgres.IsNoRowsError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Errf(domain.KindStorageIO, "load parent chain: %v", err)
	}
	parent := chain[len(chain)-1]

	if access := AccessFor(&parent, chain[:len(chain)-1], requester); !access.CanUpload {
		return nil, domain.ErrAccessDenied
	}
	if !parent.CanCreateSubdirs {
		return nil, domain.Errf(domain.KindUploadForbidden, "directory %q does not allow subdirectories", parent.Name)
	}

	if _, err := s.repo.FindChildByName(ctx, parentID, name); err == nil {
		return nil, domain.Errf(domain.KindNameConflict, "a directory named %q already exists here", name)
	} else if !postgres.IsNoRowsError(err) {
		return nil, domain.Errf(domain.KindStorageIO, "check sibling names: %v", err)
	}

	dir := &model.Directory{
		Name:             name,
		ParentID:         &parent.ID,
		FullPath:         ComputeFullPath(parent.FullPath, name),
		Kind:             model.DirectoryKindUser,
		OwnerID:          &requester,
		Description:      description,
		CanCreateSubdirs: true,
		CanUploadFiles:   true,
	}
	stored, err := s.repo.Create(ctx, dir)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domain.Errf(domain.KindNameConflict, "a directory named %q already exists here", name)
		}
		return nil, domain.Errf(domain.KindStorageIO, "create directory: %v", err)
	}

	s.log.Info("directory created",
		zap.Int64("directory_id", stored.ID),
		zap.String("full_path", stored.FullPath),
		zap.Int64("owner_id", requester),
	)
	return stored, nil
}
