package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iams/internal/domain"
	"iams/internal/model"
	repoMocks "iams/internal/repository/mocks"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCanonicalPathSegment(t *testing.T) {
	assert.Equal(t, "my_reports", CanonicalPathSegment("My Reports"))
	assert.Equal(t, "audit", CanonicalPathSegment("  Audit  "))
	assert.Equal(t, "2024_q1_scan_results", CanonicalPathSegment("2024 Q1 Scan Results"))
}

func TestComputeFullPath(t *testing.T) {
	assert.Equal(t, "/playbook", ComputeFullPath("/", "Playbook"))
	assert.Equal(t, "/playbook/users", ComputeFullPath("/playbook", "Users"))
	assert.Equal(t, "/playbook/users/network_scans", ComputeFullPath("/playbook/users", "Network Scans"))
}

func TestAccessFor(t *testing.T) {
	root := model.Directory{ID: 1, Name: "Root", FullPath: "/"}
	aliceHome := model.Directory{ID: 10, Name: "alice", ParentID: int64Ptr(2), FullPath: "/playbook/users/alice", OwnerID: int64Ptr(100)}

	tests := []struct {
		name      string
		dir       model.Directory
		ancestors []model.Directory
		requester int64
		want      model.DirectoryAccess
	}{
		{
			name:      "root is browsable but never writable",
			dir:       root,
			requester: 100,
			want:      model.DirectoryAccess{CanView: true, CanUpload: false},
		},
		{
			name:      "owner has full access to their home",
			dir:       aliceHome,
			ancestors: []model.Directory{root},
			requester: 100,
			want:      model.DirectoryAccess{CanView: true, CanUpload: true},
		},
		{
			name: "public flag grants everyone full access",
			dir: model.Directory{
				ID: 20, Name: "Shared Documents", FullPath: "/shared_documents",
				OwnerID: int64Ptr(100), IsPublic: true,
			},
			ancestors: []model.Directory{root},
			requester: 200,
			want:      model.DirectoryAccess{CanView: true, CanUpload: true},
		},
		{
			name: "public name token grants everyone full access",
			dir: model.Directory{
				ID: 21, Name: "Alice Public Reports", FullPath: "/playbook/users/alice/alice_public_reports",
				ParentID: int64Ptr(10), OwnerID: int64Ptr(100),
			},
			ancestors: []model.Directory{root, aliceHome},
			requester: 200,
			want:      model.DirectoryAccess{CanView: true, CanUpload: true},
		},
		{
			name: "private subdirectory of another user's home is invisible",
			dir: model.Directory{
				ID: 22, Name: "Drafts", FullPath: "/playbook/users/alice/drafts",
				ParentID: int64Ptr(10), OwnerID: int64Ptr(100),
			},
			ancestors: []model.Directory{root, aliceHome},
			requester: 200,
			want:      model.DirectoryAccess{},
		},
		{
			name: "owner still sees their own nested private directory",
			dir: model.Directory{
				ID: 22, Name: "Drafts", FullPath: "/playbook/users/alice/drafts",
				ParentID: int64Ptr(10), OwnerID: int64Ptr(100),
			},
			ancestors: []model.Directory{root, aliceHome},
			requester: 100,
			want:      model.DirectoryAccess{CanView: true, CanUpload: true},
		},
		{
			name: "unowned non-public directory grants nothing",
			dir: model.Directory{
				ID: 30, Name: "playbook", ParentID: int64Ptr(1), FullPath: "/playbook",
			},
			ancestors: []model.Directory{root},
			requester: 200,
			want:      model.DirectoryAccess{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccessFor(&tt.dir, tt.ancestors, tt.requester)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectoryService_ListTree(t *testing.T) {
	ctx := context.Background()

	t.Run("reports not ready before the root is seeded", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("FindRoot", ctx).Return(nil, sql.ErrNoRows)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		_, err := svc.ListTree(ctx, 100)
		assert.ErrorIs(t, err, domain.ErrNotReady)
		mRepo.AssertNotCalled(t, "ListAll", ctx)
	})

	t.Run("annotates entries with children, counts, and depth", func(t *testing.T) {
		dirs := []model.Directory{
			{ID: 1, Name: "Root", FullPath: "/"},
			{ID: 2, Name: "playbook", ParentID: int64Ptr(1), FullPath: "/playbook"},
			{ID: 3, Name: "users", ParentID: int64Ptr(2), FullPath: "/playbook/users"},
		}
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("FindRoot", ctx).Return(&dirs[0], nil)
		mRepo.On("ListAll", ctx).Return(dirs, nil)
		mRepo.On("FileCounts", ctx).Return(map[int64]int64{3: 7}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		entries, err := svc.ListTree(ctx, 100)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		assert.True(t, entries[0].HasChildren)
		assert.Equal(t, 0, entries[0].Depth)
		assert.Equal(t, int64(0), entries[0].FileCount)

		assert.True(t, entries[1].HasChildren)
		assert.Equal(t, 1, entries[1].Depth)

		assert.False(t, entries[2].HasChildren)
		assert.Equal(t, 2, entries[2].Depth)
		assert.Equal(t, int64(7), entries[2].FileCount)
	})
}

func TestDirectoryService_Navigate(t *testing.T) {
	ctx := context.Background()
	root := model.Directory{ID: 1, Name: "Root", FullPath: "/"}
	home := model.Directory{ID: 10, Name: "alice", ParentID: int64Ptr(1), FullPath: "/alice", OwnerID: int64Ptr(100)}

	t.Run("returns the directory and its breadcrumb", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(10)).Return([]model.Directory{root, home}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		dir, crumbs, err := svc.Navigate(ctx, 100, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(10), dir.ID)
		require.Len(t, crumbs, 1)
		assert.Equal(t, "/", crumbs[0].FullPath)
	})

	t.Run("denies a stranger's view of a private home", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(10)).Return([]model.Directory{root, home}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		_, _, err := svc.Navigate(ctx, 200, 10)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("maps a missing directory to not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(99)).Return(nil, sql.ErrNoRows)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		_, _, err := svc.Navigate(ctx, 100, 99)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestDirectoryService_CreateChild(t *testing.T) {
	ctx := context.Background()
	root := model.Directory{ID: 1, Name: "Root", FullPath: "/", CanCreateSubdirs: true}
	home := model.Directory{
		ID: 10, Name: "alice", ParentID: int64Ptr(1), FullPath: "/alice",
		OwnerID: int64Ptr(100), CanCreateSubdirs: true, CanUploadFiles: true,
	}

	t.Run("creates a user directory under the owner's home", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(10)).Return([]model.Directory{root, home}, nil)
		mRepo.On("FindChildByName", ctx, int64(10), "Scan Results").Return(nil, sql.ErrNoRows)
		mRepo.On("Create", ctx, &model.Directory{
			Name:             "Scan Results",
			ParentID:         int64Ptr(10),
			FullPath:         "/alice/scan_results",
			Kind:             model.DirectoryKindUser,
			OwnerID:          int64Ptr(100),
			CanCreateSubdirs: true,
			CanUploadFiles:   true,
		}).Return(&model.Directory{ID: 11, Name: "Scan Results", FullPath: "/alice/scan_results"}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		dir, err := svc.CreateChild(ctx, 100, 10, "Scan Results", "")
		require.NoError(t, err)
		assert.Equal(t, "/alice/scan_results", dir.FullPath)
		mRepo.AssertExpectations(t)
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		svc := NewDirectoryService(new(repoMocks.MockDirectoryRepository), zap.NewNop())
		_, err := svc.CreateChild(ctx, 100, 10, "", "")
		assert.ErrorIs(t, err, domain.ErrInvalidName)
	})

	t.Run("rejects a name with a path separator", func(t *testing.T) {
		svc := NewDirectoryService(new(repoMocks.MockDirectoryRepository), zap.NewNop())
		_, err := svc.CreateChild(ctx, 100, 10, "a/b", "")
		assert.ErrorIs(t, err, domain.ErrInvalidName)
	})

	t.Run("denies creation where the requester cannot write", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(10)).Return([]model.Directory{root, home}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		_, err := svc.CreateChild(ctx, 200, 10, "Intrusion", "")
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("reports an existing sibling as a name conflict", func(t *testing.T) {
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(10)).Return([]model.Directory{root, home}, nil)
		mRepo.On("FindChildByName", ctx, int64(10), "Reports").
			Return(&model.Directory{ID: 12, Name: "reports"}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		_, err := svc.CreateChild(ctx, 100, 10, "Reports", "")
		assert.ErrorIs(t, err, domain.ErrNameConflict)
	})

	t.Run("refuses parents that do not allow subdirectories", func(t *testing.T) {
		sealed := home
		sealed.CanCreateSubdirs = false
		mRepo := new(repoMocks.MockDirectoryRepository)
		mRepo.On("Ancestors", ctx, int64(10)).Return([]model.Directory{root, sealed}, nil)

		svc := NewDirectoryService(mRepo, zap.NewNop())
		_, err := svc.CreateChild(ctx, 100, 10, "Nested", "")
		assert.ErrorIs(t, err, domain.ErrUploadForbidden)
	})
}
