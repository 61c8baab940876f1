package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"iams/internal/model"
)

type MockDirectoryService struct {
	mock.Mock
}

func (m *MockDirectoryService) ListTree(ctx context.Context, requester int64) ([]model.TreeEntry, error) {
	args := m.Called(ctx, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TreeEntry), args.Error(1)
}

func (m *MockDirectoryService) Navigate(ctx context.Context, requester, directoryID int64) (*model.Directory, []model.Directory, error) {
	args := m.Called(ctx, requester, directoryID)
	var dir *model.Directory
	if args.Get(0) != nil {
		dir = args.Get(0).(*model.Directory)
	}
	var crumbs []model.Directory
	if args.Get(1) != nil {
		crumbs = args.Get(1).([]model.Directory)
	}
	return dir, crumbs, args.Error(2)
}

func (m *MockDirectoryService) CreateChild(ctx context.Context, requester, parentID int64, name, description string) (*model.Directory, error) {
	args := m.Called(ctx, requester, parentID, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Directory), args.Error(1)
}

func (m *MockDirectoryService) Access(ctx context.Context, requester, directoryID int64) (model.DirectoryAccess, error) {
	args := m.Called(ctx, requester, directoryID)
	return args.Get(0).(model.DirectoryAccess), args.Error(1)
}
