package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"iams/internal/model"
)

type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) Create(ctx context.Context, dir *model.Directory) (*model.Directory, error) {
	args := m.Called(ctx, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Directory), args.Error(1)
}

func (m *MockDirectoryRepository) FindRoot(ctx context.Context) (*model.Directory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Directory), args.Error(1)
}

func (m *MockDirectoryRepository) FindChildByName(ctx context.Context, parentID int64, name string) (*model.Directory, error) {
	args := m.Called(ctx, parentID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Directory), args.Error(1)
}

func (m *MockDirectoryRepository) ListAll(ctx context.Context) ([]model.Directory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Directory), args.Error(1)
}

func (m *MockDirectoryRepository) Ancestors(ctx context.Context, id int64) ([]model.Directory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Directory), args.Error(1)
}

func (m *MockDirectoryRepository) FileCounts(ctx context.Context) (map[int64]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int64), args.Error(1)
}
