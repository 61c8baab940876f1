package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"iams/internal/model"
)

type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Create(ctx context.Context, file *model.File, inline []byte) (*model.File, error) {
	args := m.Called(ctx, file, inline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id int64) (*model.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) ListByDirectory(ctx context.Context, directoryID *int64) ([]model.File, error) {
	args := m.Called(ctx, directoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.File), args.Error(1)
}

func (m *MockFileRepository) Delete(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileRepository) GetContent(ctx context.Context, fileID int64) ([]byte, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFileRepository) TouchLastAccessed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFileRepository) Revise(ctx context.Context, file *model.File, version *model.FileVersion, newInline []byte) (*model.FileVersion, error) {
	args := m.Called(ctx, file, version, newInline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileVersion), args.Error(1)
}

func (m *MockFileRepository) ListVersions(ctx context.Context, fileID int64) ([]model.FileVersion, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileVersion), args.Error(1)
}

func (m *MockFileRepository) FindVersion(ctx context.Context, fileID int64, number int) (*model.FileVersion, error) {
	args := m.Called(ctx, fileID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileVersion), args.Error(1)
}

func (m *MockFileRepository) CreateLink(ctx context.Context, link *model.DocumentLink) (*model.DocumentLink, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentLink), args.Error(1)
}

func (m *MockFileRepository) DeleteLink(ctx context.Context, fileID, linkID int64) (int64, error) {
	args := m.Called(ctx, fileID, linkID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileRepository) ListLinks(ctx context.Context, fileID int64) ([]model.DocumentLink, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentLink), args.Error(1)
}
