package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"iams/internal/domain"
	"iams/internal/model"
	"iams/internal/service"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) List(ctx context.Context, requester int64, directoryID *int64) ([]model.File, error) {
	args := m.Called(ctx, requester, directoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.File), args.Error(1)
}

func (m *MockFileService) Register(ctx context.Context, in service.RegisterInput) (*model.File, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) Read(ctx context.Context, requester, fileID int64) (*model.File, []byte, error) {
	args := m.Called(ctx, requester, fileID)
	var file *model.File
	if args.Get(0) != nil {
		file = args.Get(0).(*model.File)
	}
	var data []byte
	if args.Get(1) != nil {
		data = args.Get(1).([]byte)
	}
	return file, data, args.Error(2)
}

func (m *MockFileService) Delete(ctx context.Context, requester, fileID int64) error {
	args := m.Called(ctx, requester, fileID)
	return args.Error(0)
}

func (m *MockFileService) Revise(ctx context.Context, requester, fileID int64, data []byte, changeDescription string) (*model.FileVersion, error) {
	args := m.Called(ctx, requester, fileID, data, changeDescription)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileVersion), args.Error(1)
}

func (m *MockFileService) Versions(ctx context.Context, requester, fileID int64) ([]model.FileVersion, error) {
	args := m.Called(ctx, requester, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileVersion), args.Error(1)
}

func (m *MockFileService) ReadVersion(ctx context.Context, requester, fileID int64, number int) (*model.FileVersion, []byte, error) {
	args := m.Called(ctx, requester, fileID, number)
	var version *model.FileVersion
	if args.Get(0) != nil {
		version = args.Get(0).(*model.FileVersion)
	}
	var data []byte
	if args.Get(1) != nil {
		data = args.Get(1).([]byte)
	}
	return version, data, args.Error(2)
}

func (m *MockFileService) Link(ctx context.Context, requester, fileID int64, entityType domain.EntityKind, entityID int64, linkType string) (*model.DocumentLink, error) {
	args := m.Called(ctx, requester, fileID, entityType, entityID, linkType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentLink), args.Error(1)
}

func (m *MockFileService) Unlink(ctx context.Context, requester, fileID, linkID int64) error {
	args := m.Called(ctx, requester, fileID, linkID)
	return args.Error(0)
}

func (m *MockFileService) Links(ctx context.Context, requester, fileID int64) ([]model.DocumentLink, error) {
	args := m.Called(ctx, requester, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentLink), args.Error(1)
}
