package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"iams/internal/model"
)

type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) PlacementFor(kind model.FileKind, size int64) model.Placement {
	args := m.Called(kind, size)
	return args.Get(0).(model.Placement)
}

func (m *MockContentStore) WriteExternal(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error) {
	args := m.Called(ctx, suggestedName, r, size)
	return args.String(0), args.Error(1)
}

func (m *MockContentStore) OpenExternal(ctx context.Context, handle string) (io.ReadCloser, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockContentStore) DeleteExternal(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockContentStore) VerifyExternal(ctx context.Context, handle string, expected string) (bool, error) {
	args := m.Called(ctx, handle, expected)
	return args.Bool(0), args.Error(1)
}
