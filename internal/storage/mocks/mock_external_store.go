package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockExternalStore struct {
	mock.Mock
}

func (m *MockExternalStore) Put(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error) {
	args := m.Called(ctx, suggestedName, r, size)
	return args.String(0), args.Error(1)
}

func (m *MockExternalStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockExternalStore) Delete(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}
