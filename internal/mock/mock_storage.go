// Package mock provides testify mocks for the job system's interfaces.
package mock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

// Upload mocks the Upload method. The reader is drained so callers that
// stream through a pipe do not block.
func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	_, _ = io.Copy(io.Discard, reader)
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

// Download mocks the Download method.
func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Delete mocks the Delete method.
func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Exists mocks the Exists method.
func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// List mocks the List method.
func (m *MockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// GetURL mocks the GetURL method.
func (m *MockStorage) GetURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// ExpectUpload sets up an expectation for Upload on any key.
func (m *MockStorage) ExpectUpload(err error) *mock.Call {
	return m.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(err)
}

// ExpectDownload sets up an expectation for Download of key.
func (m *MockStorage) ExpectDownload(key string, rc io.ReadCloser, err error) *mock.Call {
	return m.On("Download", mock.Anything, key).Return(rc, err)
}

// ExpectList sets up an expectation for List of prefix.
func (m *MockStorage) ExpectList(prefix string, keys []string, err error) *mock.Call {
	return m.On("List", mock.Anything, prefix).Return(keys, err)
}
