package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockUploader is a testify mock of Uploader for service tests.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Store(ctx context.Context, localPath string) (string, error) {
	args := m.Called(ctx, localPath)
	return args.String(0), args.Error(1)
}
