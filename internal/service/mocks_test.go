package service

import (
	"context"

	"github.com/Rrens/doc-assistant/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockExtractor mocks the TextExtractor interface
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(doc *domain.Document) (string, error) {
	args := m.Called(doc)
	return args.String(0), args.Error(1)
}

// MockTextCache mocks the TextCache interface
type MockTextCache struct {
	mock.Mock
}

func (m *MockTextCache) Get(ctx context.Context, digest string) (string, bool, error) {
	args := m.Called(ctx, digest)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockTextCache) Set(ctx context.Context, digest, text string) error {
	args := m.Called(ctx, digest, text)
	return args.Error(0)
}

func (m *MockTextCache) Invalidate(ctx context.Context, digest string) error {
	args := m.Called(ctx, digest)
	return args.Error(0)
}

func (m *MockTextCache) FlushAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
