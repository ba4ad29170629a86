package server

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// MockResolver stands in for the resolution engine behind the HTTP surface.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Observe(ctx context.Context, instruction string) (schemas.CacheKey, bool, error) {
	args := m.Called(ctx, instruction)
	return schemas.CacheKey(args.String(0)), args.Bool(1), args.Error(2)
}

func (m *MockResolver) Act(ctx context.Context, instruction string) error {
	args := m.Called(ctx, instruction)
	return args.Error(0)
}

func (m *MockResolver) Extract(ctx context.Context, instruction string) (json.RawMessage, error) {
	args := m.Called(ctx, instruction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockNavigator stands in for the page being driven.
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}
