package engine

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// -- Snapshot Provider Mock --

// MockSnapshotProvider mocks the schemas.SnapshotProvider boundary.
type MockSnapshotProvider struct {
	mock.Mock
}

// Snapshot mocks the on-demand document enumeration.
func (m *MockSnapshotProvider) Snapshot(ctx context.Context) (*schemas.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Snapshot), args.Error(1)
}

// -- Reasoning Oracle Mock --

// MockOracle mocks the schemas.ReasoningOracle boundary. Call counts double
// as the oracle-invocation counter the cache behavior tests assert on.
type MockOracle struct {
	mock.Mock
}

// ResolveLocator mocks the observation resolution.
func (m *MockOracle) ResolveLocator(ctx context.Context, instruction, domText string) (int, bool, error) {
	args := m.Called(ctx, instruction, domText)
	return args.Int(0), args.Bool(1), args.Error(2)
}

// ResolveActions mocks the action-sequence resolution.
func (m *MockOracle) ResolveActions(ctx context.Context, instruction, domText string) ([]schemas.Command, error) {
	args := m.Called(ctx, instruction, domText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Command), args.Error(1)
}

// Extract mocks the data extraction resolution.
func (m *MockOracle) Extract(ctx context.Context, instruction, domText string) (json.RawMessage, error) {
	args := m.Called(ctx, instruction, domText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// -- Document Driver Mock --

// MockDriver mocks the schemas.DocumentDriver boundary.
type MockDriver struct {
	mock.Mock
}

// CountMatches mocks the live attachment check.
func (m *MockDriver) CountMatches(ctx context.Context, locator string) (int, error) {
	args := m.Called(ctx, locator)
	return args.Int(0), args.Error(1)
}

// Execute mocks one command application.
func (m *MockDriver) Execute(ctx context.Context, cmd schemas.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

// WaitForSettle mocks the quiescence wait.
func (m *MockDriver) WaitForSettle(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
