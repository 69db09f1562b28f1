package history

import (
	"context"
	"time"

	"github.com/npezzotti/classroom-chat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Append(ctx context.Context, author, color, body string) (types.Message, error) {
	args := m.Called(author, color, body)
	return args.Get(0).(types.Message), args.Error(1)
}
func (m *MockStore) Recent(ctx context.Context, limit int) ([]types.Message, error) {
	args := m.Called(limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) Snapshot(ctx context.Context, limit int) ([]types.Message, int, error) {
	args := m.Called(limit)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}
func (m *MockStore) ArchiveAndClear(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) PruneArchive(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(maxAge)
	return args.Get(0).(int64), args.Error(1)
}
