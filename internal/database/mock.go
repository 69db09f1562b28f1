package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccount(ctx context.Context, username string) (Account, error) {
	args := m.Called(username)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) UpdateNote(ctx context.Context, username, note string) error {
	args := m.Called(username, note)
	return args.Error(0)
}
func (m *MockChatRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	args := m.Called(username, at)
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetRecentMessages(ctx context.Context, limit int) ([]Message, error) {
	args := m.Called(limit)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockChatRepository) CountMessages(ctx context.Context) (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) ArchiveMessages(ctx context.Context, maxArchived int) (int64, error) {
	args := m.Called(maxArchived)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChatRepository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}
