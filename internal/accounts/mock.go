package accounts

import (
	"context"

	"github.com/npezzotti/classroom-chat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Register(ctx context.Context, name, password string) (types.Account, error) {
	args := m.Called(name, password)
	return args.Get(0).(types.Account), args.Error(1)
}
func (m *MockStore) Verify(ctx context.Context, name, password string) (types.Account, error) {
	args := m.Called(name, password)
	return args.Get(0).(types.Account), args.Error(1)
}
func (m *MockStore) Lookup(ctx context.Context, name string) (types.Account, error) {
	args := m.Called(name)
	return args.Get(0).(types.Account), args.Error(1)
}
func (m *MockStore) Note(ctx context.Context, name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}
func (m *MockStore) SetNote(ctx context.Context, name, text string) (string, error) {
	args := m.Called(name, text)
	return args.String(0), args.Error(1)
}
func (m *MockStore) TouchLogin(ctx context.Context, name string) error {
	args := m.Called(name)
	return args.Error(0)
}
