package assistant

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) Ask(ctx context.Context, prompt string) string {
	args := m.Called(prompt)
	return args.String(0)
}
