package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docintel/internal/llm"
)

type MockProvider struct {
	mock.Mock
}

var _ llm.Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Converse(ctx context.Context, req llm.ConverseRequest) (*llm.ConverseResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ConverseResponse), args.Error(1)
}
