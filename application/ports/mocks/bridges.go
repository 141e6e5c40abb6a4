// Package mocks provides test doubles for the engine's collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"treeview-ai/domain/core/entities"
)

// MockSessionBridge is a testify mock of ports.SessionBridge.
type MockSessionBridge struct {
	mock.Mock
}

func (m *MockSessionBridge) GetSession(ctx context.Context, id string) (entities.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(entities.Session), args.Error(1)
}

func (m *MockSessionBridge) SaveSession(ctx context.Context, id string, graph entities.Snapshot) (entities.Session, error) {
	args := m.Called(ctx, id, graph)
	return args.Get(0).(entities.Session), args.Error(1)
}

// MockChatBridge is a testify mock of ports.ChatBridge.
type MockChatBridge struct {
	mock.Mock
}

func (m *MockChatBridge) FetchHistory(ctx context.Context, sessionID string) ([]entities.Message, error) {
	args := m.Called(ctx, sessionID)
	msgs, _ := args.Get(0).([]entities.Message)
	return msgs, args.Error(1)
}

func (m *MockChatBridge) SendMessage(ctx context.Context, sessionID, text string, graph entities.Snapshot) (entities.Message, error) {
	args := m.Called(ctx, sessionID, text, graph)
	return args.Get(0).(entities.Message), args.Error(1)
}
