package mocks

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockBotAdapter is a mock implementation of protocol.BotAdapter. Event
// subscriptions are real so tests can drive them through Emit* helpers.
type MockBotAdapter struct {
	mock.Mock

	AdapterID string

	connected    protocol.Subject[protocol.ConnectionEvent]
	disconnected protocol.Subject[protocol.ConnectionEvent]
	errs         protocol.Subject[protocol.ErrorEvent]
	messages     protocol.Subject[*models.ChatMessage]
	mine         protocol.Subject[*models.ChatMessage]
}

func NewMockBotAdapter(id string) *MockBotAdapter {
	return &MockBotAdapter{AdapterID: id}
}

func (m *MockBotAdapter) ID() string   { return m.AdapterID }
func (m *MockBotAdapter) Type() string { return "mock" }

func (m *MockBotAdapter) Connected() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *MockBotAdapter) Connect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockBotAdapter) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockBotAdapter) Send(ctx context.Context, req *models.APIRequest) error {
	args := m.Called(ctx, req)

	return args.Error(0)
}

func (m *MockBotAdapter) Call(ctx context.Context, req *models.APIRequest) (*models.APIResponse, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*models.APIResponse)

	return resp, args.Error(1)
}

func (m *MockBotAdapter) OnConnected(fn func(protocol.ConnectionEvent)) protocol.Subscription {
	return m.connected.Subscribe(fn)
}

func (m *MockBotAdapter) OnDisconnected(fn func(protocol.ConnectionEvent)) protocol.Subscription {
	return m.disconnected.Subscribe(fn)
}

func (m *MockBotAdapter) OnError(fn func(protocol.ErrorEvent)) protocol.Subscription {
	return m.errs.Subscribe(fn)
}

func (m *MockBotAdapter) OnMessage(fn func(*models.ChatMessage)) protocol.Subscription {
	return m.messages.Subscribe(fn)
}

func (m *MockBotAdapter) OnMessageMine(fn func(*models.ChatMessage)) protocol.Subscription {
	return m.mine.Subscribe(fn)
}

func (m *MockBotAdapter) EmitMessage(msg *models.ChatMessage)     { m.messages.Emit(msg) }
func (m *MockBotAdapter) EmitMessageMine(msg *models.ChatMessage) { m.mine.Emit(msg) }

func (m *MockBotAdapter) EmitConnected() {
	m.connected.Emit(protocol.ConnectionEvent{ID: m.AdapterID, Source: m.Type()})
}

func (m *MockBotAdapter) EmitDisconnected() {
	m.disconnected.Emit(protocol.ConnectionEvent{ID: m.AdapterID, Source: m.Type()})
}

// MessageSubscribers reports how many message observers are attached.
func (m *MockBotAdapter) MessageSubscribers() int {
	return m.messages.Len() + m.mine.Len()
}
