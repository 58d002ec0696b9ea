package protocol

import (
	"context"
	"time"

	"github.com/dukex/renflow/pkg/models"
)

// ConnectionEvent is emitted on connect and disconnect.
type ConnectionEvent struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent is emitted when the transport reports a failure.
type ErrorEvent struct {
	ID        string    `json:"id"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Adapter event names, as used for trigger matching.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
	EventMessage      = "message"
	EventMessageMine  = "message_mine"
)

// BotAdapter owns one connection to a bot gateway.
type BotAdapter interface {
	ID() string
	Type() string
	Connected() bool

	// Connect establishes the transport. Calling it while connected is a no-op.
	Connect(ctx context.Context) error

	// Disconnect closes the transport, cancels any pending reconnect and
	// rejects in-flight calls.
	Disconnect(ctx context.Context) error

	// Send writes req without waiting for a response.
	Send(ctx context.Context, req *models.APIRequest) error

	// Call writes req and waits for the response carrying the same echo.
	Call(ctx context.Context, req *models.APIRequest) (*models.APIResponse, error)

	OnConnected(fn func(ConnectionEvent)) Subscription
	OnDisconnected(fn func(ConnectionEvent)) Subscription
	OnError(fn func(ErrorEvent)) Subscription
	OnMessage(fn func(*models.ChatMessage)) Subscription
	OnMessageMine(fn func(*models.ChatMessage)) Subscription
}

// AdapterOptions configure a bot adapter.
type AdapterOptions struct {
	URL           string        `validate:"required,url"`
	Token         string
	Reconnect     *bool
	MaxRetries    int           `validate:"gte=0"`
	RetryInterval time.Duration `validate:"gte=0"`
	SyncTimeout   time.Duration `validate:"gte=0"`
	// RateLimit caps outgoing requests per second. Zero disables the cap.
	RateLimit float64 `validate:"gte=0"`
	RateBurst int     `validate:"gte=0"`
}
