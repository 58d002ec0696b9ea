// Package eventbus carries run and adapter lifecycle events over a watermill
// transport, either the in-process channel or Kafka.
package eventbus

import (
	"context"
	"io"

	"github.com/dukex/renflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher is all the engine and the dispatcher need.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives a pointer to the concrete event type, e.g.
// *events.NodeExecutionFinished.
type EventHandler func(ctx context.Context, event any) error

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	io.Closer
}
