// Package pubsub is the in-process event bus connecting the push channel to
// the state trackers (reconciler, typing, presence) without either side
// knowing about the other.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to
	// (e.g. "chat.message.new").
	Topic string
	// Payload contains the raw event data as JSON.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
// Cancelling the context passed to Subscribe unsubscribes the handler.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is the combined publish/subscribe surface shared by all views in a
// session.
type Bus interface {
	Publisher
	Subscriber
}
