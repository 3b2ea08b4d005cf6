// Package messaging defines the abstract queue used to hand correction
// outcomes (and any other payload) between components without blocking the
// producer.
package messaging

import (
	"context"
)

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with the given payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message, or nil when none is available and
	// the implementation does not block.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing.
	Ack() error

	// Nack signals a processing failure; the implementation may retry or
	// dead-letter the message.
	Nack(err error) error
}
