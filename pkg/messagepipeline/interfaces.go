package messagepipeline

import (
	"context"
)

// MessageConsumer defines the interface for a message source such as a Pub/Sub
// subscription.
type MessageConsumer interface {
	// Messages returns a read-only channel from which workers receive messages.
	Messages() <-chan Message
	// Start begins the consumption process.
	Start(ctx context.Context) error
	// Stop ceases message consumption and waits for background tasks to finish.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// MessageProcessor handles one consumed message. A nil error acks the message,
// an error nacks it so the broker redelivers it.
type MessageProcessor func(ctx context.Context, msg *Message) error
