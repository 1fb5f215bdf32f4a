package messagepipeline

import (
	"time"
)

// Message is a message taken from a broker subscription, together with the
// handles that settle it.
type Message struct {
	// ID is the unique identifier for the message from the source broker.
	ID string

	// Payload is the raw byte content of the message.
	Payload []byte

	// Attributes holds the broker metadata. Dead letters carry their encoded
	// protocol header here.
	Attributes map[string]string

	// PublishTime is the timestamp when the message was originally published.
	PublishTime time.Time

	// Ack signals that the message was handled and can be removed from the source.
	Ack func()

	// Nack signals that handling failed and the message should be redelivered.
	Nack func()
}
