package mal

import (
	"context"
	"fmt"
)

// MessageHeader is the protocol envelope carried on every message.
type MessageHeader struct {
	URIFrom          string
	URITo            string
	AuthenticationID Blob
	Timestamp        Time
	QoSLevel         QoSLevel
	Priority         uint32
	Domain           []string
	NetworkZone      string
	Session          SessionType
	SessionName      string
	InteractionType  InteractionType
	InteractionStage uint8
	TransactionID    int64
	ServiceArea      uint16
	Service          uint16
	Operation        uint16
	AreaVersion      uint8
	IsErrorMessage   bool
}

// Key identifies one logical interaction for its whole multi-stage lifetime.
type Key struct {
	URI           string
	TransactionID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.URI, k.TransactionID)
}

// InitiatorKey is the correlation key of a message as seen by the side that
// received it: the initiator's URI and the transaction id.
func (h *MessageHeader) InitiatorKey() Key {
	return Key{URI: h.URIFrom, TransactionID: h.TransactionID}
}

// ResponderKey is the correlation key of a reply: replies travel back to the
// initiator, so the initiator is in URITo.
func (h *MessageHeader) ResponderKey() Key {
	return Key{URI: h.URITo, TransactionID: h.TransactionID}
}

// Reply builds the header of a reply to h at the given stage. The addressing is
// swapped and every other field is carried over.
func (h *MessageHeader) Reply(stage uint8, isError bool) *MessageHeader {
	r := *h
	r.URIFrom, r.URITo = h.URITo, h.URIFrom
	r.InteractionStage = stage
	r.IsErrorMessage = isError
	if h.Domain != nil {
		r.Domain = append([]string(nil), h.Domain...)
	}
	if h.AuthenticationID != nil {
		r.AuthenticationID = append(Blob(nil), h.AuthenticationID...)
	}
	return &r
}

// Message is a header and its encoded body.
type Message struct {
	Header *MessageHeader
	Body   []byte
}

// Listener receives the messages delivered to an endpoint. It is always called
// from a worker goroutine, never from the HTTP server's connection goroutine.
type Listener interface {
	OnMessage(ctx context.Context, msg *Message)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, msg *Message)

func (f ListenerFunc) OnMessage(ctx context.Context, msg *Message) {
	f(ctx, msg)
}
