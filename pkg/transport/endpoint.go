package transport

import (
	"context"
	"sync/atomic"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
)

// Endpoint is a named, addressable local endpoint. Messages addressed to its
// URI are delivered to its listener; messages it sends carry its URI as URIFrom.
type Endpoint struct {
	transport *Transport
	name      string
	uri       string
	path      string
	listener  mal.Listener
	closed    atomic.Bool
}

// Name is the endpoint name given at creation.
func (e *Endpoint) Name() string {
	return e.name
}

// URI is the logical URI peers address the endpoint by.
func (e *Endpoint) URI() string {
	return e.uri
}

// Send transmits msg. An empty URIFrom is filled with the endpoint's URI on a
// copy of the header; msg itself is never modified.
//
// A message at a reply stage completes the inbound exchange that is waiting for
// it before Send returns, and the returned Future is already done. Any other
// message is posted from the send pool; the Future completes once the peer's
// response has been interpreted and any reply carried by it delivered to this
// endpoint's listener. Failures are reported as *TransmitError, either returned
// directly or through the Future.
//
// Listeners run on the dispatch pool. A listener that blocks on a Future holds a
// dispatch worker until the peer answers.
func (e *Endpoint) Send(ctx context.Context, msg *mal.Message) (*messagepipeline.Future, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if msg != nil && msg.Header != nil && msg.Header.URIFrom == "" {
		h := *msg.Header
		h.URIFrom = e.uri
		msg = &mal.Message{Header: &h, Body: msg.Body}
	}
	return e.transport.send(ctx, msg)
}

// Close removes the endpoint. Messages already dispatched to it are dropped.
func (e *Endpoint) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.transport.removeEndpoint(e)
	e.transport.logger.Info().Str("uri", e.uri).Msg("Endpoint closed.")
}

func (e *Endpoint) deliver(ctx context.Context, msg *mal.Message) {
	if e.closed.Load() {
		e.transport.logger.Warn().Str("uri", e.uri).Int64("transaction_id", msg.Header.TransactionID).Msg("Dropping message for closed endpoint.")
		return
	}
	e.listener.OnMessage(ctx, msg)
}
