package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
	"github.com/illmade-knight/go-malhttp/pkg/interaction"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/illmade-knight/go-malhttp/pkg/statusmap"
	"go.opentelemetry.io/otel/trace"
)

// send routes a message: replies complete their waiting exchange, everything
// else is posted from the send pool.
func (t *Transport) send(ctx context.Context, msg *mal.Message) (*messagepipeline.Future, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if msg == nil || msg.Header == nil {
		return nil, newTransmitError(nil, mal.ErrorInternal, errors.New("message has no header"))
	}
	h := msg.Header

	if interaction.IsReply(h.InteractionType, h.InteractionStage) {
		if err := t.reply(ctx, msg); err != nil {
			return nil, t.fail(ctx, msg, err)
		}
		return messagepipeline.CompletedFuture(nil), nil
	}

	physical := t.cfg.DestinationOverride
	wire, err := t.codec.Encode(h, physical)
	if err != nil {
		return nil, t.fail(ctx, msg, newTransmitError(h, mal.ErrorBadEncoding, err))
	}
	if physical == "" {
		if physical, err = headercodec.ToPhysical(h.URITo); err != nil {
			return nil, t.fail(ctx, msg, newTransmitError(h, mal.ErrorBadEncoding, err))
		}
	}

	f, err := t.pool.Submit(ctx, func(taskCtx context.Context) error {
		return t.transmit(taskCtx, msg, wire, physical)
	})
	if errors.Is(err, messagepipeline.ErrPoolStopped) {
		return nil, ErrClosed
	}
	return f, err
}

// reply completes the inbound exchange waiting for msg with the HTTP status
// that carries it: the mapped status of its error number for an error message,
// the stage's success status otherwise.
func (t *Transport) reply(ctx context.Context, msg *mal.Message) error {
	h := msg.Header
	ex, err := t.pending.Take(ctx, h.ResponderKey())
	if err != nil {
		return newTransmitError(h, mal.ErrorIncorrectState, fmt.Errorf("no one is waiting for this reply: %w", err))
	}

	wire, err := t.codec.EncodeResponse(h)
	if err != nil {
		ex.complete(exchangeResponse{status: http.StatusInternalServerError})
		return newTransmitError(h, mal.ErrorBadEncoding, err)
	}

	status := interaction.SuccessStatus(h.InteractionType, h.InteractionStage)
	if h.IsErrorMessage {
		number, _, err := mal.DecodeStandardError(t.body, msg.Body)
		if err != nil {
			t.logger.Warn().Err(err).Int64("transaction_id", h.TransactionID).Msg("Error reply without a readable error number, answering 500.")
			number = mal.ErrorInternal
		}
		status = statusmap.HTTPStatus(number)
	}

	ex.complete(exchangeResponse{status: status, header: wire, body: msg.Body})
	t.logger.Debug().Int64("transaction_id", h.TransactionID).Int("status", status).Msg("Reply handed to waiting exchange.")
	return nil
}

// transmit posts one message and interprets the response. It runs on a worker.
func (t *Transport) transmit(ctx context.Context, msg *mal.Message, wire headercodec.HeaderMap, physical string) error {
	start := time.Now()
	ctx, end := t.telemetry.StartSpan(ctx, "malhttp.send", trace.SpanKindProducer, msg.Header)
	err := t.post(ctx, msg, wire, physical)
	end(err)
	t.telemetry.RecordSend(ctx, msg.Header, time.Since(start), err)
	if err != nil {
		return t.fail(ctx, msg, err)
	}
	return nil
}

func (t *Transport) post(ctx context.Context, msg *mal.Message, wire headercodec.HeaderMap, physical string) error {
	h := msg.Header
	if err := t.sends.Acquire(ctx, 1); err != nil {
		return newTransmitError(h, mal.ErrorDeliveryFailed, err)
	}
	defer t.sends.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, physical, bytes.NewReader(msg.Body))
	if err != nil {
		return newTransmitError(h, mal.ErrorBadEncoding, err)
	}
	wire.WriteTo(req.Header)
	req.Host = wire[headercodec.HeaderHost]
	req.Header.Set("Content-Type", t.body.ContentType())
	if enc := t.body.Encoding(); enc != "" {
		req.Header.Set(headercodec.HeaderEncoding, enc)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return newTransmitError(h, noResponseNumber(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.cfg.MaxBodyBytes))
	if err != nil {
		return newTransmitError(h, noResponseNumber(err), err)
	}
	return t.interpret(ctx, h, resp, body)
}

// noResponseNumber separates "nothing came back" from other I/O failures.
func noResponseNumber(err error) mal.ErrorNumber {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr) && netErr.Timeout():
		return mal.ErrorDeliveryTimedOut
	}
	return mal.ErrorUnknown
}

// interpret turns the HTTP response to h into the reply delivered to the
// sender's own endpoint.
func (t *Transport) interpret(ctx context.Context, h *mal.MessageHeader, resp *http.Response, body []byte) error {
	if interaction.IsTerminal(h.InteractionType, h.InteractionStage) {
		if statusmap.IsError(resp.StatusCode) {
			t.logger.Warn().Int("status", resp.StatusCode).Int64("transaction_id", h.TransactionID).Msg("Terminal message was refused by the peer.")
		}
		return nil
	}

	ep := t.lookup(h.URIFrom, "")
	if ep == nil {
		return newTransmitError(h, mal.ErrorDestinationUnknown, fmt.Errorf("no local endpoint for %s", h.URIFrom))
	}

	wire := headercodec.FromHTTP(resp.Header)
	if statusmap.IsError(resp.StatusCode) && !wire.HasProtocolHeaders() {
		reply, err := t.synthesizeError(h, resp.StatusCode)
		if err != nil {
			return err
		}
		t.logger.Debug().Int("status", resp.StatusCode).Int64("transaction_id", h.TransactionID).Msg("Synthesized error reply from HTTP status.")
		ep.deliver(ctx, reply)
		return nil
	}

	reply, err := t.codec.Decode(wire)
	if err != nil {
		return newTransmitError(h, mal.ErrorBadEncoding, fmt.Errorf("failed to decode reply: %w", err))
	}
	reply.URITo = headercodec.ToLogical(reply.URITo)
	if reply.URITo == "" {
		reply.URITo = h.URIFrom
	}
	ep.deliver(ctx, &mal.Message{Header: reply, Body: body})
	return nil
}

// synthesizeError builds the error reply for a response that never reached the
// peer's protocol layer. It is positioned one stage after the request.
func (t *Transport) synthesizeError(h *mal.MessageHeader, status int) (*mal.Message, error) {
	number := statusmap.ErrorNumber(status)
	body, err := t.body.Encode(mal.ErrorBody(number, http.StatusText(status)))
	if err != nil {
		return nil, newTransmitError(h, mal.ErrorInternal, fmt.Errorf("failed to encode error body: %w", err))
	}
	return &mal.Message{Header: h.Reply(h.InteractionStage+1, true), Body: body}, nil
}

// fail logs a transmit failure and hands the message to the dead-letter sink.
func (t *Transport) fail(ctx context.Context, msg *mal.Message, err error) error {
	var terr *TransmitError
	if !errors.As(err, &terr) {
		terr = newTransmitError(msg.Header, mal.ErrorInternal, err)
	}
	t.logger.Error().Err(terr).Msg("Transmit failed.")
	t.publishDeadLetter(ctx, msg, terr)
	return terr
}
