package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
	"github.com/illmade-knight/go-malhttp/pkg/interaction"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"go.opentelemetry.io/otel/trace"
)

// exchangeResponse is what a waiting inbound exchange is answered with.
// A nil header means a bare HTTP status without protocol headers.
type exchangeResponse struct {
	status int
	header headercodec.HeaderMap
	body   []byte
}

// pendingExchange is an inbound HTTP exchange waiting for the reply that the
// outbound side produces later.
type pendingExchange struct {
	header *mal.MessageHeader
	done   chan exchangeResponse
}

func newPendingExchange(h *mal.MessageHeader) *pendingExchange {
	return &pendingExchange{header: h, done: make(chan exchangeResponse, 1)}
}

// complete hands the response to the waiting handler. Only the first response
// is kept.
func (p *pendingExchange) complete(r exchangeResponse) {
	select {
	case p.done <- r:
	default:
	}
}

// handleInbound runs the inbound pipeline for one HTTP request: decode, resolve
// the endpoint, classify, then answer at once or wait for the reply.
func (t *Transport) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		t.reject(w, r, nil, http.StatusMethodNotAllowed, "only POST is accepted")
		return
	}
	if t.closed.Load() {
		t.reject(w, r, nil, http.StatusServiceUnavailable, "transport is closing")
		return
	}

	wire := headercodec.FromHTTP(r.Header)
	wire[headercodec.HeaderHost] = r.Host
	wire[headercodec.HeaderRequestTarget] = r.URL.Path
	h, err := t.codec.Decode(wire)
	if err != nil {
		t.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Rejecting request with malformed headers.")
		t.reject(w, r, nil, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			t.reject(w, r, h, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		t.reject(w, r, h, http.StatusBadRequest, err.Error())
		return
	}

	if h.URITo == "" {
		t.reject(w, r, h, http.StatusInternalServerError, "destination cannot be determined")
		return
	}
	ep := t.lookup(h.URITo, r.URL.Path)
	if ep == nil {
		t.logger.Warn().Str("uri_to", h.URITo).Msg("No endpoint for destination.")
		t.reject(w, r, h, http.StatusNotFound, "no endpoint for "+h.URITo)
		return
	}

	msg := &mal.Message{Header: h, Body: body}
	if interaction.Classify(h.InteractionType, h.InteractionStage) != interaction.AwaitReply {
		if err := t.dispatch(r.Context(), ep, msg); err != nil {
			t.reject(w, r, h, dispatchStatus(err), err.Error())
			return
		}
		t.respond(w, r, h, exchangeResponse{status: http.StatusNoContent})
		return
	}
	t.awaitReply(w, r, ep, msg)
}

// awaitReply registers the exchange before dispatching, so the reply can never
// be looked up before it exists, then holds the request open until it is answered.
func (t *Transport) awaitReply(w http.ResponseWriter, r *http.Request, ep *Endpoint, msg *mal.Message) {
	h := msg.Header
	key := h.InitiatorKey()
	ex := newPendingExchange(h)

	if err := t.pending.Store(r.Context(), key, ex); err != nil {
		t.logger.Warn().Err(err).Str("key", key.String()).Msg("Cannot register exchange.")
		t.reject(w, r, h, http.StatusInternalServerError, err.Error())
		return
	}
	if err := t.dispatch(r.Context(), ep, msg); err != nil {
		_, _ = t.pending.Take(context.WithoutCancel(r.Context()), key)
		t.reject(w, r, h, dispatchStatus(err), err.Error())
		return
	}

	select {
	case resp := <-ex.done:
		t.respond(w, r, h, resp)
	case <-t.closing:
		if _, err := t.pending.Take(context.WithoutCancel(r.Context()), key); err == nil {
			t.reject(w, r, h, http.StatusServiceUnavailable, "transport is closing")
			return
		}
		t.respond(w, r, h, <-ex.done)
	case <-r.Context().Done():
		if _, err := t.pending.Take(context.WithoutCancel(r.Context()), key); err == nil {
			t.logger.Debug().Str("key", key.String()).Msg("Peer went away before the reply.")
		}
	}
}

// dispatch delivers msg to the endpoint's listener on the dispatch pool.
func (t *Transport) dispatch(ctx context.Context, ep *Endpoint, msg *mal.Message) error {
	_, err := t.dispatchers.Submit(ctx, func(taskCtx context.Context) error {
		spanCtx, end := t.telemetry.StartSpan(taskCtx, "malhttp.dispatch", trace.SpanKindConsumer, msg.Header)
		ep.deliver(spanCtx, msg)
		end(nil)
		return nil
	})
	return err
}

func dispatchStatus(err error) int {
	if errors.Is(err, messagepipeline.ErrPoolStopped) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (t *Transport) respond(w http.ResponseWriter, r *http.Request, h *mal.MessageHeader, resp exchangeResponse) {
	if resp.header != nil {
		resp.header.WriteTo(w.Header())
		if len(resp.body) > 0 {
			w.Header().Set("Content-Type", t.body.ContentType())
			if enc := t.body.Encoding(); enc != "" {
				w.Header().Set(headercodec.HeaderEncoding, enc)
			}
		}
	}
	w.WriteHeader(resp.status)
	if len(resp.body) > 0 && resp.status != http.StatusNoContent {
		if _, err := w.Write(resp.body); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to write response body.")
		}
	}
	t.telemetry.RecordReceive(r.Context(), h, resp.status)
}

// reject answers with a bare HTTP error. It carries no protocol headers, so the
// peer synthesizes the matching standard error.
func (t *Transport) reject(w http.ResponseWriter, r *http.Request, h *mal.MessageHeader, status int, reason string) {
	http.Error(w, reason, status)
	t.telemetry.RecordReceive(r.Context(), h, status)
}
