// Package telemetry holds the OpenTelemetry instrumentation of the transport:
// spans around sends and inbound dispatch, message counters and send latency.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/illmade-knight/go-malhttp"

// Options selects the providers. Nil providers fall back to the global ones.
type Options struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Instrumentation records traces and metrics for the transport.
type Instrumentation struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer

	sendLatency    metric.Float64Histogram
	sentCount      metric.Int64Counter
	receivedCount  metric.Int64Counter
	transmitErrors metric.Int64Counter
}

// New creates the instruments.
func New(opts Options) (*Instrumentation, error) {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	i := &Instrumentation{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(instrumentationName),
	}
	meter := mp.Meter(instrumentationName)

	var err error
	i.sendLatency, err = meter.Float64Histogram(
		"malhttp.send.duration",
		metric.WithDescription("Duration of outbound sends, from POST to interpreted response"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	i.sentCount, err = meter.Int64Counter(
		"malhttp.send.count",
		metric.WithDescription("Number of messages sent"),
	)
	if err != nil {
		return nil, err
	}
	i.receivedCount, err = meter.Int64Counter(
		"malhttp.receive.count",
		metric.WithDescription("Number of inbound requests, by response status"),
	)
	if err != nil {
		return nil, err
	}
	i.transmitErrors, err = meter.Int64Counter(
		"malhttp.transmit.errors",
		metric.WithDescription("Number of transmit errors reported to senders"),
	)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Nop returns instrumentation that records nothing observable unless global
// providers are installed. It never fails.
func Nop() *Instrumentation {
	i, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return i
}

// StartSpan starts a span named after the operation, tagged with the message
// identity. The returned function ends it, recording err when non-nil.
func (i *Instrumentation) StartSpan(ctx context.Context, name string, kind trace.SpanKind, h *mal.MessageHeader) (context.Context, func(error)) {
	ctx, span := i.tracer.Start(ctx, name,
		trace.WithAttributes(HeaderAttributes(h)...),
		trace.WithSpanKind(kind),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// RecordSend records one outbound send.
func (i *Instrumentation) RecordSend(ctx context.Context, h *mal.MessageHeader, duration time.Duration, err error) {
	attrs := metric.WithAttributes(interactionAttributes(h)...)
	i.sendLatency.Record(ctx, duration.Seconds(), attrs)
	i.sentCount.Add(ctx, 1, attrs)
	if err != nil {
		i.transmitErrors.Add(ctx, 1, attrs)
	}
}

// RecordReceive records one inbound request and the status it was answered with.
// h is nil when the header could not be decoded.
func (i *Instrumentation) RecordReceive(ctx context.Context, h *mal.MessageHeader, status int) {
	attrs := append(interactionAttributes(h), attribute.Int("http.status", status))
	i.receivedCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ClientTransport wraps an HTTP client transport so each POST gets a client span.
func (i *Instrumentation) ClientTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(i.tracerProvider),
		otelhttp.WithMeterProvider(i.meterProvider),
	)
}

// ServerHandler wraps the inbound handler so each request gets a server span.
func (i *Instrumentation) ServerHandler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithTracerProvider(i.tracerProvider),
		otelhttp.WithMeterProvider(i.meterProvider),
	)
}

// HeaderAttributes describes a message for a span.
func HeaderAttributes(h *mal.MessageHeader) []attribute.KeyValue {
	if h == nil {
		return nil
	}
	return append(interactionAttributes(h),
		attribute.String("mal.uri_from", h.URIFrom),
		attribute.String("mal.uri_to", h.URITo),
		attribute.Int64("mal.transaction_id", h.TransactionID),
		attribute.Int("mal.service_area", int(h.ServiceArea)),
		attribute.Int("mal.service", int(h.Service)),
		attribute.Int("mal.operation", int(h.Operation)),
	)
}

func interactionAttributes(h *mal.MessageHeader) []attribute.KeyValue {
	if h == nil {
		return []attribute.KeyValue{}
	}
	return []attribute.KeyValue{
		attribute.String("mal.interaction_type", h.InteractionType.String()),
		attribute.Int("mal.interaction_stage", int(h.InteractionStage)),
		attribute.Bool("mal.is_error", h.IsErrorMessage),
	}
}
