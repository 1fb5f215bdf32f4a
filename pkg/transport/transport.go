// Package transport binds message endpoints to HTTP. A Transport owns one HTTP
// server for inbound messages, one pooled HTTP client for outbound ones, the
// worker pools that run sends and listener dispatch, and the store of inbound
// exchanges still waiting for their reply.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-malhttp/pkg/correlation"
	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/illmade-knight/go-malhttp/pkg/microservice"
	"github.com/illmade-knight/go-malhttp/pkg/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options carries the collaborators of a Transport.
type Options struct {
	// BodyCodec encodes message bodies. It is required: the transport reads and
	// builds the bodies of error messages with it.
	BodyCodec mal.BodyCodec
	// Registry, when set, claims transaction keys across transport instances.
	Registry correlation.Registry
	// DeadLetters, when set, receives every message that failed with a TransmitError.
	DeadLetters messagepipeline.SimplePublisher
	// PubsubClient publishes dead letters to Config.DeadLetterTopicID when
	// DeadLetters is not set.
	PubsubClient *pubsub.Client
	// Telemetry defaults to instrumentation on the global otel providers.
	Telemetry *telemetry.Instrumentation
}

// Transport is the single point through which endpoints, the inbound pipeline
// and the outbound pipeline meet.
type Transport struct {
	cfg       Config
	id        string
	logger    zerolog.Logger
	codec     headercodec.Codec
	body      mal.BodyCodec
	telemetry *telemetry.Instrumentation

	server      *microservice.BaseServer
	client      *http.Client
	pool        *messagepipeline.WorkerPool
	dispatchers *messagepipeline.WorkerPool
	sends       *semaphore.Weighted
	pending     *correlation.Store[*pendingExchange]
	deadLetters messagepipeline.SimplePublisher

	ctx        context.Context
	cancel     context.CancelFunc
	reaperDone chan struct{}
	closing    chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once

	mu        sync.RWMutex
	baseURI   string
	endpoints map[string]*Endpoint
	byPath    map[string]*Endpoint
}

// New creates a Transport and starts its server, workers and reaper. The
// transport runs until Close is called or ctx is cancelled.
func New(ctx context.Context, cfg Config, opts Options, logger zerolog.Logger) (*Transport, error) {
	if opts.BodyCodec == nil {
		return nil, errors.New("body codec cannot be nil")
	}
	defaults := NewConfigDefaults()
	if cfg.Scheme == "" {
		cfg.Scheme = headercodec.SchemeMALHTTP
	}
	if cfg.Scheme != headercodec.SchemeMALHTTP && cfg.Scheme != headercodec.SchemeMALHTTPS {
		return nil, fmt.Errorf("unsupported scheme %q", cfg.Scheme)
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaults.MaxConnections
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = defaults.ReplyTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}

	files := microservice.TLSFiles{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, CAFile: cfg.TLSCAFile}
	var serverTLS *tls.Config
	if cfg.Scheme == headercodec.SchemeMALHTTPS {
		var err error
		serverTLS, err = microservice.ServerTLS(files)
		if err != nil {
			return nil, err
		}
		if serverTLS == nil {
			return nil, errors.New("malhttps requires a TLS certificate and key")
		}
	}
	clientTLS, err := microservice.ClientTLS(files)
	if err != nil {
		return nil, err
	}

	inst := opts.Telemetry
	if inst == nil {
		inst, err = telemetry.New(telemetry.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to create telemetry: %w", err)
		}
	}

	id := uuid.NewString()
	logger = logger.With().Str("component", "Transport").Str("instance_id", id).Logger()

	deadLetters, err := newDeadLetterPublisher(ctx, cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	httpTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSClientConfig:     clientTLS,
		ForceAttemptHTTP2:   true,
		MaxConnsPerHost:     cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &Transport{
		cfg:       cfg,
		id:        id,
		logger:    logger,
		codec:     headercodec.Codec{Scheme: cfg.Scheme},
		body:      opts.BodyCodec,
		telemetry: inst,
		client: &http.Client{
			Transport: inst.ClientTransport(httpTransport),
			// A peer holds the request open for up to its reply timeout.
			Timeout: cfg.SocketTimeout + cfg.ReplyTimeout,
		},
		pool: messagepipeline.NewWorkerPool(messagepipeline.WorkerPoolConfig{
			NumWorkers: cfg.NumWorkers,
			QueueSize:  cfg.QueueSize,
		}, logger.With().Str("pool", "send").Logger()),
		dispatchers: messagepipeline.NewWorkerPool(messagepipeline.WorkerPoolConfig{
			NumWorkers: cfg.DispatchWorkers,
			QueueSize:  cfg.QueueSize,
		}, logger.With().Str("pool", "dispatch").Logger()),
		sends: semaphore.NewWeighted(int64(cfg.MaxConnections)),
		pending: correlation.NewStore[*pendingExchange](correlation.StoreConfig{
			TTL: cfg.ReplyTimeout,
		}, opts.Registry, logger),
		deadLetters: deadLetters,
		ctx:         tctx,
		cancel:      cancel,
		reaperDone:  make(chan struct{}),
		closing:     make(chan struct{}),
		endpoints:   make(map[string]*Endpoint),
		byPath:      make(map[string]*Endpoint),
	}

	t.server = microservice.NewBaseServer(microservice.ServerConfig{
		Addr: cfg.listenAddr(),
		TLS:  serverTLS,
	}, logger)
	t.server.Router().Handle("/*", inst.ServerHandler(http.HandlerFunc(t.handleInbound), "malhttp.inbound"))
	if err := t.server.Start(); err != nil {
		cancel()
		return nil, err
	}
	t.baseURI = cfg.Scheme + "://" + t.server.Addr()

	t.pool.Start(tctx)
	t.dispatchers.Start(tctx)
	go func() {
		defer close(t.reaperDone)
		t.pending.RunReaper(tctx, reapInterval(cfg.ReplyTimeout), t.expire)
	}()

	t.logger.Info().Str("uri", t.baseURI).Msg("Transport started.")
	return t, nil
}

func reapInterval(replyTimeout time.Duration) time.Duration {
	interval := replyTimeout / 4
	if interval < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	if interval > 5*time.Second {
		return 5 * time.Second
	}
	return interval
}

// expire answers an exchange whose reply never came. The 504 carries no
// protocol headers, so the initiator turns it into a DELIVERY_TIMEDOUT error.
func (t *Transport) expire(key mal.Key, ex *pendingExchange) {
	t.logger.Warn().Str("key", key.String()).Msg("No reply within the reply timeout, answering 504.")
	ex.complete(exchangeResponse{status: http.StatusGatewayTimeout})
}

// URI is the base URI of the transport's endpoints.
func (t *Transport) URI() string {
	return t.baseURI
}

// ID identifies this transport instance in logs and dead letters.
func (t *Transport) ID() string {
	return t.id
}

// PendingExchanges is the number of inbound exchanges waiting for a reply.
func (t *Transport) PendingExchanges() int {
	return t.pending.Len()
}

// CreateEndpoint registers a local endpoint at URI() + "/" + name. Messages
// addressed to it are delivered to listener.
func (t *Transport) CreateEndpoint(name string, listener mal.Listener) (*Endpoint, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return nil, errors.New("endpoint name cannot be empty")
	}
	if listener == nil {
		return nil, errors.New("listener cannot be nil")
	}

	ep := &Endpoint{
		transport: t,
		name:      name,
		uri:       t.baseURI + "/" + name,
		path:      "/" + name,
		listener:  listener,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.endpoints[ep.uri]; exists {
		return nil, fmt.Errorf("endpoint %s already exists", ep.uri)
	}
	t.endpoints[ep.uri] = ep
	t.byPath[ep.path] = ep
	t.logger.Info().Str("uri", ep.uri).Msg("Endpoint created.")
	return ep, nil
}

// Endpoint returns the local endpoint registered under uri.
func (t *Transport) Endpoint(uri string) (*Endpoint, bool) {
	ep := t.lookup(uri, "")
	return ep, ep != nil
}

func (t *Transport) removeEndpoint(ep *Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endpoints[ep.uri] == ep {
		delete(t.endpoints, ep.uri)
		delete(t.byPath, ep.path)
	}
}

// lookup resolves a local endpoint by its exact URI, then by request path,
// since a peer may reach this host under another name.
func (t *Transport) lookup(uri, path string) *Endpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ep, ok := t.endpoints[strings.TrimSuffix(uri, "/")]; ok {
		return ep
	}
	if path != "" {
		return t.byPath[strings.TrimSuffix(path, "/")]
	}
	return nil
}

// Close stops accepting messages, answers every waiting exchange with 503,
// drains the worker pools and shuts the server down.
func (t *Transport) Close(ctx context.Context) error {
	var err error
	t.closeOnce.Do(func() {
		t.logger.Info().Msg("Closing transport...")
		t.closed.Store(true)
		close(t.closing)

		drained := t.pending.Drain(ctx)
		for key, ex := range drained {
			t.logger.Debug().Str("key", key.String()).Msg("Failing pending exchange on close.")
			ex.complete(exchangeResponse{status: http.StatusServiceUnavailable})
		}

		var g errgroup.Group
		g.Go(func() error { return t.server.Shutdown(ctx) })
		g.Go(func() error { return t.pool.Stop(ctx) })
		g.Go(func() error { return t.dispatchers.Stop(ctx) })
		err = g.Wait()

		t.cancel()
		<-t.reaperDone

		if t.deadLetters != nil {
			if stopErr := t.deadLetters.Stop(ctx); stopErr != nil {
				t.logger.Warn().Err(stopErr).Msg("Failed to stop dead-letter publisher.")
			}
		}
		t.client.CloseIdleConnections()
		t.logger.Info().Msg("Transport closed.")
	})
	return err
}
