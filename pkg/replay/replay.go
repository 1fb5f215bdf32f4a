// Package replay resends dead letters. It sits above the transport: a message
// that failed once is only retried when an operator runs a Replayer against
// the dead-letter subscription.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
	"github.com/illmade-knight/go-malhttp/pkg/interaction"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/illmade-knight/go-malhttp/pkg/transport"
	"github.com/rs/zerolog"
)

// Config holds configuration for a Replayer.
type Config struct {
	NumWorkers int
	// MaxAge drops dead letters published longer ago than this. Zero keeps all.
	MaxAge time.Duration
	// SendTimeout bounds the wait for each resend.
	SendTimeout time.Duration
}

// NewConfigDefaults provides a config with sensible defaults, overridden by
// MALHTTP_REPLAY_* environment variables.
func NewConfigDefaults() Config {
	cfg := Config{
		NumWorkers:  2,
		MaxAge:      24 * time.Hour,
		SendTimeout: 60 * time.Second,
	}
	if v := os.Getenv("MALHTTP_REPLAY_MAX_AGE"); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			cfg.MaxAge = val
		}
	}
	if v := os.Getenv("MALHTTP_REPLAY_SEND_TIMEOUT"); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			cfg.SendTimeout = val
		}
	}
	return cfg
}

// EndpointResolver finds the local endpoint a dead letter was sent from.
type EndpointResolver interface {
	Endpoint(uri string) (*transport.Endpoint, bool)
}

// Replayer rebuilds dead letters from their attributes and sends them again
// from their original endpoint.
type Replayer struct {
	cfg      Config
	service  *messagepipeline.StreamingService
	resolver EndpointResolver
	codec    headercodec.Codec
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a Replayer reading dead letters from consumer.
func New(cfg Config, consumer messagepipeline.MessageConsumer, resolver EndpointResolver, logger zerolog.Logger) (*Replayer, error) {
	if resolver == nil {
		return nil, errors.New("endpoint resolver cannot be nil")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = NewConfigDefaults().SendTimeout
	}
	r := &Replayer{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger.With().Str("component", "Replayer").Logger(),
		now:      time.Now,
	}
	service, err := messagepipeline.NewStreamingService(messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumWorkers}, consumer, r.process, logger)
	if err != nil {
		return nil, err
	}
	r.service = service
	return r, nil
}

// Start begins consuming dead letters.
func (r *Replayer) Start(ctx context.Context) error {
	return r.service.Start(ctx)
}

// Stop stops consuming and waits for resends in flight.
func (r *Replayer) Stop(ctx context.Context) error {
	return r.service.Stop(ctx)
}

// process resends one dead letter. Letters that can never be resent are acked
// and dropped; only an unknown or closed origin endpoint nacks, since another
// transport instance may own it.
func (r *Replayer) process(ctx context.Context, msg *messagepipeline.Message) error {
	log := r.logger.With().Str("msg_id", msg.ID).Logger()

	if r.cfg.MaxAge > 0 && !msg.PublishTime.IsZero() && r.now().Sub(msg.PublishTime) > r.cfg.MaxAge {
		log.Warn().Time("published", msg.PublishTime).Msg("Dead letter too old, dropping.")
		return nil
	}

	h, err := r.codec.Decode(headercodec.HeaderMap(msg.Attributes))
	if err != nil {
		log.Error().Err(err).Msg("Dead letter has no usable header, dropping.")
		return nil
	}
	log = log.With().Int64("transaction_id", h.TransactionID).Str("uri_from", h.URIFrom).Logger()

	if interaction.IsReply(h.InteractionType, h.InteractionStage) {
		log.Warn().Msg("Dead letter is a reply whose exchange is gone, dropping.")
		return nil
	}

	ep, ok := r.resolver.Endpoint(h.URIFrom)
	if !ok {
		return fmt.Errorf("no local endpoint %s", h.URIFrom)
	}

	f, err := ep.Send(ctx, &mal.Message{Header: h, Body: msg.Payload})
	if errors.Is(err, transport.ErrClosed) {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Msg("Resend rejected.")
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()
	if err := f.Wait(waitCtx); err != nil {
		if errors.Is(err, transport.ErrTransmit) {
			log.Warn().Err(err).Msg("Resend failed again.")
			return nil
		}
		return err
	}
	log.Info().Msg("Dead letter resent.")
	return nil
}
