package messagepipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// SimplePublisher publishes single messages without batching. The transport
// uses it as the dead-letter sink for messages that could not be transmitted.
type SimplePublisher interface {
	Publish(ctx context.Context, payload []byte, attributes map[string]string) error
	// Stop flushes any pending messages and accepts a context for timeout control.
	Stop(ctx context.Context) error
}

// GoogleSimplePublisherConfig holds configuration for a GoogleSimplePublisher.
type GoogleSimplePublisherConfig struct {
	TopicID string
	// ResultTimeout bounds the background wait for each publish result.
	ResultTimeout time.Duration
}

// NewGoogleSimplePublisherDefaults provides a config with sensible defaults.
func NewGoogleSimplePublisherDefaults(topicID string) GoogleSimplePublisherConfig {
	return GoogleSimplePublisherConfig{
		TopicID:       topicID,
		ResultTimeout: 30 * time.Second,
	}
}

// GoogleSimplePublisher implements a direct-to-Pub/Sub publisher.
type GoogleSimplePublisher struct {
	topic         *pubsub.Topic
	resultTimeout time.Duration
	logger        zerolog.Logger
}

// NewGoogleSimplePublisher creates a new simple, non-batching publisher.
// It verifies that the target topic exists before returning.
func NewGoogleSimplePublisher(ctx context.Context, cfg GoogleSimplePublisherConfig, client *pubsub.Client, logger zerolog.Logger) (*GoogleSimplePublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	topic := client.Topic(cfg.TopicID)

	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 30 * time.Second
	}
	return &GoogleSimplePublisher{
		topic:         topic,
		resultTimeout: cfg.ResultTimeout,
		logger:        logger.With().Str("component", "GoogleSimplePublisher").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

// Publish queues a single message and returns immediately. The publish result
// is logged asynchronously.
func (p *GoogleSimplePublisher) Publish(ctx context.Context, payload []byte, attributes map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})

	go func() {
		// The caller's context may be short-lived, so Get gets its own.
		getCtx, cancel := context.WithTimeout(context.Background(), p.resultTimeout)
		defer cancel()

		msgID, err := result.Get(getCtx)
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to publish dead letter")
			return
		}
		p.logger.Debug().Str("published_msg_id", msgID).Msg("Dead letter published.")
	}()

	return nil
}

// Stop flushes any pending messages for the topic, respecting the context's timeout.
func (p *GoogleSimplePublisher) Stop(ctx context.Context) error {
	if p.topic == nil {
		return nil
	}

	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
