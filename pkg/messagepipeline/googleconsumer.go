package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// GooglePubsubConsumerConfig holds configuration for a GooglePubsubConsumer.
type GooglePubsubConsumerConfig struct {
	SubscriptionID         string
	MaxOutstandingMessages int
	NumGoroutines          int
}

// NewGooglePubsubConsumerDefaults provides a config with sensible defaults.
func NewGooglePubsubConsumerDefaults(subID string) GooglePubsubConsumerConfig {
	return GooglePubsubConsumerConfig{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          5,
	}
}

// GooglePubsubConsumer receives messages from a Pub/Sub subscription and hands
// them out on a channel.
type GooglePubsubConsumer struct {
	subscription       *pubsub.Subscription
	logger             zerolog.Logger
	outputChan         chan Message
	stopOnce           sync.Once
	cancelSubscription context.CancelFunc
	doneChan           chan struct{}
}

// NewGooglePubsubConsumer creates a consumer for an existing subscription.
func NewGooglePubsubConsumer(ctx context.Context, cfg GooglePubsubConsumerConfig, client *pubsub.Client, logger zerolog.Logger) (*GooglePubsubConsumer, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	sub := client.Subscription(cfg.SubscriptionID)

	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("subscription %s does not exist", cfg.SubscriptionID)
	}

	if cfg.MaxOutstandingMessages <= 0 {
		cfg.MaxOutstandingMessages = 100
	}
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	return &GooglePubsubConsumer{
		subscription: sub,
		logger:       logger.With().Str("component", "GooglePubsubConsumer").Str("subscription_id", cfg.SubscriptionID).Logger(),
		outputChan:   make(chan Message, cfg.MaxOutstandingMessages),
		doneChan:     make(chan struct{}),
	}, nil
}

// Messages returns the channel of received messages. It is closed once the
// consumer has stopped.
func (c *GooglePubsubConsumer) Messages() <-chan Message { return c.outputChan }

// Start begins receiving in the background.
func (c *GooglePubsubConsumer) Start(ctx context.Context) error {
	c.logger.Info().Msg("Starting Pub/Sub message consumption...")
	receiveCtx, cancel := context.WithCancel(ctx)
	c.cancelSubscription = cancel

	go func() {
		defer close(c.doneChan)
		defer close(c.outputChan)

		err := c.subscription.Receive(receiveCtx, func(ctx context.Context, msg *pubsub.Message) {
			payload := make([]byte, len(msg.Data))
			copy(payload, msg.Data)

			consumed := Message{
				ID:          msg.ID,
				Payload:     payload,
				Attributes:  msg.Attributes,
				PublishTime: msg.PublishTime,
				Ack:         msg.Ack,
				Nack:        msg.Nack,
			}

			select {
			case c.outputChan <- consumed:
			case <-receiveCtx.Done():
				msg.Nack()
				c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping, Nacking message.")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Msg("Pub/Sub Receive call exited with error")
		}
		c.logger.Info().Msg("Pub/Sub Receive goroutine stopped.")
	}()
	return nil
}

// Stop cancels the subscription and waits for the receive goroutine, bounded by ctx.
func (c *GooglePubsubConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping Pub/Sub consumer...")
		if c.cancelSubscription == nil {
			close(c.doneChan)
			close(c.outputChan)
			return
		}
		c.cancelSubscription()
		select {
		case <-c.doneChan:
		case <-ctx.Done():
			c.logger.Error().Msg("Timeout waiting for Pub/Sub Receive goroutine to stop.")
			err = ctx.Err()
		}
	})
	return err
}

// Done is closed when the consumer has completely shut down.
func (c *GooglePubsubConsumer) Done() <-chan struct{} { return c.doneChan }
