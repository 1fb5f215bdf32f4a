package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// Dead-letter attributes added next to the encoded message header.
const (
	AttrInstanceID  = "malhttp-instance-id"
	AttrError       = "malhttp-error"
	AttrErrorNumber = "malhttp-error-number"
)

// newDeadLetterPublisher picks the dead-letter sink: the configured publisher,
// a Pub/Sub publisher for Config.DeadLetterTopicID, or none.
func newDeadLetterPublisher(ctx context.Context, cfg Config, opts Options, logger zerolog.Logger) (messagepipeline.SimplePublisher, error) {
	if opts.DeadLetters != nil {
		return opts.DeadLetters, nil
	}
	if cfg.DeadLetterTopicID == "" {
		return nil, nil
	}
	if opts.PubsubClient == nil {
		return nil, errors.New("dead-letter topic is set but no pubsub client was given")
	}
	publisher, err := messagepipeline.NewGoogleSimplePublisher(ctx,
		messagepipeline.NewGoogleSimplePublisherDefaults(cfg.DeadLetterTopicID), opts.PubsubClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dead-letter publisher: %w", err)
	}
	return publisher, nil
}

// publishDeadLetter hands a message that could not be transmitted to the
// dead-letter publisher, if one is configured. The header travels as
// attributes in its wire form, so the message can be replayed.
func (t *Transport) publishDeadLetter(ctx context.Context, msg *mal.Message, terr *TransmitError) {
	if t.deadLetters == nil {
		return
	}

	attrs := map[string]string{
		AttrInstanceID:  t.id,
		AttrError:       terr.Err.Error(),
		AttrErrorNumber: strconv.FormatUint(uint64(terr.Number), 10),
	}
	if msg.Header != nil {
		if wire, err := t.codec.EncodeResponse(msg.Header); err == nil {
			for k, v := range wire {
				attrs[k] = v
			}
		}
	}

	if err := t.deadLetters.Publish(context.WithoutCancel(ctx), msg.Body, attrs); err != nil {
		t.logger.Error().Err(err).Msg("Failed to publish dead letter.")
	}
}
