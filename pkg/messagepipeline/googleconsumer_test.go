package messagepipeline_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConsumerTest(t *testing.T, ctx context.Context, topicID, subID string) (*pubsub.Client, *pubsub.Topic) {
	t.Helper()
	client := newTestPubsubClient(t, ctx)
	topic, err := client.CreateTopic(ctx, topicID)
	require.NoError(t, err)
	_, err = client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)
	return client, topic
}

func TestGooglePubsubConsumer_ReceiveMessage(t *testing.T) {
	// --- Arrange ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	client, topic := setupConsumerTest(t, ctx, "dead-letters", "dead-letters-replay")
	t.Cleanup(topic.Stop)

	consumer, err := messagepipeline.NewGooglePubsubConsumer(ctx, messagepipeline.NewGooglePubsubConsumerDefaults("dead-letters-replay"), client, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, consumer.Start(ctx))
	t.Cleanup(func() { _ = consumer.Stop(context.Background()) })

	// --- Act ---
	payload := []byte("hello consumer")
	res := topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"x-mal-transaction-id": "5"},
	})
	_, err = res.Get(ctx)
	require.NoError(t, err)

	// --- Assert ---
	select {
	case msg := <-consumer.Messages():
		assert.Equal(t, payload, msg.Payload)
		assert.Equal(t, "5", msg.Attributes["x-mal-transaction-id"])
		assert.False(t, msg.PublishTime.IsZero())
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message from consumer")
	}
}

func TestGooglePubsubConsumer_Stop(t *testing.T) {
	// --- Arrange ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	client, _ := setupConsumerTest(t, ctx, "stop-topic", "stop-sub")
	consumer, err := messagepipeline.NewGooglePubsubConsumer(ctx, messagepipeline.NewGooglePubsubConsumerDefaults("stop-sub"), client, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, consumer.Start(ctx))

	// --- Act ---
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, consumer.Stop(stopCtx))

	// --- Assert ---
	select {
	case <-consumer.Done():
	case <-time.After(time.Second):
		t.Fatal("consumer.Done() channel was not closed after stop")
	}
	_, ok := <-consumer.Messages()
	assert.False(t, ok, "consumer.Messages() channel should be closed")
}

func TestNewGooglePubsubConsumer_SubscriptionDoesNotExist(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	client := newTestPubsubClient(t, ctx)

	consumer, err := messagepipeline.NewGooglePubsubConsumer(ctx, messagepipeline.NewGooglePubsubConsumerDefaults("missing"), client, zerolog.Nop())

	require.Error(t, err)
	assert.Nil(t, consumer)
}
