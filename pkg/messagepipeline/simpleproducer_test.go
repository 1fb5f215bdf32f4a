package messagepipeline_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// newTestPubsubClient starts an in-process Pub/Sub server and returns a client for it.
func newTestPubsubClient(t *testing.T, ctx context.Context) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGoogleSimplePublisher_PublishAndStop(t *testing.T) {
	// --- Arrange ---
	testCtx, testCancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(testCancel)

	client := newTestPubsubClient(t, testCtx)
	topic, err := client.CreateTopic(testCtx, "dead-letters")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(testCtx, "dead-letters-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	publisher, err := messagepipeline.NewGoogleSimplePublisher(testCtx, messagepipeline.NewGoogleSimplePublisherDefaults("dead-letters"), client, zerolog.Nop())
	require.NoError(t, err)

	// --- Act ---
	payload := []byte("undeliverable body")
	attrs := map[string]string{"x-mal-transaction-id": "17"}
	require.NoError(t, publisher.Publish(testCtx, payload, attrs))

	// --- Assert ---
	received := receiveSingleMessage(t, testCtx, sub, 5*time.Second)
	require.NotNil(t, received, "did not receive message in time")
	assert.Equal(t, payload, received.Data)
	assert.Equal(t, "17", received.Attributes["x-mal-transaction-id"])

	stopCtx, stopCancel := context.WithTimeout(testCtx, 2*time.Second)
	t.Cleanup(stopCancel)
	require.NoError(t, publisher.Stop(stopCtx))
}

func TestNewGoogleSimplePublisher_TopicDoesNotExist(t *testing.T) {
	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(testCancel)

	client := newTestPubsubClient(t, testCtx)

	publisher, err := messagepipeline.NewGoogleSimplePublisher(testCtx, messagepipeline.NewGoogleSimplePublisherDefaults("non-existent-topic"), client, zerolog.Nop())

	require.Error(t, err)
	assert.Nil(t, publisher)
	assert.Contains(t, err.Error(), "pubsub topic non-existent-topic does not exist")
}

func TestNewGoogleSimplePublisher_NilClient(t *testing.T) {
	_, err := messagepipeline.NewGoogleSimplePublisher(context.Background(), messagepipeline.NewGoogleSimplePublisherDefaults("t"), nil, zerolog.Nop())
	require.Error(t, err)
}
