package messagepipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
)

// receiveSingleMessage is a test helper to wait for one message from a subscription.
func receiveSingleMessage(t *testing.T, ctx context.Context, sub *pubsub.Subscription, timeout time.Duration) *pubsub.Message {
	t.Helper()
	var receivedMsg *pubsub.Message
	var mu sync.RWMutex

	receiveCtx, receiveCancel := context.WithTimeout(ctx, timeout)
	defer receiveCancel()

	err := sub.Receive(receiveCtx, func(ctx context.Context, msg *pubsub.Message) {
		mu.Lock()
		defer mu.Unlock()
		if receivedMsg == nil {
			receivedMsg = msg
			msg.Ack()
			receiveCancel() // Stop receiving after getting the first message.
		} else {
			// This can happen in tests if more than one message arrives.
			// Nack subsequent messages to avoid them being redelivered.
			msg.Nack()
		}
	})

	// context.Canceled is the expected error when receiveCancel() is called.
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Logf("Receive loop ended with an unexpected error: %v", err)
	}

	mu.RLock()
	defer mu.RUnlock()
	return receivedMsg
}
