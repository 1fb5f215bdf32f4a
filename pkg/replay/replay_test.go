package replay_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/messagepipeline"
	"github.com/illmade-knight/go-malhttp/pkg/replay"
	"github.com/illmade-knight/go-malhttp/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonCodec struct{}

func (jsonCodec) ContentType() string                   { return "application/json" }
func (jsonCodec) Encoding() string                      { return "" }
func (jsonCodec) Encode(elements []any) ([]byte, error) { return json.Marshal(elements) }
func (jsonCodec) Decode(data []byte, tags []mal.TypeTag) ([]any, error) {
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fakeConsumer feeds messages pushed by the test.
type fakeConsumer struct {
	msgs chan messagepipeline.Message
	done chan struct{}
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{msgs: make(chan messagepipeline.Message, 10), done: make(chan struct{})}
}

func (c *fakeConsumer) Messages() <-chan messagepipeline.Message { return c.msgs }
func (c *fakeConsumer) Start(context.Context) error             { return nil }
func (c *fakeConsumer) Stop(context.Context) error {
	select {
	case <-c.done:
	default:
		close(c.done)
		close(c.msgs)
	}
	return nil
}
func (c *fakeConsumer) Done() <-chan struct{} { return c.done }

type settled struct {
	acked  atomic.Bool
	nacked atomic.Bool
}

func (s *settled) message(id string, payload []byte, attrs map[string]string, published time.Time) messagepipeline.Message {
	return messagepipeline.Message{
		ID:          id,
		Payload:     payload,
		Attributes:  attrs,
		PublishTime: published,
		Ack:         func() { s.acked.Store(true) },
		Nack:        func() { s.nacked.Store(true) },
	}
}

type fixture struct {
	consumer  *fakeConsumer
	origin    *transport.Endpoint
	target    *transport.Endpoint
	delivered chan *mal.Message
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := transport.NewConfigDefaults()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.DestinationOverride = ""

	newTransport := func() *transport.Transport {
		tr, err := transport.New(context.Background(), cfg, transport.Options{BodyCodec: jsonCodec{}}, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tr.Close(ctx)
		})
		return tr
	}

	f := &fixture{consumer: newFakeConsumer(), delivered: make(chan *mal.Message, 10)}
	originTransport := newTransport()
	targetTransport := newTransport()

	var err error
	f.origin, err = originTransport.CreateEndpoint("origin", mal.ListenerFunc(func(context.Context, *mal.Message) {}))
	require.NoError(t, err)
	f.target, err = targetTransport.CreateEndpoint("target", mal.ListenerFunc(func(_ context.Context, msg *mal.Message) {
		f.delivered <- msg
	}))
	require.NoError(t, err)

	r, err := replay.New(replay.NewConfigDefaults(), f.consumer, originTransport, zerolog.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, r.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = r.Stop(stopCtx)
	})
	return f
}

// deadLetterAttrs encodes h the way the transport does for a dead letter.
func deadLetterAttrs(t *testing.T, h *mal.MessageHeader) map[string]string {
	t.Helper()
	wire, err := headercodec.Codec{}.EncodeResponse(h)
	require.NoError(t, err)
	attrs := map[string]string{transport.AttrError: "connection refused"}
	for k, v := range wire {
		attrs[k] = v
	}
	return attrs
}

func header(from, to string, it mal.InteractionType, stage uint8) *mal.MessageHeader {
	return &mal.MessageHeader{
		URIFrom:          from,
		URITo:            to,
		QoSLevel:         mal.QoSAssured,
		Priority:         1,
		NetworkZone:      "ground",
		Session:          mal.SessionLive,
		SessionName:      "LIVE",
		InteractionType:  it,
		InteractionStage: stage,
		TransactionID:    99,
		ServiceArea:      1,
		Service:          1,
		Operation:        1,
		AreaVersion:      1,
	}
}

func TestReplayer_ResendsFromOrigin(t *testing.T) {
	// Arrange
	f := newFixture(t)
	var s settled
	h := header(f.origin.URI(), f.target.URI(), mal.InteractionSend, mal.SendStage)

	// Act
	f.consumer.msgs <- s.message("dl-1", []byte(`["again"]`), deadLetterAttrs(t, h), time.Now())

	// Assert
	select {
	case msg := <-f.delivered:
		assert.Equal(t, int64(99), msg.Header.TransactionID)
		assert.Equal(t, f.origin.URI(), msg.Header.URIFrom)
		assert.Equal(t, []byte(`["again"]`), msg.Body)
	case <-time.After(5 * time.Second):
		t.Fatal("dead letter was not resent")
	}
	require.Eventually(t, s.acked.Load, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.nacked.Load())
}

func TestReplayer_DropsWhatCannotBeResent(t *testing.T) {
	testCases := []struct {
		name      string
		attrs     func(f *fixture) map[string]string
		published time.Time
	}{
		{
			name: "reply stage",
			attrs: func(f *fixture) map[string]string {
				return deadLetterAttrs(t, header(f.origin.URI(), f.target.URI(), mal.InteractionSubmit, mal.SubmitAckStage))
			},
			published: time.Now(),
		},
		{
			name: "too old",
			attrs: func(f *fixture) map[string]string {
				return deadLetterAttrs(t, header(f.origin.URI(), f.target.URI(), mal.InteractionSend, mal.SendStage))
			},
			published: time.Now().Add(-48 * time.Hour),
		},
		{
			name: "no header",
			attrs: func(f *fixture) map[string]string {
				return map[string]string{transport.AttrError: "boom"}
			},
			published: time.Now(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			var s settled

			f.consumer.msgs <- s.message("dl", []byte(`[]`), tc.attrs(f), tc.published)

			require.Eventually(t, s.acked.Load, 2*time.Second, 10*time.Millisecond)
			assert.False(t, s.nacked.Load())
			assert.Empty(t, f.delivered)
		})
	}
}

func TestReplayer_NacksUnknownOrigin(t *testing.T) {
	f := newFixture(t)
	var s settled
	h := header("malhttp://elsewhere:1/origin", f.target.URI(), mal.InteractionSend, mal.SendStage)

	f.consumer.msgs <- s.message("dl-3", []byte(`[]`), deadLetterAttrs(t, h), time.Now())

	require.Eventually(t, s.nacked.Load, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.acked.Load())
}

func TestNew_RequiresResolver(t *testing.T) {
	_, err := replay.New(replay.NewConfigDefaults(), newFakeConsumer(), nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = replay.New(replay.NewConfigDefaults(), nil, &transport.Transport{}, zerolog.Nop())
	assert.Error(t, err, "a consumer is required")
}
