package transport_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
	"github.com/illmade-knight/go-malhttp/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// jsonCodec is a BodyCodec that encodes the element list as a JSON array.
type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }
func (jsonCodec) Encoding() string    { return "" }

func (jsonCodec) Encode(elements []any) ([]byte, error) {
	return json.Marshal(elements)
}

func (jsonCodec) Decode(data []byte, tags []mal.TypeTag) ([]any, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(tags))
	for i, tag := range tags {
		if i >= len(raw) {
			break
		}
		switch tag {
		case mal.TagUInteger:
			var v uint32
			if err := json.Unmarshal(raw[i], &v); err != nil {
				return nil, err
			}
			out = append(out, v)
		case mal.TagString:
			var v string
			if err := json.Unmarshal(raw[i], &v); err != nil {
				return nil, err
			}
			out = append(out, v)
		default:
			return nil, fmt.Errorf("unsupported tag %d", tag)
		}
	}
	return out, nil
}

// recordingListener collects delivered messages and optionally reacts to them.
type recordingListener struct {
	mu       sync.Mutex
	messages []*mal.Message
	received chan *mal.Message
	onMsg    func(ctx context.Context, msg *mal.Message)
}

func newRecordingListener(onMsg func(ctx context.Context, msg *mal.Message)) *recordingListener {
	return &recordingListener{received: make(chan *mal.Message, 16), onMsg: onMsg}
}

func (l *recordingListener) OnMessage(ctx context.Context, msg *mal.Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
	if l.onMsg != nil {
		l.onMsg(ctx, msg)
	}
	l.received <- msg
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *recordingListener) next(t *testing.T) *mal.Message {
	t.Helper()
	select {
	case msg := <-l.received:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered in time")
		return nil
	}
}

// recordingPublisher is a SimplePublisher that keeps what it is given.
type recordingPublisher struct {
	mu      sync.Mutex
	bodies  [][]byte
	attrs   []map[string]string
	stopped bool
}

func (p *recordingPublisher) Publish(_ context.Context, payload []byte, attributes map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bodies = append(p.bodies, payload)
	p.attrs = append(p.attrs, attributes)
	return nil
}

func (p *recordingPublisher) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

func (p *recordingPublisher) published() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.attrs...)
}

func testConfig() transport.Config {
	cfg := transport.NewConfigDefaults()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.NumWorkers = 4
	cfg.ConnectTimeout = 2 * time.Second
	cfg.SocketTimeout = 5 * time.Second
	cfg.ReplyTimeout = 5 * time.Second
	cfg.DestinationOverride = ""
	return cfg
}

func newTestTransport(t *testing.T, cfg transport.Config, opts transport.Options) *transport.Transport {
	t.Helper()
	if opts.BodyCodec == nil {
		opts.BodyCodec = jsonCodec{}
	}
	tr, err := transport.New(context.Background(), cfg, opts, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tr.Close(ctx)
	})
	return tr
}

func newHeader(from, to string, it mal.InteractionType, stage uint8, txn int64) *mal.MessageHeader {
	return &mal.MessageHeader{
		URIFrom:          from,
		URITo:            to,
		Timestamp:        mal.Time(time.Now().UnixMilli()),
		QoSLevel:         mal.QoSBestEffort,
		Priority:         1,
		Domain:           []string{"esa", "test"},
		NetworkZone:      "ground",
		Session:          mal.SessionLive,
		SessionName:      "LIVE",
		InteractionType:  it,
		InteractionStage: stage,
		TransactionID:    txn,
		ServiceArea:      1,
		Service:          2,
		Operation:        3,
		AreaVersion:      1,
	}
}

func decodeError(t *testing.T, msg *mal.Message) mal.ErrorNumber {
	t.Helper()
	number, _, err := mal.DecodeStandardError(jsonCodec{}, msg.Body)
	require.NoError(t, err)
	return number
}
