package transport

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/headercodec"
)

// Config holds configuration for a Transport.
type Config struct {
	// Host and Port are where the inbound server listens. Port 0 picks a free port.
	Host string
	Port int
	// Scheme is the logical scheme of local endpoint URIs, malhttp or malhttps.
	// malhttps requires TLSCertFile and TLSKeyFile.
	Scheme string

	// NumWorkers sizes the pool that posts outbound messages. A worker is held
	// until the peer answers.
	NumWorkers int
	// DispatchWorkers sizes the separate pool that runs listeners, so replies
	// can always be produced while sends are in flight.
	DispatchWorkers int
	QueueSize       int

	// MaxConnections bounds concurrent outbound sends and pooled connections per host.
	MaxConnections int
	ConnectTimeout time.Duration
	// SocketTimeout bounds a whole outbound exchange, from dial to response body.
	SocketTimeout time.Duration
	// ReplyTimeout is how long an inbound exchange may wait for its reply before
	// it is answered with 504.
	ReplyTimeout time.Duration
	// MaxBodyBytes bounds inbound request bodies.
	MaxBodyBytes int64

	// TLSCertFile and TLSKeyFile hold the local key pair, TLSCAFile the trusted
	// roots. The key pair also serves as the client certificate.
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string

	// DestinationOverride, when set, is the physical URL every outbound message
	// is posted to, whatever its logical destination.
	DestinationOverride string

	// DeadLetterTopicID names the Pub/Sub topic for messages that could not be
	// transmitted. It is used only when a publisher is supplied.
	DeadLetterTopicID string
}

// NewConfigDefaults provides a config with sensible defaults, overridden by
// MALHTTP_* environment variables.
func NewConfigDefaults() Config {
	cfg := Config{
		Host:           "127.0.0.1",
		Port:           0,
		Scheme:         headercodec.SchemeMALHTTP,
		NumWorkers:      10,
		DispatchWorkers: 10,
		QueueSize:       100,
		MaxConnections:  100,
		ConnectTimeout:  10 * time.Second,
		SocketTimeout:   30 * time.Second,
		ReplyTimeout:    60 * time.Second,
		MaxBodyBytes:    32 << 20,
	}

	if v := os.Getenv("MALHTTP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("MALHTTP_PORT"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			cfg.Port = val
		}
	}
	if v := os.Getenv("MALHTTP_SCHEME"); v != "" {
		cfg.Scheme = v
	}
	if v := os.Getenv("MALHTTP_WORKERS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			cfg.NumWorkers = val
		}
	}
	if v := os.Getenv("MALHTTP_DISPATCH_WORKERS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			cfg.DispatchWorkers = val
		}
	}
	if v := os.Getenv("MALHTTP_QUEUE_SIZE"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			cfg.QueueSize = val
		}
	}
	if v := os.Getenv("MALHTTP_MAX_CONNS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			cfg.MaxConnections = val
		}
	}
	if v := os.Getenv("MALHTTP_CONNECT_TIMEOUT"); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			cfg.ConnectTimeout = val
		}
	}
	if v := os.Getenv("MALHTTP_SOCKET_TIMEOUT"); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			cfg.SocketTimeout = val
		}
	}
	if v := os.Getenv("MALHTTP_REPLY_TIMEOUT"); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			cfg.ReplyTimeout = val
		}
	}
	if v := os.Getenv("MALHTTP_MAX_BODY_BYTES"); v != "" {
		if val, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBodyBytes = val
		}
	}
	cfg.TLSCertFile = os.Getenv("MALHTTP_TLS_CERT_FILE")
	cfg.TLSKeyFile = os.Getenv("MALHTTP_TLS_KEY_FILE")
	cfg.TLSCAFile = os.Getenv("MALHTTP_TLS_CA_FILE")
	cfg.DestinationOverride = os.Getenv("MALHTTP_DESTINATION_OVERRIDE")
	cfg.DeadLetterTopicID = os.Getenv("MALHTTP_DEAD_LETTER_TOPIC")
	return cfg
}

func (c Config) listenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
