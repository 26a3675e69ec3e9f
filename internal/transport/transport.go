package transport

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/EgorLis/qimessaging/internal/wire"
)

// ErrNotConnected is returned by Send while no connection is up.
const ErrNotConnected = errors.ConstError("transport not connected")

// Disconnect reasons, named after the socket.io client ones.
const (
	ReasonClientClose = "forced close"
	ReasonServerClose = "booted"
)

// Transport is a duplex event connection to one robot.
type Transport interface {
	// Open starts connecting in the background. Lifecycle and messages are
	// reported through ev until ctx is done or Close is called. Opening a
	// transport that is already running is a no-op, unless it has already
	// delivered its final event; then it starts over once that run ends.
	Open(ctx context.Context, ev Events) error
	// Send writes one message. It fails with ErrNotConnected until the
	// connect event has been delivered.
	Send(msg wire.Message) error
	// Close tears the connection down and stops reconnecting.
	Close() error
}

// Events receives transport notifications. All callbacks of one transport
// run on a single goroutine, one at a time; they must not block on replies
// that the same goroutine would have to read. A run of the transport always
// ends with exactly one final OnDisconnect or OnReconnectFailed.
type Events struct {
	OnConnecting      func()
	OnConnect         func()
	OnDisconnect      func(reason string)
	OnReconnecting    func(delay time.Duration, attempt int)
	OnReconnectFailed func(err error)
	OnMessage         func(msg wire.Message)
	OnError           func(err error)
}

func (ev Events) connecting() {
	if ev.OnConnecting != nil {
		ev.OnConnecting()
	}
}

func (ev Events) connect() {
	if ev.OnConnect != nil {
		ev.OnConnect()
	}
}

func (ev Events) disconnect(reason string) {
	if ev.OnDisconnect != nil {
		ev.OnDisconnect(reason)
	}
}

func (ev Events) reconnecting(delay time.Duration, attempt int) {
	if ev.OnReconnecting != nil {
		ev.OnReconnecting(delay, attempt)
	}
}

func (ev Events) reconnectFailed(err error) {
	if ev.OnReconnectFailed != nil {
		ev.OnReconnectFailed(err)
	}
}

func (ev Events) message(msg wire.Message) {
	if ev.OnMessage != nil {
		ev.OnMessage(msg)
	}
}

func (ev Events) error(err error) {
	if ev.OnError != nil {
		ev.OnError(err)
	}
}

// Config holds the connection parameters shared by both transports.
type Config struct {
	// Host is "address[:port]", or a full ws:// or wss:// URL for the
	// plain websocket transport.
	Host string
	// Resource is the URL path of the endpoint, without leading slash.
	Resource string
	// Reconnect enables automatic reconnection after a dropped connection.
	Reconnect      bool
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Backoff        BackoffConfig
	Clock          clock.Clock
	Logger         zerolog.Logger
}

// DefaultConfig returns the parameters of the robot's socket.io gateway.
func DefaultConfig() Config {
	return Config{
		Resource:       "libs/qimessaging/2/socket.io",
		Reconnect:      true,
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
		Backoff: BackoffConfig{
			Initial: 500 * time.Millisecond,
			Max:     30 * time.Second,
		},
		Clock:  clock.WallClock,
		Logger: zerolog.Nop(),
	}
}

// Validate checks the fields a dial cannot do without.
func (cfg Config) Validate() error {
	if cfg.Host == "" {
		return errors.NotValidf("empty host")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil clock")
	}
	if cfg.Reconnect && cfg.Backoff.Initial <= 0 {
		return errors.NotValidf("backoff initial delay %v", cfg.Backoff.Initial)
	}
	return nil
}
