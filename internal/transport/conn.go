package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/rs/zerolog"

	"github.com/EgorLis/qimessaging/internal/wire"
)

// inbound is what a protocol made of one websocket message.
type inbound struct {
	connected bool         // protocol-level connect acknowledged
	msg       wire.Message // decoded event, nil if none
	reply     []byte       // control frame to echo back
	closed    string       // server asked to close, with this reason
}

// protocol is the part that differs between socket.io and plain websocket.
type protocol interface {
	name() string
	dial(ctx context.Context, cfg Config) (*websocket.Conn, error)
	connectOnDial() bool
	encode(msg wire.Message) (messageType int, data []byte, err error)
	decode(messageType int, data []byte) (inbound, error)
	farewell() []byte
	pingInterval() time.Duration
	readTimeout() time.Duration
}

// client drives one protocol: dial, read loop, keep-alive, reconnect.
type client struct {
	cfg   Config
	proto protocol
	log   zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	ready    bool
	running  bool
	stopping bool // final event under way, run loop winding down
	reopen   bool
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	ev       Events

	wmu sync.Mutex // serialises writes to the websocket
}

func newClient(cfg Config, p protocol) *client {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &client{
		cfg:   cfg,
		proto: p,
		log:   cfg.Logger.With().Str("transport", p.name()).Logger(),
	}
}

func (c *client) Open(ctx context.Context, ev Events) error {
	if err := c.cfg.Validate(); err != nil {
		return errors.Trace(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ev = ev
	if c.running {
		if c.stopping || c.ctx.Err() != nil {
			// Closed or given up, but the run loop is still winding down.
			c.parent = ctx
			c.reopen = true
		}
		return nil
	}
	c.running = true
	c.parent = ctx
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run(c.ctx)
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.reopen = false
	c.cancel()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.closeConn(conn)
}

func (c *client) Send(msg wire.Message) error {
	c.mu.Lock()
	conn, ready := c.conn, c.ready
	c.mu.Unlock()
	if conn == nil || !ready {
		return ErrNotConnected
	}
	mt, data, err := c.proto.encode(msg)
	if err != nil {
		return errors.Trace(err)
	}
	return c.write(conn, mt, data)
}

func (c *client) events() Events {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ev
}

// ========================= run loop =========================

func (c *client) run(ctx context.Context) {
	for {
		c.connectLoop(ctx, c.events())

		c.mu.Lock()
		c.stopping = false
		if !c.reopen {
			c.running = false
			c.cancel()
			c.mu.Unlock()
			return
		}
		c.reopen = false
		c.ctx, c.cancel = context.WithCancel(c.parent)
		ctx = c.ctx
		c.mu.Unlock()
	}
}

// connectLoop dials, serves the connection and reconnects while allowed.
// Every way out of it ends with exactly one final event, delivered after
// the loop is marked as stopping so that handlers may Open again.
func (c *client) connectLoop(ctx context.Context, ev Events) {
	ev.connecting()
	conn, err := c.dial(ctx)
	for {
		var reason string
		if err != nil {
			reason = err.Error()
			if ctx.Err() != nil {
				reason = ReasonClientClose
			}
			c.log.Debug().Err(err).Msg("connect failed")
		} else {
			reason = c.serve(ctx, conn, ev)
		}
		if ctx.Err() != nil || !c.cfg.Reconnect {
			c.stop()
			ev.disconnect(reason)
			return
		}
		ev.disconnect(reason)
		if conn, err = c.redial(ctx, ev); err != nil {
			return
		}
	}
}

func (c *client) stop() {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
}

func (c *client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := c.proto.dial(ctx, c.cfg)
	if err != nil {
		return nil, errors.Annotatef(err, "dialing %s", c.cfg.Host)
	}
	conn.SetReadLimit(64 << 20)
	return conn, nil
}

// redial waits out the backoff and dials until it succeeds, the attempts
// run out or ctx is done.
func (c *client) redial(ctx context.Context, ev Events) (*websocket.Conn, error) {
	b := c.cfg.Backoff
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = retry.UnlimitedAttempts
	}

	ev.reconnecting(b.Delay(1), 1)
	select {
	case <-ctx.Done():
		c.stop()
		ev.disconnect(ReasonClientClose)
		return nil, ctx.Err()
	case <-c.cfg.Clock.After(b.Delay(1)):
	}

	var conn *websocket.Conn
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			ev.connecting()
			var err error
			conn, err = c.dial(ctx)
			return err
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			c.log.Debug().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			if attempts != retry.UnlimitedAttempts && attempt >= attempts {
				return
			}
			ev.reconnecting(b.Delay(attempt+1), attempt+1)
		},
		Attempts:    attempts,
		Delay:       b.Delay(2),
		MaxDelay:    b.Max,
		BackoffFunc: func(_ time.Duration, attempt int) time.Duration { return b.Delay(attempt + 1) },
		Clock:       c.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		c.stop()
		if ctx.Err() != nil {
			// Closed while reconnecting.
			ev.disconnect(ReasonClientClose)
		} else {
			ev.reconnectFailed(errors.Annotate(err, "reconnect"))
		}
		return nil, err
	}
	return conn, nil
}

// ========================= low-level =========================

// serve runs the read loop of one connection and returns the disconnect
// reason.
func (c *client) serve(ctx context.Context, conn *websocket.Conn, ev Events) string {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return ReasonClientClose
	}
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.ready = false
		c.mu.Unlock()
		_ = conn.Close()
	}()

	stopPing := c.keepalive(conn)
	defer stopPing()

	if c.proto.connectOnDial() {
		c.markReady()
		ev.connect()
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ReasonClientClose
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ReasonServerClose
			}
			return err.Error()
		}
		c.touch(conn)

		in, err := c.proto.decode(mt, data)
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping undecodable message")
			ev.error(errors.Annotate(err, "decoding message"))
			continue
		}
		if in.reply != nil {
			if err := c.write(conn, websocket.TextMessage, in.reply); err != nil {
				ev.error(err)
			}
		}
		if in.connected && !c.isReady() {
			c.markReady()
			ev.connect()
		}
		if in.msg != nil {
			ev.message(in.msg)
		}
		if in.closed != "" {
			return in.closed
		}
	}
}

func (c *client) markReady() {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

func (c *client) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *client) write(conn *websocket.Conn, messageType int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return errors.Trace(conn.WriteMessage(messageType, data))
}

func (c *client) closeConn(conn *websocket.Conn) error {
	c.wmu.Lock()
	if bye := c.proto.farewell(); bye != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, bye)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	c.wmu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Trace(err)
	}
	return nil
}

func (c *client) keepalive(conn *websocket.Conn) (stop func()) {
	if rt := c.proto.readTimeout(); rt > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(rt))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(rt))
		})
	}
	interval := c.proto.pingInterval()
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.wmu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				c.wmu.Unlock()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (c *client) touch(conn *websocket.Conn) {
	if rt := c.proto.readTimeout(); rt > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(rt))
	}
}
