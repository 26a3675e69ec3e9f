package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/EgorLis/qimessaging/internal/wire"
)

// WebSocket carries one event envelope per websocket message, encoded
// with a wire codec. JSON goes in text messages, the binary codecs in
// binary ones.
type WebSocket struct {
	*client
}

// NewWebSocket returns a plain websocket transport for cfg using codec.
func NewWebSocket(cfg Config, codec wire.Codec) *WebSocket {
	if codec == nil {
		codec = wire.JSON
	}
	return &WebSocket{client: newClient(cfg, &plainWS{codec: codec})}
}

type plainWS struct {
	codec wire.Codec
}

// endpointURL builds the websocket URL; a host that already carries a
// scheme is used as is.
func endpointURL(host, resource string) string {
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	return fmt.Sprintf("ws://%s/%s", host, strings.Trim(resource, "/"))
}

func (p *plainWS) name() string { return "websocket+" + p.codec.Name() }

func (p *plainWS) dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, endpointURL(cfg.Host, cfg.Resource), nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return conn, nil
}

func (p *plainWS) connectOnDial() bool { return true }

func (p *plainWS) encode(msg wire.Message) (int, []byte, error) {
	data, err := wire.Encode(p.codec, msg)
	if err != nil {
		return 0, nil, err
	}
	if p.codec.Name() == wire.JSON.Name() {
		return websocket.TextMessage, data, nil
	}
	return websocket.BinaryMessage, data, nil
}

func (p *plainWS) decode(_ int, data []byte) (inbound, error) {
	msg, err := wire.Decode(p.codec, data)
	if err != nil {
		return inbound{}, err
	}
	return inbound{msg: msg}, nil
}

func (p *plainWS) farewell() []byte { return nil }

func (p *plainWS) pingInterval() time.Duration { return 10 * time.Second }

func (p *plainWS) readTimeout() time.Duration { return 30 * time.Second }
