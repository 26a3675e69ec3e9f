package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/EgorLis/qimessaging/internal/wire"
)

// socket.io 0.9 packet types.
const (
	sioDisconnect = "0"
	sioConnect    = "1"
	sioHeartbeat  = "2"
	sioEvent      = "5"
	sioError      = "7"
	sioNoop       = "8"
)

// SocketIO is the socket.io 0.9 websocket transport served by the robot's
// qimessaging gateway.
type SocketIO struct {
	*client
}

// NewSocketIO returns a socket.io transport for cfg.
func NewSocketIO(cfg Config) *SocketIO {
	return &SocketIO{client: newClient(cfg, &socketIO{})}
}

type socketIO struct {
	mu        sync.Mutex
	heartbeat time.Duration
}

// handshake is the reply to GET /<resource>/1/.
type handshake struct {
	sid        string
	heartbeat  time.Duration
	close      time.Duration
	transports []string
}

func parseHandshake(body string) (handshake, error) {
	parts := strings.Split(strings.TrimSpace(body), ":")
	if len(parts) != 4 {
		return handshake{}, errors.Errorf("malformed socket.io handshake %q", body)
	}
	hs := handshake{sid: parts[0], transports: strings.Split(parts[3], ",")}
	if hs.sid == "" {
		return handshake{}, errors.Errorf("socket.io handshake without session id")
	}
	if parts[1] != "" {
		secs, err := strconv.Atoi(parts[1])
		if err != nil {
			return handshake{}, errors.Annotate(err, "heartbeat timeout")
		}
		hs.heartbeat = time.Duration(secs) * time.Second
	}
	if parts[2] != "" {
		secs, err := strconv.Atoi(parts[2])
		if err != nil {
			return handshake{}, errors.Annotate(err, "close timeout")
		}
		hs.close = time.Duration(secs) * time.Second
	}
	return hs, nil
}

func (hs handshake) supports(transport string) bool {
	for _, t := range hs.transports {
		if t == transport {
			return true
		}
	}
	return false
}

func (p *socketIO) name() string { return "socketio" }

func (p *socketIO) dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	resource := strings.Trim(cfg.Resource, "/")
	hsURL := fmt.Sprintf("http://%s/%s/1/?t=%d", cfg.Host, resource, time.Now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hsURL, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "socket.io handshake")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, errors.Annotate(err, "socket.io handshake")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("socket.io handshake: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	hs, err := parseHandshake(string(body))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !hs.supports("websocket") {
		return nil, errors.NotSupportedf("websocket transport (server offers %v)", hs.transports)
	}

	p.mu.Lock()
	p.heartbeat = hs.heartbeat + hs.close
	p.mu.Unlock()

	wsURL := fmt.Sprintf("ws://%s/%s/1/websocket/%s", cfg.Host, resource, hs.sid)
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return conn, nil
}

func (p *socketIO) connectOnDial() bool { return false }

func (p *socketIO) encode(msg wire.Message) (int, []byte, error) {
	data, err := wire.Encode(wire.JSON, msg)
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, append([]byte(sioEvent+":::"), data...), nil
}

func (p *socketIO) decode(_ int, data []byte) (inbound, error) {
	parts := strings.SplitN(string(data), ":", 4)
	if len(parts) < 3 {
		return inbound{}, errors.Errorf("malformed socket.io packet %q", data)
	}
	payload := ""
	if len(parts) == 4 {
		payload = parts[3]
	}
	switch parts[0] {
	case sioConnect:
		return inbound{connected: true}, nil
	case sioHeartbeat:
		return inbound{reply: []byte(sioHeartbeat + "::")}, nil
	case sioDisconnect:
		return inbound{closed: ReasonServerClose}, nil
	case sioEvent:
		msg, err := wire.Decode(wire.JSON, []byte(payload))
		if err != nil {
			return inbound{}, err
		}
		return inbound{msg: msg}, nil
	case sioError:
		// "reason+advice"; the server drops the connection afterwards.
		return inbound{}, errors.Errorf("socket.io error %q", payload)
	case sioNoop:
		return inbound{}, nil
	}
	return inbound{}, nil
}

func (p *socketIO) farewell() []byte { return []byte(sioDisconnect + "::") }

func (p *socketIO) pingInterval() time.Duration { return 0 }

func (p *socketIO) readTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeat
}
