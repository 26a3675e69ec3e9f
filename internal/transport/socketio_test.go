package transport

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"

	"github.com/EgorLis/qimessaging/internal/wire"
)

func TestParseHandshake(t *testing.T) {
	c := qt.New(t)

	hs, err := parseHandshake("abc:25:60:websocket,xhr-polling\n")
	c.Assert(err, qt.IsNil)
	c.Assert(hs.sid, qt.Equals, "abc")
	c.Assert(hs.heartbeat, qt.Equals, 25*time.Second)
	c.Assert(hs.close, qt.Equals, 60*time.Second)
	c.Assert(hs.supports("websocket"), qt.IsTrue)
	c.Assert(hs.supports("flashsocket"), qt.IsFalse)

	_, err = parseHandshake("abc:25")
	c.Assert(err, qt.ErrorMatches, `malformed socket.io handshake "abc:25"`)
	_, err = parseHandshake(":25:60:websocket")
	c.Assert(err, qt.ErrorMatches, "socket.io handshake without session id")
}

func TestSocketIODecodePackets(t *testing.T) {
	c := qt.New(t)
	p := &socketIO{}

	in, err := p.decode(websocket.TextMessage, []byte("1::"))
	c.Assert(err, qt.IsNil)
	c.Assert(in.connected, qt.IsTrue)

	in, err = p.decode(websocket.TextMessage, []byte("2::"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(in.reply), qt.Equals, "2::")

	in, err = p.decode(websocket.TextMessage, []byte("0::"))
	c.Assert(err, qt.IsNil)
	c.Assert(in.closed, qt.Equals, ReasonServerClose)

	in, err = p.decode(websocket.TextMessage, []byte(`5:::{"name":"reply","args":[{"idm":2,"result":"a:b"}]}`))
	c.Assert(err, qt.IsNil)
	c.Assert(in.msg, qt.DeepEquals, &wire.Reply{ID: 2, Result: "a:b"})

	_, err = p.decode(websocket.TextMessage, []byte("7:::handshake unauthorized"))
	c.Assert(err, qt.ErrorMatches, `socket.io error "handshake unauthorized"`)

	_, err = p.decode(websocket.TextMessage, []byte("garbage"))
	c.Assert(err, qt.ErrorMatches, `malformed socket.io packet "garbage"`)
}

func TestSocketIOCallRoundTrip(t *testing.T) {
	c := qt.New(t)
	srv := newSocketIOServer(c)
	rec := newRecorder()

	tr := NewSocketIO(testConfig(srv.host()))
	c.Assert(tr.Open(context.Background(), rec.events()), qt.IsNil)
	defer tr.Close()

	rec.expect(c, "connecting")
	conn := srv.accept(c)

	// Not usable until the server acknowledges the connection.
	c.Assert(tr.Send(&wire.Call{ID: 1}), qt.ErrorIs, ErrNotConnected)

	c.Assert(conn.WriteMessage(websocket.TextMessage, []byte("1::")), qt.IsNil)
	rec.expect(c, "connect")

	call := &wire.Call{ID: 1, Object: "ServiceDirectory", Member: "service", Args: []any{"ALMemory"}}
	c.Assert(tr.Send(call), qt.IsNil)

	_, data, err := conn.ReadMessage()
	c.Assert(err, qt.IsNil)
	c.Assert(string(data[:4]), qt.Equals, "5:::")
	got, err := wire.Decode(wire.JSON, data[4:])
	c.Assert(err, qt.IsNil)
	c.Assert(got.(*wire.Call).Member, qt.Equals, "service")
	c.Assert(got.(*wire.Call).Args, qt.DeepEquals, []any{"ALMemory"})

	err = conn.WriteMessage(websocket.TextMessage, []byte(`5:::{"name":"reply","args":[{"idm":1,"result":"ok"}]}`))
	c.Assert(err, qt.IsNil)
	c.Assert(rec.message(c), qt.DeepEquals, &wire.Reply{ID: 1, Result: "ok"})
}

func TestSocketIOAnswersHeartbeat(t *testing.T) {
	c := qt.New(t)
	srv := newSocketIOServer(c)
	rec := newRecorder()

	tr := NewSocketIO(testConfig(srv.host()))
	c.Assert(tr.Open(context.Background(), rec.events()), qt.IsNil)
	defer tr.Close()

	conn := srv.accept(c)
	c.Assert(conn.WriteMessage(websocket.TextMessage, []byte("2::")), qt.IsNil)
	_, data, err := conn.ReadMessage()
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "2::")
}

func TestSocketIOServerDisconnect(t *testing.T) {
	c := qt.New(t)
	srv := newSocketIOServer(c)
	rec := newRecorder()

	tr := NewSocketIO(testConfig(srv.host()))
	c.Assert(tr.Open(context.Background(), rec.events()), qt.IsNil)
	defer tr.Close()

	rec.expect(c, "connecting")
	conn := srv.accept(c)
	c.Assert(conn.WriteMessage(websocket.TextMessage, []byte("1::")), qt.IsNil)
	rec.expect(c, "connect")
	c.Assert(conn.WriteMessage(websocket.TextMessage, []byte("0::")), qt.IsNil)
	rec.expect(c, "disconnect: "+ReasonServerClose)

	c.Assert(tr.Send(&wire.Call{ID: 2}), qt.ErrorIs, ErrNotConnected)
}

func TestSocketIOCloseSendsFarewell(t *testing.T) {
	c := qt.New(t)
	srv := newSocketIOServer(c)
	rec := newRecorder()

	tr := NewSocketIO(testConfig(srv.host()))
	c.Assert(tr.Open(context.Background(), rec.events()), qt.IsNil)

	rec.expect(c, "connecting")
	conn := srv.accept(c)
	c.Assert(conn.WriteMessage(websocket.TextMessage, []byte("1::")), qt.IsNil)
	rec.expect(c, "connect")

	c.Assert(tr.Close(), qt.IsNil)
	_, data, err := conn.ReadMessage()
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "0::")
	rec.expect(c, "disconnect: "+ReasonClientClose)

	// Closing again is harmless.
	c.Assert(tr.Close(), qt.IsNil)
}

func TestSocketIOHandshakeRefused(t *testing.T) {
	c := qt.New(t)
	srv := newSocketIOServer(c)
	host := srv.host()
	srv.Close()
	rec := newRecorder()

	tr := NewSocketIO(testConfig(host))
	c.Assert(tr.Open(context.Background(), rec.events()), qt.IsNil)
	defer tr.Close()

	rec.expect(c, "connecting")
	rec.expect(c, "disconnect: dialing "+host)
}
