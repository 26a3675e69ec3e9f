// Package transport connects to a robot and moves wire messages.
//
// Two transports are provided:
//
//   - SocketIO speaks socket.io 0.9 over a websocket, the protocol of the
//     qimessaging gateway (http://<host>/libs/qimessaging/2/socket.io).
//     The client performs the HTTP handshake, opens the websocket,
//     answers heartbeats and reports connect on the server's "1::" packet.
//   - WebSocket sends one envelope per websocket message with a wire.Codec
//     (JSON, CBOR or protobuf Struct) and keeps the link alive with pings.
//
// Both serialise writes behind one mutex with a write deadline, deliver
// all Events from a single read goroutine, and, when Config.Reconnect is
// set, redial with a doubling backoff after the connection drops.
//
// Example:
//
//	cfg := transport.DefaultConfig()
//	cfg.Host = "192.168.10.3"
//	t := transport.NewSocketIO(cfg)
//	_ = t.Open(ctx, transport.Events{
//		OnConnect: func() { log.Println("connected") },
//		OnMessage: func(m wire.Message) { log.Println(m.Kind()) },
//	})
//	defer t.Close()
package transport
