// Package rpclient is a client for the qimessaging reflection RPC spoken by
// NAOqi robots. Remote objects are discovered at runtime: the robot sends a
// descriptor listing methods, signals and properties, and the session turns
// it into a RemoteObject whose members are looked up by name.
//
// What the session does:
//   - Multiplexes calls over one connection. Every call carries an id; the
//     reply or error with the same id settles the call's Future, in any
//     order.
//   - Builds RemoteObject proxies from descriptors found in replies,
//     including descriptors nested in lists or maps.
//   - Keeps signal subscriptions keyed by (object, signal, link) and routes
//     push notifications to their callbacks.
//   - Follows the transport lifecycle. On disconnect every pending call
//     fails with ErrDisconnected and every subscription is dropped; nothing
//     is retried or resubscribed after a reconnect.
//   - Queues calls made while connecting or reconnecting and sends them,
//     in order, on the connect event. They fail with ErrDisconnected if
//     the attempt ends in a disconnect instead.
//
// Handlers (the On* fields of Options), signal callbacks and future
// continuations run on the transport goroutine. They may issue calls but
// must not wait for their results.
//
// Example:
//
//	s, err := rpclient.Dial(rpclient.Options{Host: "192.168.1.12", Reconnect: true})
//	if err != nil { log.Fatal(err) }
//	defer s.Disconnect()
//
//	ctx := context.Background()
//	tts, err := s.ServiceObject(ctx, "ALTextToSpeech")
//	if err != nil { log.Fatal(err) }
//	_, err = tts.Call("say", "Hello").Wait(ctx)
//
//	// Observe a signal:
//	sig, _ := tts.Signal("textDone")
//	link, err := sig.Connect(func(args ...any) { fmt.Println(args) }).Wait(ctx)
package rpclient
