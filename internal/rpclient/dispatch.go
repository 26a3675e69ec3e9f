package rpclient

import (
	"time"

	"github.com/juju/errors"

	"github.com/EgorLis/qimessaging/internal/transport"
	"github.com/EgorLis/qimessaging/internal/wire"
)

// ========================= transport events =========================

func (s *Session) events() transport.Events {
	return transport.Events{
		OnConnecting:      s.handleConnecting,
		OnConnect:         s.handleConnect,
		OnDisconnect:      s.handleDisconnect,
		OnReconnecting:    s.handleReconnecting,
		OnReconnectFailed: s.handleReconnectFailed,
		OnMessage:         s.dispatch,
		OnError:           s.handleTransportError,
	}
}

func (s *Session) handleConnecting() {
	s.log.Debug().Msg("socket connecting")
	s.setState(Connecting)
}

func (s *Session) handleReconnecting(delay time.Duration, attempt int) {
	s.log.Debug().Dur("delay", delay).Int("attempt", attempt).Msg("socket reconnecting")
	s.setState(Reconnecting)
}

func (s *Session) handleConnect() {
	s.log.Debug().Msg("connect event fired")
	s.flush()
	if s.opts.OnConnect != nil {
		s.opts.OnConnect(s)
	}
}

// handleDisconnect flushes both registries before the handler runs, so the
// handler sees the session as it is after the disconnect.
func (s *Session) handleDisconnect(reason string) {
	s.log.Debug().Str("reason", reason).Msg("socket disconnect")
	s.setState(Disconnected)
	s.dropQueued(errors.Annotate(ErrDisconnected, reason))
	s.calls.rejectAll(errors.Annotate(ErrDisconnected, reason))
	s.signals.unregisterAll()
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect(reason)
	}
}

func (s *Session) handleReconnectFailed(err error) {
	s.log.Error().Err(err).Msg("reconnect failed")
	s.setState(Disconnected)
	s.dropQueued(errors.Annotate(ErrDisconnected, "reconnect failed"))
	s.calls.rejectAll(errors.Annotate(ErrDisconnected, "reconnect failed"))
	s.reportError(&TransportError{Op: "reconnect", Err: err})
}

func (s *Session) handleTransportError(err error) {
	s.log.Error().Err(err).Msg("socket error")
	s.reportError(&TransportError{Op: "receive", Err: err})
}

// ========================= inbound messages =========================

func (s *Session) dispatch(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.Reply:
		s.handleReply(m)
	case *wire.Error:
		s.handleError(m)
	case *wire.Signal:
		s.handleSignal(m)
	default:
		s.log.Debug().Str("kind", string(msg.Kind())).Msg("ignoring message")
	}
}

func (s *Session) handleReply(m *wire.Reply) {
	if !s.calls.has(m.ID) {
		s.log.Debug().Uint64("idm", m.ID).Msg("reply for unknown call")
		return
	}
	result, err := s.proxify(m.Result)
	if err != nil {
		s.log.Debug().Uint64("idm", m.ID).Err(err).Msg("rejecting call")
		s.calls.reject(m.ID, err)
		return
	}
	s.log.Debug().Uint64("idm", m.ID).Msg("resolving call")
	s.calls.resolve(m.ID, result)
}

// handleError fails the call the error is addressed to. An error that
// matches no call is escalated to both handlers; the transport stays up.
func (s *Session) handleError(m *wire.Error) {
	if m.ID != nil && s.calls.reject(*m.ID, &RemoteCallError{ID: *m.ID, Result: m.Result}) {
		return
	}
	perr := &ProtocolError{Result: m.Result}
	s.log.Error().Interface("result", m.Result).Msg("socket error")
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect(perr.Error())
	}
	s.reportError(perr)
}

func (s *Session) handleSignal(m *wire.Signal) {
	if !s.signals.trigger(signalKey(m.Object, m.Signal, m.Link), m.Data) {
		s.log.Debug().Str("signal", m.Signal).Str("link", Token(m.Link)).Msg("no handler for signal")
	}
}

// proxify replaces every descriptor in v with a RemoteObject.
func (s *Session) proxify(v any) (any, error) {
	if raw, ok := isDescriptor(v); ok {
		d, err := parseDescriptor(raw)
		if err != nil {
			return nil, err
		}
		return newRemoteObject(s, d), nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			p, err := s.proxify(e)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			p, err := s.proxify(e)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	}
	return v, nil
}
