package rpclient

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/EgorLis/qimessaging/internal/logging"
	"github.com/EgorLis/qimessaging/internal/transport"
	"github.com/EgorLis/qimessaging/internal/wire"
)

// ServiceDirectory is the well-known object that resolves service names.
const ServiceDirectory = "ServiceDirectory"

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Reconnecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Reconnecting:
		return "reconnecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Options configures a session.
type Options struct {
	// Host is the robot address. Required.
	Host string
	// Debug turns on debug logging when Logger is nil.
	Debug bool
	// Reconnect enables automatic reconnection. Only Dial reads it; a
	// session made with New reconnects the way its transport is configured.
	Reconnect bool
	// ManualConnect stops New from connecting right away.
	ManualConnect bool
	Logger        *zerolog.Logger

	// Handlers run on the transport goroutine. They must not wait for
	// call results.
	OnConnect    func(s *Session)
	OnDisconnect func(reason string)
	OnError      func(err error)
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return logging.New(os.Stderr, o.Debug)
}

// Session is one logical connection to a robot. It owns the call and
// signal registries; both are flushed whenever the connection drops.
type Session struct {
	id      string
	opts    Options
	log     zerolog.Logger
	tr      transport.Transport
	calls   *callRegistry
	signals *signalRegistry

	mu     sync.Mutex
	state  State
	outbox []*wire.Call // calls made before the connect event
}

// New creates a session over t and, unless opts.ManualConnect is set,
// starts connecting.
func New(opts Options, t transport.Transport) (*Session, error) {
	if opts.Host == "" {
		return nil, ErrMissingHost
	}
	if t == nil {
		return nil, errors.NotValidf("nil transport")
	}
	id := uuid.NewString()
	s := &Session{
		id:      id,
		opts:    opts,
		log:     opts.logger().With().Str("session", id).Logger(),
		tr:      t,
		calls:   newCallRegistry(),
		signals: newSignalRegistry(),
	}
	if !opts.ManualConnect {
		if err := s.Connect(context.Background()); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return s, nil
}

// Dial creates a session over the socket.io gateway of opts.Host.
func Dial(opts Options) (*Session, error) {
	cfg := transport.DefaultConfig()
	cfg.Host = opts.Host
	cfg.Reconnect = opts.Reconnect
	cfg.Logger = opts.logger()
	if opts.Logger == nil {
		l := cfg.Logger
		opts.Logger = &l
	}
	return New(opts, transport.NewSocketIO(cfg))
}

// ID returns the session id used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect starts connecting. It does nothing while the session is already
// connecting, reconnecting or connected. The connection lives until ctx is
// done or Disconnect is called.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		st := s.state
		s.mu.Unlock()
		s.log.Debug().Stringer("state", st).Msg("already connecting, ignoring connect")
		return nil
	}
	s.state = Connecting
	s.mu.Unlock()

	if err := s.tr.Open(ctx, s.events()); err != nil {
		s.setState(Disconnected)
		s.dropQueued(errors.Annotate(ErrDisconnected, "open failed"))
		return &TransportError{Op: "open", Err: err}
	}
	return nil
}

// Disconnect tears the connection down. Pending calls fail once the
// transport reports the disconnect. Teardown failures go to OnError.
func (s *Session) Disconnect() {
	s.log.Debug().Msg("disconnecting")
	if err := s.tr.Close(); err != nil {
		s.log.Error().Err(err).Msg("error while disconnecting")
		s.reportError(&TransportError{Op: "close", Err: err})
	}
}

// Service looks up a service by name. The future resolves with a
// *RemoteObject.
func (s *Session) Service(name string) *Future {
	return s.call(ServiceDirectory, "service", []any{name}, nil)
}

// ServiceObject is Service waited for.
func (s *Session) ServiceObject(ctx context.Context, name string) (*RemoteObject, error) {
	obj, err := Await[*RemoteObject](ctx, s.Service(name))
	if err != nil {
		return nil, errors.Annotatef(err, "service %q", name)
	}
	if obj == nil {
		return nil, errors.NotFoundf("service %q", name)
	}
	return obj, nil
}

// ========================= outgoing calls =========================

// call sends one call frame. then, when set, is registered before the
// frame leaves so that it runs on the dispatcher ahead of later frames.
// While the session is connecting or reconnecting the frame waits in the
// outbox until the connect event.
func (s *Session) call(object any, member string, args []any, then func(any, error)) *Future {
	if args == nil {
		args = []any{}
	}
	id, f := s.calls.create()
	if then != nil {
		f.then(then)
	}
	call := &wire.Call{ID: id, Object: object, Member: member, Args: args}

	s.mu.Lock()
	if s.state == Connecting || s.state == Reconnecting {
		s.outbox = append(s.outbox, call)
		s.mu.Unlock()
		s.log.Debug().Uint64("idm", id).Str("member", member).Msg("call queued")
		return f
	}
	s.mu.Unlock()

	s.send(call)
	return f
}

func (s *Session) send(call *wire.Call) {
	s.log.Debug().Uint64("idm", call.ID).Str("member", call.Member).Interface("args", call.Args).Msg("call")
	if err := s.tr.Send(call); err != nil {
		// Nothing will answer this id; drop it the way a disconnect would.
		s.calls.reject(call.ID, errors.Annotatef(ErrDisconnected, "call %d not sent", call.ID))
		s.reportError(&TransportError{Op: "send", Err: err})
	}
}

// flush sends the queued calls in order and only then marks the session
// connected, so that no direct call overtakes a queued one.
func (s *Session) flush() {
	for {
		s.mu.Lock()
		queued := s.outbox
		s.outbox = nil
		if len(queued) == 0 {
			s.state = Connected
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		for _, call := range queued {
			s.send(call)
		}
	}
}

// dropQueued fails every call still waiting in the outbox.
func (s *Session) dropQueued(reason error) {
	s.mu.Lock()
	queued := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, call := range queued {
		s.calls.reject(call.ID, errors.Annotatef(reason, "call %d canceled", call.ID))
	}
}

func (s *Session) reportError(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
