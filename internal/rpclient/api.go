package rpclient

import (
	"context"

	"github.com/juju/errors"
)

// ========================= typed service wrappers =========================

// Service names of the wrappers below.
const (
	TextToSpeechService = "ALTextToSpeech"
	MemoryService       = "ALMemory"
)

func requireMethods(o *RemoteObject, names ...string) error {
	for _, name := range names {
		if !o.HasMethod(name) {
			return errors.Annotatef(ErrNoSuchMember, "%v lacks method %q", o.ID(), name)
		}
	}
	return nil
}

// TextToSpeech wraps ALTextToSpeech.
type TextToSpeech struct {
	obj *RemoteObject
}

// NewTextToSpeech checks that o looks like ALTextToSpeech.
func NewTextToSpeech(o *RemoteObject) (*TextToSpeech, error) {
	if err := requireMethods(o, "say", "setLanguage", "getLanguage"); err != nil {
		return nil, errors.Trace(err)
	}
	return &TextToSpeech{obj: o}, nil
}

// TextToSpeech resolves ALTextToSpeech.
func (s *Session) TextToSpeech(ctx context.Context) (*TextToSpeech, error) {
	o, err := s.ServiceObject(ctx, TextToSpeechService)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewTextToSpeech(o)
}

func (t *TextToSpeech) Object() *RemoteObject { return t.obj }

func (t *TextToSpeech) Say(text string) *Future {
	return t.obj.Call("say", text)
}

func (t *TextToSpeech) SetLanguage(lang string) *Future {
	return t.obj.Call("setLanguage", lang)
}

func (t *TextToSpeech) Language(ctx context.Context) (string, error) {
	return Await[string](ctx, t.obj.Call("getLanguage"))
}

// Memory wraps ALMemory.
type Memory struct {
	obj *RemoteObject
}

// NewMemory checks that o looks like ALMemory.
func NewMemory(o *RemoteObject) (*Memory, error) {
	if err := requireMethods(o, "getData", "insertData", "subscriber"); err != nil {
		return nil, errors.Trace(err)
	}
	return &Memory{obj: o}, nil
}

// Memory resolves ALMemory.
func (s *Session) Memory(ctx context.Context) (*Memory, error) {
	o, err := s.ServiceObject(ctx, MemoryService)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewMemory(o)
}

func (m *Memory) Object() *RemoteObject { return m.obj }

func (m *Memory) GetData(key string) *Future {
	return m.obj.Call("getData", key)
}

func (m *Memory) InsertData(key string, value any) *Future {
	return m.obj.Call("insertData", key, value)
}

// Subscriber is a live subscription to one memory event.
type Subscriber struct {
	Event  string
	signal *Signal
	link   any
}

// Link returns the subscription link, nil once unsubscribed.
func (s *Subscriber) Link() any { return s.link }

// Subscribe asks ALMemory for the subscriber object of event and connects
// cb to its "signal" signal. It waits for two round trips, so it must not
// be called from a session handler.
func (m *Memory) Subscribe(ctx context.Context, event string, cb SignalFunc) (*Subscriber, error) {
	sub, err := Await[*RemoteObject](ctx, m.obj.Call("subscriber", event))
	if err != nil {
		return nil, errors.Annotatef(err, "subscriber for %q", event)
	}
	if sub == nil {
		return nil, errors.NotFoundf("subscriber for %q", event)
	}
	sig, ok := sub.Signal("signal")
	if !ok {
		return nil, errors.Annotatef(ErrNoSuchMember, "subscriber for %q has no signal", event)
	}
	link, err := sig.Connect(cb).Wait(ctx)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %q", event)
	}
	return &Subscriber{Event: event, signal: sig, link: link}, nil
}

// Unsubscribe drops the subscription.
func (s *Subscriber) Unsubscribe(ctx context.Context) error {
	if s.link == nil {
		return nil
	}
	if _, err := s.signal.Disconnect(s.link).Wait(ctx); err != nil {
		return errors.Annotatef(err, "disconnecting from %q", s.Event)
	}
	s.link = nil
	return nil
}
