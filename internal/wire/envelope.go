package wire

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// ErrUnknownEvent is returned by Decode for event names outside the
	// four message kinds.
	ErrUnknownEvent = errors.ConstError("unknown event")

	// ErrMalformed is returned by Decode when an event carries no payload.
	ErrMalformed = errors.ConstError("malformed event")
)

// envelope is the socket.io event shape: {"name": ..., "args": [payload]}.
type envelope[T any] struct {
	Name string `json:"name"`
	Args []T    `json:"args"`
}

// Encode serialises msg as an event envelope.
func Encode(c Codec, msg Message) ([]byte, error) {
	var payload any
	switch m := msg.(type) {
	case *Call:
		args := m.Args
		if args == nil {
			args = []any{}
		}
		payload = callPayload{
			ID:     m.ID,
			Params: callParams{Object: m.Object, Member: m.Member, Args: args},
		}
	case *Reply:
		id := m.ID
		payload = resultPayload{ID: &id, Result: m.Result}
	case *Error:
		payload = resultPayload{ID: m.ID, Result: m.Result}
	case *Signal:
		data := m.Data
		if data == nil {
			data = []any{}
		}
		payload = signalPayload{Result: signalResult{
			Object: m.Object,
			Signal: m.Signal,
			Link:   m.Link,
			Data:   data,
		}}
	default:
		return nil, errors.NotSupportedf("message %T", msg)
	}
	data, err := c.Marshal(envelope[any]{Name: string(msg.Kind()), Args: []any{payload}})
	if err != nil {
		return nil, errors.Annotatef(err, "encoding %s with %s", msg.Kind(), c.Name())
	}
	return data, nil
}

// Decode parses one event envelope.
func Decode(c Codec, data []byte) (Message, error) {
	var head struct {
		Name string `json:"name"`
	}
	if err := c.Unmarshal(data, &head); err != nil {
		return nil, errors.Annotatef(err, "decoding envelope with %s", c.Name())
	}
	switch Kind(head.Name) {
	case KindCall:
		p, err := decodePayload[callPayload](c, data)
		if err != nil {
			return nil, err
		}
		return &Call{ID: p.ID, Object: p.Params.Object, Member: p.Params.Member, Args: p.Params.Args}, nil
	case KindReply:
		p, err := decodePayload[resultPayload](c, data)
		if err != nil {
			return nil, err
		}
		if p.ID == nil {
			return nil, errors.Annotate(ErrMalformed, "reply without idm")
		}
		return &Reply{ID: *p.ID, Result: p.Result}, nil
	case KindError:
		p, err := decodePayload[resultPayload](c, data)
		if err != nil {
			return nil, err
		}
		return &Error{ID: p.ID, Result: p.Result}, nil
	case KindSignal:
		p, err := decodePayload[signalPayload](c, data)
		if err != nil {
			return nil, err
		}
		r := p.Result
		return &Signal{Object: r.Object, Signal: r.Signal, Link: r.Link, Data: r.Data}, nil
	}
	return nil, errors.Annotate(ErrUnknownEvent, fmt.Sprintf("%q", head.Name))
}

func decodePayload[T any](c Codec, data []byte) (T, error) {
	var env envelope[T]
	var zero T
	if err := c.Unmarshal(data, &env); err != nil {
		return zero, errors.Annotatef(err, "decoding %s payload", env.Name)
	}
	if len(env.Args) == 0 {
		return zero, errors.Annotate(ErrMalformed, env.Name+" without args")
	}
	return env.Args[0], nil
}
