package rpclient

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
)

// SignalFunc receives the data of one signal emission.
type SignalFunc func(args ...any)

// SignalKey identifies one subscription: the remote object, the signal or
// property name, and the link the robot issued for it.
type SignalKey struct {
	Object string
	Signal string
	Link   string
}

func signalKey(object any, signal string, link any) SignalKey {
	return SignalKey{Object: Token(object), Signal: signal, Link: Token(link)}
}

// Token renders an opaque object identity or link as a map key. The same
// value decoded by different codecs maps to the same token.
func Token(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<63 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// signalRegistry maps subscriptions to their callbacks.
type signalRegistry struct {
	mu       sync.Mutex
	handlers map[SignalKey]SignalFunc
}

func newSignalRegistry() *signalRegistry {
	return &signalRegistry{handlers: make(map[SignalKey]SignalFunc)}
}

func (r *signalRegistry) register(key SignalKey, cb SignalFunc) {
	r.mu.Lock()
	r.handlers[key] = cb
	r.mu.Unlock()
}

func (r *signalRegistry) unregister(key SignalKey) {
	r.mu.Lock()
	delete(r.handlers, key)
	r.mu.Unlock()
}

func (r *signalRegistry) unregisterAll() {
	r.mu.Lock()
	r.handlers = make(map[SignalKey]SignalFunc)
	r.mu.Unlock()
}

// trigger runs the callback for key with args. Emissions for unknown keys
// are dropped: the robot may still emit after an unsubscribe it has not
// processed yet. It reports whether a callback ran.
func (r *signalRegistry) trigger(key SignalKey, args []any) bool {
	r.mu.Lock()
	cb := r.handlers[key]
	r.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(args...)
	return true
}

func (r *signalRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
