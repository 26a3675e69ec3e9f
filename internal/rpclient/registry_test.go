package rpclient

import (
	"encoding/json"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFutureSettlesOnce(t *testing.T) {
	c := qt.New(t)

	f := newFuture()
	_, err := f.Result()
	c.Assert(err, qt.ErrorIs, ErrPending)

	var order []string
	f.then(func(v any, err error) { order = append(order, "first") })
	f.then(func(v any, err error) { order = append(order, "second") })

	c.Assert(f.resolve("a"), qt.IsTrue)
	c.Assert(f.resolve("b"), qt.IsFalse)
	c.Assert(f.reject(errors.New("late")), qt.IsFalse)

	v, err := f.Result()
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "a")
	c.Assert(order, qt.DeepEquals, []string{"first", "second"})

	f.then(func(v any, err error) { order = append(order, "after") })
	c.Assert(order, qt.DeepEquals, []string{"first", "second", "after"})
}

func TestCallRegistry(t *testing.T) {
	c := qt.New(t)

	r := newCallRegistry()
	id1, f1 := r.create()
	id2, f2 := r.create()
	c.Assert(id1, qt.Equals, uint64(1))
	c.Assert(id2, qt.Equals, uint64(2))

	c.Assert(r.resolve(id2, "two"), qt.IsTrue)
	c.Assert(r.resolve(id2, "again"), qt.IsFalse)
	c.Assert(r.reject(id2, errors.New("late")), qt.IsFalse)
	c.Assert(r.resolve(42, "stray"), qt.IsFalse)
	v, _ := f2.Result()
	c.Assert(v, qt.Equals, "two")

	boom := errors.New("boom")
	c.Assert(r.reject(id1, boom), qt.IsTrue)
	_, err := f1.Result()
	c.Assert(err, qt.Equals, boom)
	c.Assert(r.len(), qt.Equals, 0)

	id3, _ := r.create()
	c.Assert(id3, qt.Equals, uint64(3))
}

func TestCallRegistryRejectAll(t *testing.T) {
	c := qt.New(t)

	r := newCallRegistry()
	r.rejectAll(ErrDisconnected)

	var futures []*Future
	for i := 0; i < 3; i++ {
		_, f := r.create()
		futures = append(futures, f)
	}
	// A continuation that issues a new call while the registry is flushed.
	var late *Future
	futures[0].then(func(any, error) { _, late = r.create() })

	r.rejectAll(ErrDisconnected)
	for _, f := range futures {
		_, err := f.Result()
		c.Assert(err, qt.ErrorIs, ErrDisconnected)
	}
	c.Assert(late, qt.Not(qt.IsNil))
	c.Assert(r.len(), qt.Equals, 1)
	c.Assert(r.has(4), qt.IsTrue)
}

func TestSignalRegistry(t *testing.T) {
	c := qt.New(t)

	r := newSignalRegistry()
	c.Assert(r.trigger(signalKey("o1", "started", 7), nil), qt.IsFalse)

	var got []any
	r.register(signalKey("o1", "started", 7), func(args ...any) { got = args })
	c.Assert(r.trigger(signalKey("o1", "started", json.Number("7")), []any{1, 2}), qt.IsTrue)
	c.Assert(got, qt.DeepEquals, []any{1, 2})

	// Keys are composite: no collision through concatenation.
	r.register(signalKey("o1_started", "", 7), func(...any) {})
	c.Assert(r.len(), qt.Equals, 2)

	r.unregister(signalKey("o1", "started", 7))
	r.unregister(signalKey("o1", "started", 7))
	got = nil
	c.Assert(r.trigger(signalKey("o1", "started", 7), []any{3}), qt.IsFalse)
	c.Assert(got, qt.IsNil)

	r.unregisterAll()
	c.Assert(r.len(), qt.Equals, 0)
}

func TestToken(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"o1", "o1"},
		{json.Number("18446744073709551615"), "18446744073709551615"},
		{7, "7"},
		{int64(-3), "-3"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{float64(7), "7"},
		{1.5, "1.5"},
		{true, "true"},
	}
	for _, test := range tests {
		c.Check(Token(test.in), qt.Equals, test.want, qt.Commentf("%#v", test.in))
	}
}
