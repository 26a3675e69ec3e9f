package wire

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDecodeSocketIOReply(t *testing.T) {
	c := qt.New(t)

	msg, err := Decode(JSON, []byte(`{"name":"reply","args":[{"idm":3,"result":"ok"}]}`))
	c.Assert(err, qt.IsNil)
	c.Assert(msg, qt.DeepEquals, &Reply{ID: 3, Result: "ok"})
}

func TestDecodeErrorWithoutID(t *testing.T) {
	c := qt.New(t)

	msg, err := Decode(JSON, []byte(`{"name":"error","args":[{"idm":null,"result":"boom"}]}`))
	c.Assert(err, qt.IsNil)
	e, ok := msg.(*Error)
	c.Assert(ok, qt.IsTrue)
	c.Assert(e.ID, qt.IsNil)
	c.Assert(e.Result, qt.Equals, "boom")
}

func TestDecodeSignalKeepsLargeLinks(t *testing.T) {
	c := qt.New(t)

	data := []byte(`{"name":"signal","args":[{"result":{"obj":12,"signal":"started","link":18446744073709551557,"data":[1,"x"]}}]}`)
	msg, err := Decode(JSON, data)
	c.Assert(err, qt.IsNil)
	sig := msg.(*Signal)
	c.Assert(sig.Signal, qt.Equals, "started")
	c.Assert(sig.Link, qt.Equals, json.Number("18446744073709551557"))
	c.Assert(sig.Object, qt.Equals, json.Number("12"))
	c.Assert(sig.Data, qt.DeepEquals, []any{json.Number("1"), "x"})
}

func TestEncodeCallShape(t *testing.T) {
	c := qt.New(t)

	data, err := Encode(JSON, &Call{ID: 1, Object: "ServiceDirectory", Member: "service", Args: []any{"ALTextToSpeech"}})
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.JSONEquals, map[string]any{
		"name": "call",
		"args": []any{map[string]any{
			"idm": 1,
			"params": map[string]any{
				"obj":    "ServiceDirectory",
				"member": "service",
				"args":   []any{"ALTextToSpeech"},
			},
		}},
	})
}

func TestEncodeCallWithoutArgs(t *testing.T) {
	c := qt.New(t)

	data, err := Encode(JSON, &Call{ID: 9, Object: 4, Member: "ping"})
	c.Assert(err, qt.IsNil)
	msg, err := Decode(JSON, data)
	c.Assert(err, qt.IsNil)
	c.Assert(msg.(*Call).Args, qt.HasLen, 0)
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	c := qt.New(t)

	_, err := Decode(JSON, []byte(`{"name":"hello","args":[{}]}`))
	c.Assert(err, qt.ErrorIs, ErrUnknownEvent)
}

func TestDecodeRejectsEmptyArgs(t *testing.T) {
	c := qt.New(t)

	_, err := Decode(JSON, []byte(`{"name":"reply","args":[]}`))
	c.Assert(err, qt.ErrorIs, ErrMalformed)
}

func TestBinaryCodecsCarryDescriptors(t *testing.T) {
	for _, codec := range []Codec{CBOR, Proto} {
		t.Run(codec.Name(), func(t *testing.T) {
			c := qt.New(t)

			reply := &Reply{ID: 5, Result: map[string]any{
				"pyobject": "o1",
				"metaobject": map[string]any{
					"methods": []any{map[string]any{"name": "say"}},
				},
			}}
			data, err := Encode(codec, reply)
			c.Assert(err, qt.IsNil)

			msg, err := Decode(codec, data)
			c.Assert(err, qt.IsNil)
			got := msg.(*Reply)
			c.Assert(got.ID, qt.Equals, uint64(5))
			result, ok := got.Result.(map[string]any)
			c.Assert(ok, qt.IsTrue)
			c.Assert(result["pyobject"], qt.Equals, "o1")
			meta := result["metaobject"].(map[string]any)
			c.Assert(meta["methods"], qt.HasLen, 1)
		})
	}
}

func TestCodecByName(t *testing.T) {
	c := qt.New(t)

	for name, want := range map[string]Codec{"": JSON, "JSON": JSON, "cbor": CBOR, "protobuf": Proto} {
		got, err := CodecByName(name)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Name(), qt.Equals, want.Name())
	}
	_, err := CodecByName("xml")
	c.Assert(err, qt.ErrorMatches, `codec "xml" not valid`)
}
