package wire

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/juju/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec turns envelopes into bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	// JSON is the codec spoken by the socket.io gateway. Numbers decode as
	// json.Number so 64-bit signal links survive the round trip.
	JSON Codec = jsonCodec{}

	// CBOR uses core deterministic encoding.
	CBOR Codec = newCBORCodec()

	// Proto carries the envelope as a google.protobuf.Struct.
	Proto Codec = protoCodec{}
)

// CodecByName resolves "json", "cbor" or "proto".
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	case "proto", "protobuf":
		return Proto, nil
	}
	return nil, errors.NotValidf("codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	// Payload maps are always string keyed; decoding into any must give
	// map[string]any so descriptors parse the same as with JSON.
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return "cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(v any) ([]byte, error) {
	// structpb only understands plain maps, slices and scalars, so the
	// value goes through JSON first.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Annotate(err, "proto envelope must be an object")
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return proto.Marshal(s)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return errors.Trace(err)
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return errors.Trace(err)
	}
	return JSON.Unmarshal(raw, v)
}
