// Package serializer provides the byte-string codecs the cache façade uses
// to turn values into Redis strings and back. Two standard codecs are
// provided: a structured-text codec (JSON) and a language-neutral binary
// codec (msgpack, standing in for the original's Pickle).
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes values to bytes and decodes bytes back to values. Encode
// must accept whatever callers pass. Decode must treat a nil input as
// "absent" and return a nil value, never an error.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONCodec implements Codec using encoding/json. Round-tripping through
// JSON coerces tuple/array-like values to slices and loses set identity,
// same as the original's JSONSerializer.
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Decode(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MsgpackCodec implements Codec using msgpack, a compact binary format
// that preserves more of Go's type model across a round trip than JSON
// does — the role the original filled with Pickle.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (MsgpackCodec) Decode(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var out any
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
