// Package codec abstracts payload encoding so that the wire layer and the
// snapshot layer can pick different formats behind the same interface.
package codec

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}

type Codec interface {
	Marshaler
	Unmarshaler
}

// JSON encodes the wire protocol: the realtime channel carries JSON text
// frames.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)         { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, dst any) error  { return json.Unmarshal(data, dst) }

// CBOR encodes persisted snapshots compactly.
type CBOR struct{}

func (CBOR) Marshal(v any) ([]byte, error)        { return cbor.Marshal(v) }
func (CBOR) Unmarshal(data []byte, dst any) error { return cbor.Unmarshal(data, dst) }
