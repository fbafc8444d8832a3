// Package encoding provides the pluggable wire-value marshaler shared by the
// Redis-backed engine and the persistence pipeline (spec.md §4.8/§6), the
// way the teacher's encoding package decouples its Redis client and blob
// store from a hardcoded encoding/json call.
package encoding

import "encoding/json"

// Marshaler defines methods to marshal/unmarshal values to/from byte slices.
type Marshaler interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// DefaultMarshaler is the package-wide default marshaler using JSON encoding.
var DefaultMarshaler = NewMarshaler()

type jsonMarshaler struct{}

// NewMarshaler returns a Marshaler implemented with the standard library
// JSON package.
func NewMarshaler() Marshaler {
	return jsonMarshaler{}
}

func (jsonMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
