// Package encoding provides the marshaling abstraction used when records and
// queue items cross a tier boundary (hot store values, cold store objects,
// the sync queue's fallback list).
package encoding

import (
	"encoding/json"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

// Global Default marshaller. JSON was chosen because every tier backend
// (Redis values, sqlite payload column, S3 objects) stores records as JSON
// documents, keeping tiers inspectable with standard tooling.
var DefaultMarshaler = NewMarshaler()

type defaultMarshaler struct{}

// Returns the default marshaller which uses the golang's json package.
func NewMarshaler() Marshaler {
	return &defaultMarshaler{}
}

// Encodes any object to a byte array.
func (m defaultMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decodes a byte array back to its Object type.
func (m defaultMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal that can do byte array pass-through, for callers whose payload is
// already serialized.
func Marshal[T any](v T) ([]byte, error) {
	switch any(v).(type) {
	case []byte:
		var intf interface{} = v
		return intf.([]byte), nil
	default:
		return DefaultMarshaler.Marshal(v)
	}
}

// Unmarshal that can do byte array pass-through.
func Unmarshal[T any](ba []byte, v *T) error {
	switch any(v).(type) {
	case *[]byte:
		var intf interface{} = ba
		*v = intf.(T)
		return nil
	default:
		return DefaultMarshaler.Unmarshal(ba, v)
	}
}
