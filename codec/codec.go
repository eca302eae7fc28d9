// Package codec holds the serializers used for the opaque blob tag of the
// cache value format. The store never looks inside a blob; only a reader
// using the same codec can interpret it.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
