package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by Limited for payloads over its limit.
var ErrTooLarge = errors.New("codec: payload exceeds size limit")

// Limited caps the serialized size of values in both directions. Oversized
// values are refused on Encode before they reach the cache, and oversized
// payloads are refused on Decode before the inner codec allocates for them.
// Max <= 0 disables the check.
type Limited[V any] struct {
	Inner Codec[V]
	Max   int
}

var _ Codec[struct{}] = Limited[struct{}]{}

func (c Limited[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if err := c.check(len(b)); err != nil {
		return nil, err
	}
	return b, nil
}

func (c Limited[V]) Decode(b []byte) (V, error) {
	if err := c.check(len(b)); err != nil {
		var zero V
		return zero, err
	}
	return c.Inner.Decode(b)
}

func (c Limited[V]) check(n int) error {
	if c.Max > 0 && n > c.Max {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, n, c.Max)
	}
	return nil
}
