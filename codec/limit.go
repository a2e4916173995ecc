package codec

import "fmt"

// LimitCodec refuses to decode payloads larger than MaxDecode bytes. Use it
// when the backend is shared and a foreign writer could plant a huge record.
// MaxDecode <= 0 disables the check. Encode is forwarded unchanged.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
