package codec

import "fmt"

// Limit wraps another codec and refuses to decode payloads larger than MaxDecode.
// Encode is forwarded to Inner unchanged. If MaxDecode <= 0, no limit applies.
//
// Shared stores (redis, sqlite files) are written by other processes; a capture
// that decodes into a multi-megabyte body should fail fast instead.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}

// CodecID forwards to Inner; the size limit does not change the encoding.
func (c Limit[V]) CodecID() byte { return ID(c.Inner) }
