package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack stores captures as MessagePack. Bodies stay raw bin fields, so it is
// the smallest frame for remote providers such as redis. No setup needed.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

func (Msgpack[V]) CodecID() byte { return idMsgpack }
