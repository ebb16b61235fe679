package codec

import "encoding/json"

// JSON stores values as JSON. Bodies are base64 encoded, so this is the
// largest on-disk form; it is handy when inspecting a redis or sqlite store by hand.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

func (JSON[V]) CodecID() byte { return idJSON }
