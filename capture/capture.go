// Package capture defines the persisted form of a network response.
//
// A Capture is what the store keeps for a (method, url) pair. Captures of the
// same URL are interchangeable snapshots; the newest write wins.
package capture

import (
	"bytes"
	"net/http"
	"time"
)

// Capture is a full snapshot of a response: status, headers and body.
type Capture struct {
	URL      string              `json:"url" cbor:"1,keyasint" msgpack:"url"`
	Status   int                 `json:"status" cbor:"2,keyasint" msgpack:"status"`
	Header   map[string][]string `json:"header,omitempty" cbor:"3,keyasint,omitempty" msgpack:"header,omitempty"`
	Body     []byte              `json:"body,omitempty" cbor:"4,keyasint,omitempty" msgpack:"body,omitempty"`
	StoredAt time.Time           `json:"stored_at" cbor:"5,keyasint" msgpack:"stored_at"`
}

// HTTPHeader returns a copy of the captured headers as an http.Header.
func (c Capture) HTTPHeader() http.Header {
	h := make(http.Header, len(c.Header))
	for k, vs := range c.Header {
		h[k] = append([]string(nil), vs...)
	}
	return h
}

// Equal reports whether two captures hold the same response.
// StoredAt is compared at millisecond precision since codecs may truncate.
func (c Capture) Equal(o Capture) bool {
	if c.URL != o.URL || c.Status != o.Status || !bytes.Equal(c.Body, o.Body) {
		return false
	}
	if c.StoredAt.UnixMilli() != o.StoredAt.UnixMilli() {
		return false
	}
	if len(c.Header) != len(o.Header) {
		return false
	}
	for k, vs := range c.Header {
		ws, ok := o.Header[k]
		if !ok || len(ws) != len(vs) {
			return false
		}
		for i := range vs {
			if vs[i] != ws[i] {
				return false
			}
		}
	}
	return true
}
