package codec

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/unkn0wn-root/swcache/capture"
)

// Capture field numbers. Compatible with:
//
//	message Header  { string name = 1; repeated string values = 2; }
//	message Capture {
//	  string url = 1; int64 status = 2; repeated Header header = 3;
//	  bytes body = 4; int64 stored_at_unix_nano = 5;
//	}
const (
	fieldURL      protowire.Number = 1
	fieldStatus   protowire.Number = 2
	fieldHeader   protowire.Number = 3
	fieldBody     protowire.Number = 4
	fieldStoredAt protowire.Number = 5

	fieldHeaderName  protowire.Number = 1
	fieldHeaderValue protowire.Number = 2
)

var errProtoMalformed = errors.New("codec: malformed capture protobuf")

// CaptureProto encodes captures in protobuf wire format without generated code.
// Header names are written in sorted order so equal captures encode identically.
type CaptureProto struct{}

var _ Codec[capture.Capture] = CaptureProto{}

func (CaptureProto) Encode(c capture.Capture) ([]byte, error) {
	var b []byte
	if c.URL != "" {
		b = protowire.AppendTag(b, fieldURL, protowire.BytesType)
		b = protowire.AppendString(b, c.URL)
	}
	if c.Status != 0 {
		b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(c.Status)))
	}

	names := make([]string, 0, len(c.Header))
	for k := range c.Header {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		var h []byte
		h = protowire.AppendTag(h, fieldHeaderName, protowire.BytesType)
		h = protowire.AppendString(h, name)
		for _, v := range c.Header[name] {
			h = protowire.AppendTag(h, fieldHeaderValue, protowire.BytesType)
			h = protowire.AppendString(h, v)
		}
		b = protowire.AppendTag(b, fieldHeader, protowire.BytesType)
		b = protowire.AppendBytes(b, h)
	}

	if len(c.Body) > 0 {
		b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Body)
	}
	if !c.StoredAt.IsZero() {
		b = protowire.AppendTag(b, fieldStoredAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.StoredAt.UnixNano()))
	}
	return b, nil
}

func (CaptureProto) Decode(b []byte) (capture.Capture, error) {
	var c capture.Capture
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return capture.Capture{}, fmt.Errorf("%w: %v", errProtoMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldURL && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return capture.Capture{}, errProtoMalformed
			}
			c.URL, b = v, b[m:]
		case num == fieldStatus && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return capture.Capture{}, errProtoMalformed
			}
			c.Status, b = int(int64(v)), b[m:]
		case num == fieldHeader && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return capture.Capture{}, errProtoMalformed
			}
			name, values, err := decodeHeader(v)
			if err != nil {
				return capture.Capture{}, err
			}
			if c.Header == nil {
				c.Header = make(map[string][]string)
			}
			c.Header[name] = append(c.Header[name], values...)
			b = b[m:]
		case num == fieldBody && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return capture.Capture{}, errProtoMalformed
			}
			c.Body, b = append([]byte(nil), v...), b[m:]
		case num == fieldStoredAt && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return capture.Capture{}, errProtoMalformed
			}
			c.StoredAt, b = time.Unix(0, int64(v)), b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return capture.Capture{}, errProtoMalformed
			}
			b = b[m:]
		}
	}
	return c, nil
}

func decodeHeader(b []byte) (string, []string, error) {
	var (
		name   string
		values []string
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, errProtoMalformed
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != fieldHeaderName && num != fieldHeaderValue) {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return "", nil, errProtoMalformed
			}
			b = b[m:]
			continue
		}
		v, m := protowire.ConsumeString(b)
		if m < 0 {
			return "", nil, errProtoMalformed
		}
		b = b[m:]
		if num == fieldHeaderName {
			name = v
		} else {
			values = append(values, v)
		}
	}
	return name, values, nil
}

func (CaptureProto) CodecID() byte { return idCaptureProto }
