// Package wire frames encoded captures before they reach a provider.
//
// Entry: magic(4) | ver(1) | codec(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
//
// gen is the store-version generation observed when the entry was written.
// codec identifies the payload encoding so a store shared by agents with
// different codecs never misdecodes an entry; a mismatch reads as corrupt.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("swcache: corrupt entry")
	magic4     = [...]byte{'S', 'W', 'C', 'E'}
)

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	Codec   byte
	Gen     uint64
	Payload []byte
}

func Encode(codecID byte, gen uint64, payload []byte) []byte {
	buf := make([]byte, 0, hdrLen+len(payload))
	buf = append(buf, magic4[:]...)
	buf = append(buf, version, codecID)
	buf = binary.BigEndian.AppendUint64(buf, gen)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// Decode parses a frame. Frames with trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	e := Entry{Codec: b[5]}
	e.Gen = binary.BigEndian.Uint64(b[6:14])
	vlen := binary.BigEndian.Uint32(b[14:18])
	if uint64(vlen) != uint64(len(b)-hdrLen) {
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[hdrLen:]
	return e, nil
}

// DecodeFor parses a frame and requires it to carry codecID.
func DecodeFor(codecID byte, b []byte) (Entry, error) {
	e, err := Decode(b)
	if err != nil {
		return Entry{}, err
	}
	if e.Codec != codecID {
		return Entry{}, ErrCorrupt
	}
	return e, nil
}
