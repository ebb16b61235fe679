// Package codec converts captured responses to and from the bytes a provider stores.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Identified codecs report a stable id that is stored next to each payload.
// Entries written with another codec id read as corrupt instead of misdecoding.
type Identified interface {
	CodecID() byte
}

const (
	idUnknown byte = iota
	idJSON
	idCBOR
	idMsgpack
	idCaptureProto
)

// ID returns the id of cd, or 0 when cd does not report one.
func ID(cd any) byte {
	if i, ok := cd.(Identified); ok {
		return i.CodecID()
	}
	return idUnknown
}
