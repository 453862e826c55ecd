// Package payload parses the raw bytes pushed by a UBB OP_RETURN output
// into the typed sum type the transition function branches on. It performs
// no semantic validation of its own (coordinates, deed flow, overlap) —
// only wire-format decoding.
package payload

import "encoding/binary"

const (
	magicHi byte = 0x13
	magicLo byte = 0x37
	version byte = 0x01

	typeClaim       byte = 0x01
	typeRetryClaim  byte = 0x02
	typeUpdate      byte = 0x03
	typeTransfer    byte = 0x04
	headerSize           = 8
)

// Kind tags which arm of the Parsed sum type is populated.
type Kind int

const (
	// KindClaim is a CLAIM: reserve a rectangle with an image.
	KindClaim Kind = iota
	// KindRetryClaim is a RETRY-CLAIM: move an UNPLACED plot's rectangle.
	KindRetryClaim
	// KindUpdate is an UPDATE: replace a PLACED plot's image in place.
	KindUpdate
	// KindTransfer is a TRANSFER: deed-only, no payload semantics.
	KindTransfer
	// KindInvalid is any payload that failed to parse.
	KindInvalid
)

// Parsed is the result of parsing one OP_RETURN payload. Exactly the
// fields relevant to Kind are meaningful; the rest are zero.
type Parsed struct {
	Kind Kind

	X0, Y0 uint16

	// URI and BMP are set only for KindClaim and KindUpdate.
	URI string
	BMP []byte

	// InvalidReason is set only for KindInvalid, for warning messages.
	InvalidReason string
}

func invalid(reason string) Parsed {
	return Parsed{Kind: KindInvalid, InvalidReason: reason}
}

// Parse decodes the bit-exact UBB wire format described in the protocol:
// a 2-byte magic, 1-byte version, 1-byte type, two little-endian uint16
// coordinates, and for CLAIM/UPDATE a CBOR definite-length text URI
// immediately followed by a raw BMP occupying the remainder of data.
func Parse(data []byte) Parsed {
	if len(data) < headerSize {
		return invalid("truncated")
	}
	if data[0] != magicHi || data[1] != magicLo {
		return invalid("bad magic")
	}
	if data[2] != version {
		return invalid("bad version")
	}
	x0 := binary.LittleEndian.Uint16(data[4:6])
	y0 := binary.LittleEndian.Uint16(data[6:8])

	switch data[3] {
	case typeRetryClaim:
		return Parsed{Kind: KindRetryClaim, X0: x0, Y0: y0}
	case typeTransfer:
		return Parsed{Kind: KindTransfer, X0: x0, Y0: y0}
	case typeClaim, typeUpdate:
		uri, rest, err := decodeCBORText(data[headerSize:])
		if err != nil {
			return invalid(err.Error())
		}
		if len(rest) == 0 {
			return invalid("zero-length bmp")
		}
		kind := KindClaim
		if data[3] == typeUpdate {
			kind = KindUpdate
		}
		return Parsed{Kind: kind, X0: x0, Y0: y0, URI: uri, BMP: rest}
	default:
		return invalid("unknown type")
	}
}
