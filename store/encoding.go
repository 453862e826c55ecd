package store

import "encoding/hex"

func hashHex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

func hashFromHex(s string) ([32]byte, error) {
	var out [32]byte
	if s == "" {
		return out, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
