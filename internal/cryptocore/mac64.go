package cryptocore

import (
	"github.com/zeebo/blake3"
)

// blake3MAC implements MAC via a keyed BLAKE3 hash; Sum64 truncates it to 64
// bits, and macio.MACFileIO keeps only the configured macBytes low bytes.
// None of the retrieval pack's encrypting-filesystem repos implement a raw
// 64-bit MAC directly; blake3 is wired in from bureau-foundation-bureau's
// stack as the keyed hash primitive and truncated here rather than reaching
// for a hand-rolled CRC or HMAC construction.
type blake3MAC struct {
	key [32]byte
}

var _ MAC = &blake3MAC{}

func newBlake3MAC(key []byte) *blake3MAC {
	m := &blake3MAC{}
	copy(m.key[:], key)
	return m
}

func (m *blake3MAC) Sum64(data []byte) uint64 {
	h, err := blake3.NewKeyed(m.key[:])
	if err != nil {
		// NewKeyed only fails on a wrong-length key, which cannot happen
		// here since m.key is a fixed-size array.
		panic("cryptocore: blake3.NewKeyed: " + err.Error())
	}
	h.Write(data)
	var out [8]byte
	h.Digest().Read(out[:])
	return uint64(out[0]) | uint64(out[1])<<8 | uint64(out[2])<<16 | uint64(out[3])<<24 |
		uint64(out[4])<<32 | uint64(out[5])<<40 | uint64(out[6])<<48 | uint64(out[7])<<56
}
