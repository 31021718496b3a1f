package cryptocore

import (
	"crypto/rand"
	"encoding/binary"
	"log"
)

// osRandPRNG reads random bytes from crypto/rand, matching the teacher's
// RandBytes/RandUint64 helpers in internal/cryptocore/nonce.go.
type osRandPRNG struct{}

var _ PRNG = osRandPRNG{}

func (osRandPRNG) Bytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read is documented to never return an error. Panic
		// anyway, since a silently-zero IV or MAC salt is worse than a crash.
		log.Panic("cryptocore: failed to read random bytes: " + err.Error())
	}
	return b
}

// RandBytes returns n cryptographically random bytes, used outside the Core
// capability-interface path (e.g. generating a fresh master key before any
// Core exists to derive subkeys from).
func RandBytes(n int) []byte {
	return osRandPRNG{}.Bytes(n)
}

// RandUint64 returns a secure random uint64.
func RandUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Panic("cryptocore: failed to read random bytes: " + err.Error())
	}
	return binary.BigEndian.Uint64(b[:])
}

// IVFromU64 expands a little 64-bit tweak (blockNo XOR fileIV) into the
// 16-byte IV that BlockCipher/StreamCipher implementations require. The
// tweak fills the first 8 bytes (big-endian) and the last 8 are left zero:
// determinism in those 8 bytes is all the content-encryption scheme needs,
// since fileIV already makes the tweak unique per file.
func IVFromU64(v uint64) []byte {
	iv := make([]byte, ivLen)
	binary.BigEndian.PutUint64(iv[:8], v)
	return iv
}
