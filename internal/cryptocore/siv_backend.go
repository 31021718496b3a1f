package cryptocore

import (
	"fmt"

	"github.com/jacobsa/crypto/siv"
)

// sivKeyLen is required by github.com/jacobsa/crypto/siv: 32, 48 or 64 bytes.
// We derive a 64-byte key from our 32-byte content subkey via HKDF so that
// siv.Encrypt/Decrypt get their own, independent, full-length key material.
const sivKeyLen = 64

// sivBlock implements BlockCipher over AES-SIV (RFC 5297), a deterministic,
// misuse-resistant authenticated cipher, used by namecode's SIVCoder with the
// chained name IV as iv. Misuse-resistance makes it safe to use that IV as
// the only source of uniqueness: even an IV collision does not leak the
// plaintext relationship the way CTR/GCM reuse would.
type sivBlock struct {
	key []byte
}

var _ BlockCipher = &sivBlock{}

func newSIVCipher(contentKey []byte) (*sivBlock, error) {
	key := hkdfExpand(contentKey, "vaultfs-siv-expand", sivKeyLen)
	return &sivBlock{key: key}, nil
}

// Encrypt treats iv as associated data (RFC 5297 ties the nonce into the
// synthetic IV rather than using it as a traditional nonce), so repeating an
// iv with different plaintext is safe but still binds ciphertext to tweak.
func (s *sivBlock) Encrypt(iv, block []byte) ([]byte, error) {
	if len(block) == 0 {
		return nil, fmt.Errorf("sivBlock: empty block")
	}
	associated := [][]byte{iv}
	out, err := siv.Encrypt(nil, s.key, block, associated)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sivBlock) Decrypt(iv, block []byte) ([]byte, error) {
	const overhead = 16
	if len(block) <= overhead {
		return nil, fmt.Errorf("sivBlock: block too short (%d bytes)", len(block))
	}
	associated := [][]byte{iv}
	out, err := siv.Decrypt(s.key, block, associated)
	if err != nil {
		return nil, err
	}
	return out, nil
}
