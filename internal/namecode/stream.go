package namecode

import (
	"crypto/aes"
	"encoding/base64"

	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

// StreamCoder is the CBC-based name codec: cheaper than EME but leaks equal
// ciphertext prefixes for names that share a plaintext prefix and the same
// IV. Offered as a lower-overhead alternative where that leak is
// acceptable.
type StreamCoder struct {
	block   cryptocore.BlockCipher
	mac     cryptocore.MAC
	b64     *base64.Encoding
	chained bool
}

var _ Coder = &StreamCoder{}

func NewStreamCoder(core *cryptocore.Core, chained bool) *StreamCoder {
	return &StreamCoder{
		block:   core.NameBlock,
		mac:     core.MAC,
		b64:     base64.URLEncoding,
		chained: chained,
	}
}

func (c *StreamCoder) IsChainedNameIV() bool { return c.chained }

func (c *StreamCoder) EncodeName(plainName string, iv uint64) (string, uint64) {
	bin := pad16([]byte(plainName))
	tweak := cryptocore.IVFromU64(iv)
	// CBC over the whole name: BlockCipher.Encrypt already chains blocks
	// internally via the cipher.Block it wraps.
	out, err := c.block.Encrypt(tweak, bin)
	if err != nil {
		// pad16 guarantees a non-zero multiple of the AES block size, so
		// Encrypt cannot fail here.
		panic("namecode: StreamCoder.Encrypt: " + err.Error())
	}
	nextIV := nextChainIV(c.mac, c.chained, iv, out)
	return c.b64.EncodeToString(out), nextIV
}

func (c *StreamCoder) DecodeName(cipherName string, iv uint64) (string, uint64, error) {
	bin, err := c.b64.DecodeString(cipherName)
	if err != nil {
		return "", iv, ErrInvalidName
	}
	if len(bin) == 0 || len(bin)%aes.BlockSize != 0 {
		return "", iv, ErrInvalidName
	}
	nextIV := nextChainIV(c.mac, c.chained, iv, bin)
	tweak := cryptocore.IVFromU64(iv)
	plain, err := c.block.Decrypt(tweak, bin)
	if err != nil {
		return "", iv, ErrInvalidName
	}
	plain, err = unpad16(plain)
	if err != nil {
		return "", iv, err
	}
	if containsInvalidByte(plain) || isDotOrDotDot(string(plain)) {
		return "", iv, ErrInvalidName
	}
	return string(plain), nextIV, nil
}
