package namecode

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"

	"github.com/rfjakob/eme"

	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

// BlockCoder is the primary name codec: EME (a wide-block tweakable mode)
// over the whole padded name, so a single byte anywhere in the plaintext
// changes every byte of the ciphertext. Unlike CBC, EME needs no IV stream
// state and leaks no information about equal plaintext prefixes.
type BlockCoder struct {
	block   cipher.Block
	mac     cryptocore.MAC
	b64     *base64.Encoding
	chained bool
}

var _ Coder = &BlockCoder{}

// NewBlockCoder builds the EME codec. chained enables the IV-chaining
// behavior described by NameCoder; when false every component is encoded
// under the same (caller-supplied) IV.
func NewBlockCoder(core *cryptocore.Core, chained bool) *BlockCoder {
	return &BlockCoder{
		block:   core.NameRaw,
		mac:     core.MAC,
		b64:     base64.URLEncoding,
		chained: chained,
	}
}

func (c *BlockCoder) IsChainedNameIV() bool { return c.chained }

func (c *BlockCoder) EncodeName(plainName string, iv uint64) (string, uint64) {
	bin := pad16([]byte(plainName))
	tweak := cryptocore.IVFromU64(iv)
	bin = eme.Transform(c.block, tweak, bin, eme.DirectionEncrypt)
	nextIV := nextChainIV(c.mac, c.chained, iv, bin)
	return c.b64.EncodeToString(bin), nextIV
}

func (c *BlockCoder) DecodeName(cipherName string, iv uint64) (string, uint64, error) {
	bin, err := c.b64.DecodeString(cipherName)
	if err != nil {
		return "", iv, ErrInvalidName
	}
	if len(bin) == 0 || len(bin)%aes.BlockSize != 0 {
		return "", iv, ErrInvalidName
	}
	nextIV := nextChainIV(c.mac, c.chained, iv, bin)
	tweak := cryptocore.IVFromU64(iv)
	plain := eme.Transform(c.block, tweak, bin, eme.DirectionDecrypt)
	plain, err = unpad16(plain)
	if err != nil {
		return "", iv, err
	}
	if containsInvalidByte(plain) || isDotOrDotDot(string(plain)) {
		return "", iv, ErrInvalidName
	}
	return string(plain), nextIV, nil
}
