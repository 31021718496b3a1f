package namecode

import (
	"encoding/base64"

	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

// SIVCoder is a deterministic, misuse-resistant name codec: AES-SIV over the
// raw plaintext name, with no padding. Names are variable length anyway, so
// the 16-byte synthetic-IV overhead AES-SIV adds is harmless here, unlike in
// CipherFileIO's content path where it would break the block-geometry
// invariant.
type SIVCoder struct {
	block   cryptocore.BlockCipher
	mac     cryptocore.MAC
	b64     *base64.Encoding
	chained bool
}

var _ Coder = &SIVCoder{}

// NewSIVCoder builds the AES-SIV codec over core.SIVBlock.
func NewSIVCoder(core *cryptocore.Core, chained bool) *SIVCoder {
	return &SIVCoder{
		block:   core.SIVBlock,
		mac:     core.MAC,
		b64:     base64.URLEncoding,
		chained: chained,
	}
}

func (c *SIVCoder) IsChainedNameIV() bool { return c.chained }

func (c *SIVCoder) EncodeName(plainName string, iv uint64) (string, uint64) {
	tweak := cryptocore.IVFromU64(iv)
	out, err := c.block.Encrypt(tweak, []byte(plainName))
	if err != nil {
		// DirNode never encodes "", and AES-SIV has no block-alignment
		// requirement, so Encrypt cannot fail here.
		panic("namecode: SIVCoder.Encrypt: " + err.Error())
	}
	nextIV := nextChainIV(c.mac, c.chained, iv, out)
	return c.b64.EncodeToString(out), nextIV
}

func (c *SIVCoder) DecodeName(cipherName string, iv uint64) (string, uint64, error) {
	bin, err := c.b64.DecodeString(cipherName)
	if err != nil {
		return "", iv, ErrInvalidName
	}
	nextIV := nextChainIV(c.mac, c.chained, iv, bin)
	tweak := cryptocore.IVFromU64(iv)
	plain, err := c.block.Decrypt(tweak, bin)
	if err != nil {
		return "", iv, ErrInvalidName
	}
	if len(plain) == 0 || containsInvalidByte(plain) || isDotOrDotDot(string(plain)) {
		return "", iv, ErrInvalidName
	}
	return string(plain), nextIV, nil
}
