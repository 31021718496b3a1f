package cryptocore

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// aesBlock implements BlockCipher over AES-CBC. Full-size disk blocks are
// encrypted as one CBC chain per block, keyed by the per-block tweak.
type aesBlock struct {
	block cipher.Block
}

var _ BlockCipher = &aesBlock{}

func (c *aesBlock) Encrypt(iv, block []byte) ([]byte, error) {
	if len(iv) != ivLen {
		return nil, fmt.Errorf("aesBlock: iv must be %d bytes", ivLen)
	}
	if len(block) == 0 || len(block)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aesBlock: block length %d is not a non-zero multiple of %d", len(block), aes.BlockSize)
	}
	out := make([]byte, len(block))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, block)
	return out, nil
}

func (c *aesBlock) Decrypt(iv, block []byte) ([]byte, error) {
	if len(iv) != ivLen {
		return nil, fmt.Errorf("aesBlock: iv must be %d bytes", ivLen)
	}
	if len(block) == 0 || len(block)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aesBlock: block length %d is not a non-zero multiple of %d", len(block), aes.BlockSize)
	}
	out := make([]byte, len(block))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, block)
	return out, nil
}

// aesStream implements StreamCipher over AES-CTR, used for the trailing
// partial block where the length is not a multiple of the AES block size.
type aesStream struct {
	block cipher.Block
}

var _ StreamCipher = &aesStream{}

// ctr XORs data with the AES-CTR keystream seeded by iv. CTR is an
// involution, so Encrypt and Decrypt share this implementation.
func (c *aesStream) ctr(iv, data []byte) []byte {
	out := make([]byte, len(data))
	cipher.NewCTR(c.block, iv).XORKeyStream(out, data)
	return out
}

func (c *aesStream) Encrypt(iv, data []byte) []byte { return c.ctr(iv, data) }
func (c *aesStream) Decrypt(iv, data []byte) []byte { return c.ctr(iv, data) }

// newAESCipher builds the paired CBC/CTR primitives over one AES key.
func newAESCipher(key []byte) (block *aesBlock, stream *aesStream, err error) {
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	return &aesBlock{block: b}, &aesStream{block: b}, nil
}

// newAESBlockCipher builds only the BlockCipher half, used for filename
// encryption where no streaming mode is needed (names are always padded with
// namecode's PKCS#7 pad16 to a multiple of the AES block size).
func newAESBlockCipher(key []byte) (*aesBlock, error) {
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &aesBlock{block: b}, nil
}

// newAESRawBlock returns the bare cipher.Block, for the one consumer
// (namecode's EME codec) that needs to drive rfjakob/eme itself rather than
// go through the BlockCipher interface: EME is a wide-block tweakable mode,
// not a per-16-byte-chunk CBC construction, so it can't be expressed as a
// sequence of Encrypt(iv, block) calls the way content encryption is.
func newAESRawBlock(key []byte) (cipher.Block, error) {
	return aes.NewCipher(key)
}
