package cipherio

import (
	"github.com/go-vaultfs/vaultfs/internal/blockio"
	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

// effectiveIV returns the tweak fileIV (or externalIV when per-file IV
// headers are disabled) that every block's IV is derived from. Reverse mode
// always takes the externalIV branch, since New forces headerLen to 0
// there: the tweak must be deterministic, not a randomly-rolled value
// persisted into the user's source file. Caller must hold c.mu.
func (c *CipherFileIO) effectiveIV() uint64 {
	if c.headerLen == 0 {
		return c.externalIV
	}
	return c.fileIV
}

// transform runs one block/tail through the content cipher. encrypt
// selects direction before the reverse-mode swap: in reverse mode the
// backing store holds plaintext and CipherFileIO's job is to synthesize the
// ciphertext view, so every direction is inverted.
func (c *CipherFileIO) transform(encrypt bool, tweak uint64, data []byte, fullBlock bool) ([]byte, error) {
	if c.reverse {
		encrypt = !encrypt
	}
	iv := cryptocore.IVFromU64(tweak)
	// The block cipher only takes whole cipher blocks, and iv is exactly one
	// cipher block long; a full block of any other length (a MAC-headered
	// block, for instance) goes through the stream cipher like a tail does.
	if fullBlock && len(data)%len(iv) == 0 {
		if encrypt {
			return c.block.Encrypt(iv, data)
		}
		return c.block.Decrypt(iv, data)
	}
	if encrypt {
		return c.stream.Encrypt(iv, data), nil
	}
	return c.stream.Decrypt(iv, data), nil
}

// ReadOneBlock reads and decrypts exactly one block (or the file's trailing
// partial block) at a plaintext-block-aligned offset, per spec.md §4.3: full
// blocks whose length is a whole number of cipher blocks go through the block
// cipher; the trailing short block (and any full block of another length)
// goes through the stream cipher since it can't be padded without changing
// on-disk size.
func (c *CipherFileIO) ReadOneBlock(req blockio.Request) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rawOffset := req.Offset + c.headerLen
	n, err := c.raw.Read(req.Data[:req.Len], rawOffset)
	if n == 0 {
		return 0, err
	}
	if initErr := c.initHeader(); initErr != nil {
		return 0, initErr
	}

	blockNo := uint64(req.Offset) / uint64(c.blockSize)
	tweak := blockNo ^ c.effectiveIV()
	fullBlock := int64(n) == c.blockSize
	plain, terr := c.transform(false, tweak, req.Data[:n], fullBlock)
	if terr != nil {
		return 0, terr
	}
	copy(req.Data[:n], plain)
	return n, err
}

// WriteOneBlock encrypts and writes exactly one block (or trailing partial
// block) at a plaintext-block-aligned offset. Reverse mode exposes a
// synthesized ciphertext view over a real plaintext source file that must
// never be mutated; the mount is expected to be read-only end to end, but
// this refusal is the layer that actually owns raw, so it holds the line
// even if that changes upstream.
func (c *CipherFileIO) WriteOneBlock(req blockio.Request) error {
	if c.reverse {
		return ErrReverseWrite
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.initHeader(); err != nil {
		return err
	}

	blockNo := uint64(req.Offset) / uint64(c.blockSize)
	tweak := blockNo ^ c.effectiveIV()
	fullBlock := int64(req.Len) == c.blockSize
	ciphertext, terr := c.transform(true, tweak, req.Data[:req.Len], fullBlock)
	if terr != nil {
		return terr
	}
	rawOffset := req.Offset + c.headerLen
	_, err := c.raw.Write(ciphertext, rawOffset)
	return err
}
