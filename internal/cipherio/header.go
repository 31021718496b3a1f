package cipherio

import (
	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

// initHeader lazily materializes fileIV: reads and decrypts it if the file
// already has a header on disk, otherwise generates and writes a fresh one.
// Caller must hold c.mu.
//
// headerLen is 0 whenever the per-file IV header is disabled, which New
// forces unconditionally in reverse mode (raw there is the user's real
// source file, not a vault file with room for one) — so this is also the
// guard that keeps reverse mode from ever reading or writing raw's offset 0.
func (c *CipherFileIO) initHeader() error {
	if c.headerLen == 0 || c.fileIV != 0 {
		return nil
	}
	attrs, err := c.raw.GetAttrs()
	if err != nil {
		return err
	}
	if attrs.Size >= c.headerLen {
		buf := make([]byte, c.headerLen)
		if _, err := c.raw.Read(buf, 0); err != nil {
			return err
		}
		plain := c.stream.Decrypt(cryptocore.IVFromU64(c.externalIV), buf)
		iv := unpackFileIV(plain)
		if iv == 0 {
			c.warnf("initHeader: on-disk fileIV decrypted to zero, treating as corrupt")
		}
		c.fileIV = iv
		return nil
	}
	// Fresh file: roll a new, non-zero fileIV.
	var iv uint64
	for iv == 0 {
		iv = unpackFileIV(c.prng.Bytes(HeaderLen))
	}
	c.fileIV = iv
	return c.writeHeaderLocked()
}

// writeHeaderLocked serializes fileIV and writes it at offset 0. Caller must
// hold c.mu.
func (c *CipherFileIO) writeHeaderLocked() error {
	packed := packFileIV(c.fileIV)
	ciphertext := c.stream.Encrypt(cryptocore.IVFromU64(c.externalIV), packed[:])
	_, err := c.raw.Write(ciphertext, 0)
	return err
}

// SetIV implements the DirNode-facing IV update contract from spec.md §4.3.
func (c *CipherFileIO) SetIV(newExt uint64, reopenForWrite func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.externalIV == 0 {
		c.externalIV = newExt
		if c.fileIV != 0 {
			c.warnf("SetIV: adopting external IV on a file with an already-materialized fileIV")
		}
		return nil
	}

	if c.headerLen == 0 {
		// No per-file IV header to rewrite; just accept the new tweak.
		c.externalIV = newExt
		return nil
	}

	if !c.raw.IsWritable() {
		if reopenForWrite != nil {
			if err := reopenForWrite(); err != nil {
				return err
			}
		}
	}
	if err := c.initHeader(); err != nil {
		return err
	}

	prevExt := c.externalIV
	c.externalIV = newExt
	if err := c.writeHeaderLocked(); err != nil {
		c.externalIV = prevExt
		return err
	}
	return nil
}
