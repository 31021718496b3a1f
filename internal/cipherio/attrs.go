package cipherio

import "github.com/go-vaultfs/vaultfs/internal/rawio"

// GetAttrs reports the plaintext size: the raw on-disk size minus the
// per-file IV header, if any. In reverse mode New forces headerLen to 0, so
// the ciphertext view has the same size as the plaintext source.
func (c *CipherFileIO) GetAttrs() (rawio.Attrs, error) {
	attrs, err := c.raw.GetAttrs()
	if err != nil {
		return attrs, err
	}
	if attrs.IsDir {
		return attrs, nil
	}
	if c.reverse {
		attrs.Size += c.headerLen
	} else {
		attrs.Size -= c.headerLen
		if attrs.Size < 0 {
			attrs.Size = 0
		}
	}
	return attrs, nil
}

// Truncate resizes the plaintext view to newSize, translating to the raw
// on-disk size by adding back the header length (forward mode); in reverse
// mode headerLen is 0 and the size passes through unchanged.
func (c *CipherFileIO) Truncate(newSize int64) error {
	c.mu.Lock()
	// A truncate to a nonzero size on a file with no materialized header
	// still needs one, so the first block's tweak is well defined.
	if newSize > 0 {
		if err := c.initHeader(); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	headerMaterialized := c.fileIV != 0
	c.mu.Unlock()

	rawSize := newSize
	switch {
	case c.reverse:
		rawSize -= c.headerLen
		if rawSize < 0 {
			rawSize = 0
		}
	case newSize == 0 && !headerMaterialized:
		// Truncating to 0 a file whose header was never written must not
		// fabricate headerLen zero bytes in its place: a later initHeader
		// would find raw's size >= headerLen and decrypt those zero bytes
		// as if they were a real (if corrupt) on-disk header.
		rawSize = 0
	default:
		rawSize += c.headerLen
	}
	return c.raw.Truncate(rawSize)
}

// Sync flushes the underlying file; content encryption has no buffering of
// its own beyond what BlockFileIO's single-block cache already handles.
func (c *CipherFileIO) Sync(dataOnly bool) error {
	return c.raw.Sync(dataOnly)
}
