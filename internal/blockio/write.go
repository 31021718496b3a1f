package blockio

// Write writes buf at plaintext offset, zero-padding any hole between the
// current end-of-file and offset first. See spec.md §4.2 for the exact
// algorithm this follows.
func (b *BlockFileIO) Write(offset int64, buf []byte) error {
	if offset < 0 {
		return ErrNegativeOffset
	}
	if len(buf) == 0 {
		return nil
	}
	attrs, err := b.backend.GetAttrs()
	if err != nil {
		return err
	}
	size := attrs.Size
	bs := b.blockSize
	lastFileBlock := size / bs
	lastBlockSize := size % bs
	lastNonEmpty := lastFileBlock
	if lastBlockSize == 0 {
		lastNonEmpty--
	}

	if offset > size {
		if err := b.padFile(size, offset, false); err != nil {
			return err
		}
	}

	partial := offset % bs
	blockIndex := offset - partial

	// Fast path: a single aligned, full-block write needs no read-modify-write.
	if partial == 0 && int64(len(buf)) == bs {
		return b.WriteOneBlock(Request{Offset: blockIndex, Data: buf, Len: len(buf)})
	}

	data := buf
	for len(data) > 0 {
		partial = offset % bs
		blockIndex = offset - partial
		toCopy := bs - partial
		if int64(len(data)) < toCopy {
			toCopy = int64(len(data))
		}

		fullBlock := partial == 0 && toCopy == bs
		extendsPastEOF := blockIndex >= (lastFileBlock+1)*bs
		if fullBlock || (extendsPastEOF && partial == 0) {
			if err := b.WriteOneBlock(Request{Offset: blockIndex, Data: data[:toCopy], Len: int(toCopy)}); err != nil {
				return err
			}
		} else {
			tmp := make([]byte, bs)
			validLen := partial + toCopy
			if blockIndex/bs > lastNonEmpty {
				// New block past EOF: the region before "partial" is a
				// hole, zero-fill it rather than reading anything.
			} else {
				n, rerr := b.ReadOneBlock(Request{Offset: blockIndex, Data: tmp, Len: int(bs)})
				if rerr != nil {
					return rerr
				}
				if int64(n) > validLen {
					validLen = int64(n)
				}
			}
			copy(tmp[partial:partial+toCopy], data[:toCopy])
			if err := b.WriteOneBlock(Request{Offset: blockIndex, Data: tmp, Len: int(validLen)}); err != nil {
				return err
			}
		}
		data = data[toCopy:]
		offset += toCopy
	}
	return nil
}

// padFile pads the region [old, newSize) with zeros, matching
// BlockFileIO::padFile in spec.md §4.2.
func (b *BlockFileIO) padFile(old, newSize int64, forceWrite bool) error {
	bs := b.blockSize
	oldBlock := old / bs
	newBlock := newSize / bs

	if oldBlock == newBlock {
		if !forceWrite {
			return nil
		}
		return b.rmwExtendTail(oldBlock*bs, newSize%bs)
	}

	// Complete the old tail block to full length.
	if old%bs != 0 {
		if err := b.rmwExtendTail(oldBlock*bs, bs); err != nil {
			return err
		}
	}
	if !b.allowHoles {
		for idx := oldBlock + 1; idx < newBlock; idx++ {
			zero := make([]byte, bs)
			if err := b.WriteOneBlock(Request{Offset: idx * bs, Data: zero, Len: int(bs)}); err != nil {
				return err
			}
		}
	}
	if forceWrite && newSize%bs > 0 {
		zero := make([]byte, newSize%bs)
		if err := b.WriteOneBlock(Request{Offset: newBlock * bs, Data: zero, Len: len(zero)}); err != nil {
			return err
		}
	}
	return nil
}

// rmwExtendTail reads the block at blockOffset and rewrites it with its
// valid region logically grown to newValidLen (zero-filling the gap).
func (b *BlockFileIO) rmwExtendTail(blockOffset, newValidLen int64) error {
	bs := b.blockSize
	tmp := make([]byte, bs)
	n, err := b.ReadOneBlock(Request{Offset: blockOffset, Data: tmp, Len: int(bs)})
	if err != nil {
		return err
	}
	validLen := int64(n)
	if newValidLen > validLen {
		validLen = newValidLen
	}
	return b.WriteOneBlock(Request{Offset: blockOffset, Data: tmp, Len: int(validLen)})
}

// Truncate resizes the file, matching BlockFileIO::blockTruncate.
func (b *BlockFileIO) Truncate(newSize int64) error {
	attrs, err := b.backend.GetAttrs()
	if err != nil {
		return err
	}
	old := attrs.Size
	bs := b.blockSize

	switch {
	case newSize > old:
		if err := b.backend.Truncate(newSize); err != nil {
			return err
		}
		b.clearCache()
		return b.padFile(old, newSize, true)
	case newSize == old:
		return nil
	case newSize%bs > 0:
		// Shrinking into the middle of a block: the tail block encodes
		// under the old layout, so re-read it before truncating, then
		// rewrite it so its ciphertext matches the new (shorter) layout.
		blockOffset := (newSize / bs) * bs
		tmp := make([]byte, bs)
		n, rerr := b.ReadOneBlock(Request{Offset: blockOffset, Data: tmp, Len: int(bs)})
		if rerr != nil {
			return rerr
		}
		validLen := newSize % bs
		if int64(n) < validLen {
			validLen = int64(n)
		}
		if err := b.backend.Truncate(newSize); err != nil {
			return err
		}
		b.clearCache()
		return b.WriteOneBlock(Request{Offset: blockOffset, Data: tmp[:validLen], Len: int(validLen)})
	default:
		if err := b.backend.Truncate(newSize); err != nil {
			return err
		}
		b.clearCache()
		return nil
	}
}
