package blockio

// Read reads up to len(dst) plaintext bytes starting at offset, returning
// the number of bytes actually read (less than len(dst) at EOF).
func (b *BlockFileIO) Read(offset int64, dst []byte) (int, error) {
	length := int64(len(dst))
	if length == 0 {
		return 0, nil
	}
	partial := offset % b.blockSize
	blockIndex := offset - partial

	// Single-block fast path: aligned and fits in one block.
	if partial == 0 && length <= b.blockSize {
		return b.ReadOneBlock(Request{Offset: blockIndex, Data: dst, Len: int(length)})
	}

	var total int64
	tmp := make([]byte, b.blockSize)
	for total < length {
		partial = (offset + total) % b.blockSize
		blockIndex = offset + total - partial
		remaining := length - total

		var readSize int64
		var err error
		if partial == 0 && remaining >= b.blockSize {
			// Aligned full block: read straight into the caller buffer.
			var n int
			n, err = b.ReadOneBlock(Request{Offset: blockIndex, Data: dst[total : total+b.blockSize], Len: int(b.blockSize)})
			readSize = int64(n)
		} else {
			n, rerr := b.ReadOneBlock(Request{Offset: blockIndex, Data: tmp, Len: int(b.blockSize)})
			err = rerr
			readSize = int64(n)
			if readSize > partial {
				copyLen := readSize - partial
				want := remaining
				if copyLen > want {
					copyLen = want
				}
				copy(dst[total:total+copyLen], tmp[partial:partial+copyLen])
			}
		}
		if err != nil {
			extra := minI64(readSize-partial, remaining)
			if extra < 0 {
				extra = 0
			}
			return int(total + extra), err
		}
		// Advance by what the caller actually received this round.
		advance := readSize - partial
		if advance < 0 {
			advance = 0
		}
		if advance > remaining {
			advance = remaining
		}
		total += advance
		if readSize < b.blockSize || readSize <= partial {
			break
		}
	}
	return int(total), nil
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
