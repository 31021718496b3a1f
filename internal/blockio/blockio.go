// Package blockio aligns arbitrary (offset, length) read/write requests onto
// fixed-size blocks and performs the read-modify-write needed for partial
// blocks. It knows nothing about encryption: the Backend it wraps (in
// practice cipherio.CipherFileIO) is the one that turns a block-aligned
// request into ciphertext on disk.
package blockio

import (
	"errors"
	"io"

	"github.com/go-vaultfs/vaultfs/internal/rawio"
)

// ErrNegativeOffset is returned by Write when offset < 0.
var ErrNegativeOffset = errors.New("blockio: negative offset")

// Request is a single block-sized operation against the Backend: Offset is
// always a multiple of BlockSize, and Data/Len describe the payload — for a
// read, Data is the destination buffer (capacity >= BlockSize) and Len is
// how many bytes the caller wants back; for a write, Data[:Len] is what
// should land on disk.
type Request struct {
	Offset int64
	Data   []byte
	Len    int
}

// Backend is the layer directly below BlockFileIO — cipherio.CipherFileIO in
// the normal stack. Exactly one full block is ever asked for at a time.
type Backend interface {
	ReadOneBlock(req Request) (int, error)
	WriteOneBlock(req Request) error
	GetAttrs() (rawio.Attrs, error)
	Truncate(size int64) error
	Sync(dataOnly bool) error
}

// cacheEntry remembers the single most recently touched block, exactly as
// spec.md §4.2 describes: "an owned single-block scratch buffer recording
// {offset, validLen}".
type cacheEntry struct {
	offset   int64
	validLen int
	data     []byte
}

// BlockFileIO is the block-alignment layer of the FileIO stack.
type BlockFileIO struct {
	backend    Backend
	blockSize  int64
	allowHoles bool
	cache      cacheEntry
}

// New wraps backend with block-alignment logic. allowHoles controls whether
// padFile zero-fills intermediate blocks (false) or leaves them as a sparse
// hole for the backend to represent however it likes (true).
func New(backend Backend, blockSize int64, allowHoles bool) *BlockFileIO {
	return &BlockFileIO{
		backend:    backend,
		blockSize:  blockSize,
		allowHoles: allowHoles,
		cache:      cacheEntry{data: make([]byte, blockSize)},
	}
}

func (b *BlockFileIO) clearCache() {
	b.cache.offset = 0
	b.cache.validLen = 0
}

// ReadOneBlock serves from the single-block cache when possible, otherwise
// reads a full block from the backend and caches it.
func (b *BlockFileIO) ReadOneBlock(req Request) (int, error) {
	if req.Offset == b.cache.offset && b.cache.validLen > 0 {
		n := b.cache.validLen
		if n > req.Len {
			n = req.Len
		}
		copy(req.Data[:n], b.cache.data[:n])
		return n, nil
	}
	b.clearCache()
	n, err := b.backend.ReadOneBlock(Request{Offset: req.Offset, Data: b.cache.data, Len: int(b.blockSize)})
	// A short block at EOF is the normal last-block case, not a failure:
	// the caller asked for blockSize bytes and the file simply has fewer.
	// Swallow it here so every caller above (blockio.Read's two paths,
	// fusebridge's vaultFile.Read) sees a plain successful short read.
	if err == io.EOF {
		err = nil
	}
	if err != nil && n == 0 {
		return 0, err
	}
	b.cache.offset = req.Offset
	b.cache.validLen = n
	if n > req.Len {
		n = req.Len
	}
	copy(req.Data[:n], b.cache.data[:n])
	return n, err
}

// WriteOneBlock updates the cache so a subsequent read observes the new
// data, then delegates to the backend. On backend failure the cache is
// cleared rather than left holding data that never made it to disk.
func (b *BlockFileIO) WriteOneBlock(req Request) error {
	copy(b.cache.data[:req.Len], req.Data[:req.Len])
	b.cache.offset = req.Offset
	b.cache.validLen = req.Len
	if err := b.backend.WriteOneBlock(req); err != nil {
		b.clearCache()
		return err
	}
	return nil
}

// GetAttrs and Sync just forward to the backend; BlockFileIO does not
// transform sizes (cipherio/macio do). Truncate (write.go) is not a plain
// forward: it rewrites the tail block or pads the file around the backend's
// resize.
func (b *BlockFileIO) GetAttrs() (rawio.Attrs, error) { return b.backend.GetAttrs() }
func (b *BlockFileIO) Sync(dataOnly bool) error       { return b.backend.Sync(dataOnly) }
