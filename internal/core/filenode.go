package core

import (
	"sync"

	"github.com/go-vaultfs/vaultfs/internal/blockio"
	"github.com/go-vaultfs/vaultfs/internal/cipherio"
	"github.com/go-vaultfs/vaultfs/internal/macio"
	"github.com/go-vaultfs/vaultfs/internal/rawio"
	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

// FileNode owns one open file's FileIO stack: MAC (optional) wrapping
// Cipher wrapping Raw. Every I/O-bearing method is serialized by mu, which
// covers the whole stack invocation for this file — independent files
// proceed in parallel, but two callers touching the same file serialize.
type FileNode struct {
	mu sync.Mutex

	cfg    Config
	hostFS HostFS
	ctx    *Context

	pName string
	cName string

	raw    *rawio.RawFile
	cipher *cipherio.CipherFileIO
	io     *blockio.BlockFileIO
}

// newFileStack builds the layered FileIO stack over raw (which may be nil
// for a node that hasn't opened a host handle yet).
//
// macio's per-block header (MAC + random padding) is a layout that gets
// physically persisted in the on-disk ciphertext in forward mode; reverse
// mode's backing file is the user's real plaintext source data, which has
// no such header and isn't being written to in the first place, so macio
// is skipped there — CipherFileIO alone, at the plain data block size,
// synthesizes the ciphertext view straight from raw.
func newFileStack(cfg Config, raw *rawio.RawFile) (*blockio.BlockFileIO, *cipherio.CipherFileIO) {
	onDiskBlockSize := cfg.BlockSize
	if !cfg.Reverse {
		onDiskBlockSize += int64(cfg.MACBytes + cfg.RandBytes)
	}
	c := cipherio.New(raw, cipherio.Config{
		BlockSize: onDiskBlockSize,
		PerFileIV: cfg.PerFileIV,
		Reverse:   cfg.Reverse,
		Block:     cfg.Core.Block,
		Stream:    cfg.Core.Stream,
		PRNG:      cfg.Core.PRNG,
	})

	var backend blockio.Backend = c
	if !cfg.Reverse && (cfg.MACBytes > 0 || cfg.RandBytes > 0) {
		backend = macio.New(c, macio.Config{
			DataBlockSize: cfg.BlockSize,
			MACBytes:      cfg.MACBytes,
			RandBytes:     cfg.RandBytes,
			WarnOnly:      cfg.WarnOnly,
			AllowHoles:    cfg.AllowHoles,
			MAC:           cfg.Core.MAC,
			PRNG:          cfg.Core.PRNG,
		})
	}

	return blockio.New(backend, cfg.BlockSize, cfg.AllowHoles), c
}

// newFileNode is called by DirNode.findOrCreate. The returned node owns no
// host handle yet; Open materializes one lazily.
func newFileNode(cfg Config, hostFS HostFS, ctx *Context, pName, cName string) *FileNode {
	top, c := newFileStack(cfg, nil)
	return &FileNode{
		cfg:    cfg,
		hostFS: hostFS,
		ctx:    ctx,
		pName:  pName,
		cName:  cName,
		cipher: c,
		io:     top,
	}
}

// PlaintextName and CipherName report the node's current path pair.
func (f *FileNode) PlaintextName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pName
}

func (f *FileNode) CipherName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cName
}

// Open ensures a host handle exists with at least the requested access
// mode, reopening for write if the node was previously opened read-only.
func (f *FileNode) Open(requestWrite, create bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openLocked(requestWrite, create)
}

func (f *FileNode) openLocked(requestWrite, create bool) error {
	if f.raw != nil && (f.raw.IsWritable() || !requestWrite) {
		return nil
	}
	raw, err := f.hostFS.OpenFile(f.cName, requestWrite, create)
	if err != nil {
		return err
	}
	if f.raw != nil {
		f.raw.Close()
	}
	f.raw = raw
	f.cipher.SwapRaw(raw)
	return nil
}

// SetName updates the node's plaintext/ciphertext names and its cipher
// stack's external IV together, atomically from the caller's point of
// view: on failure both names are left exactly as they were.
func (f *FileNode) SetName(plainName, cipherName *string, iv uint64, setIVFirst bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	oldPName, oldCName := f.pName, f.cName
	reopen := func() error { return f.openLocked(true, false) }

	if setIVFirst {
		if err := f.cipher.SetIV(iv, reopen); err != nil {
			return err
		}
		if plainName != nil {
			f.pName = *plainName
		}
		if cipherName != nil {
			f.cName = *cipherName
		}
	} else {
		if plainName != nil {
			f.pName = *plainName
		}
		if cipherName != nil {
			f.cName = *cipherName
		}
		if err := f.cipher.SetIV(iv, reopen); err != nil {
			f.pName, f.cName = oldPName, oldCName
			return err
		}
	}

	if plainName != nil && f.pName != oldPName {
		f.ctx.RenameNode(oldPName, f.pName)
	}
	return nil
}

// Read delegates to the stack under the node's lock.
func (f *FileNode) Read(offset int64, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.io.Read(offset, buf)
}

// Write copies buf into a private buffer before handing it to the stack,
// since the cipher layers encrypt/decrypt in place.
func (f *FileNode) Write(offset int64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	private := make([]byte, len(buf))
	copy(private, buf)
	return f.io.Write(offset, private)
}

// Truncate ensures the node is open for write before resizing.
func (f *FileNode) Truncate(size int64) error {
	f.mu.Lock()
	if err := f.openLocked(true, false); err != nil {
		f.mu.Unlock()
		return err
	}
	defer f.mu.Unlock()
	return f.io.Truncate(size)
}

// Sync flushes the underlying file.
func (f *FileNode) Sync(dataOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raw == nil {
		return nil
	}
	return f.io.Sync(dataOnly)
}

// GetAttr reports the node's attributes through the stack's wrapping
// transforms (content-header subtraction, MAC-header subtraction).
func (f *FileNode) GetAttr() (rawio.Attrs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raw == nil {
		if err := f.openLocked(false, false); err != nil {
			return rawio.Attrs{}, err
		}
	}
	return f.io.GetAttrs()
}

// GetSize is a convenience wrapper around GetAttr.
func (f *FileNode) GetSize() (int64, error) {
	attrs, err := f.GetAttr()
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// close releases the host handle, if any. Nothing calls it: a node that
// drops out of Context is simply garbage-collected.
func (f *FileNode) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raw != nil {
		f.raw.Close()
		f.raw = nil
	}
}

func (f *FileNode) warnf(format string, v ...interface{}) {
	vlog.Warn.Printf("core: filenode %s: "+format, append([]interface{}{f.pName}, v...)...)
}
