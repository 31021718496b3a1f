// Package rawio is the bottom of the FileIO stack: a byte-addressable file
// over the host OS, with EINTR-retrying positional I/O and a Close that logs
// rather than returns errors. Nothing here knows about encryption;
// cipherio.CipherFileIO, the layer directly above, does.
package rawio

import (
	"errors"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

// maxWriteRetries bounds the positional-write retry loop in Write: a
// partial write that still has not made progress after this many attempts
// is treated as a permanent I/O error rather than retried forever.
const maxWriteRetries = 10

// RawFile wraps an *os.File and exposes the byte-addressable primitives
// that cipherio.CipherFileIO builds on: positional read/write with retry,
// truncate, sync and attribute lookup.
type RawFile struct {
	fd *os.File
	// canWrite records whether fd was opened with a write-capable flag.
	canWrite bool
}

// Open opens path with the given flags/mode, matching RawFile.open in
// spec.md §4.1: a write-capable flag sets canWrite.
func Open(path string, flags int, mode os.FileMode) (*RawFile, error) {
	fd, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return nil, err
	}
	canWrite := flags&(os.O_WRONLY|os.O_RDWR) != 0
	return &RawFile{fd: fd, canWrite: canWrite}, nil
}

// FromFile adopts an already-open *os.File, used when the directory layer
// has done the host-specific openat() dance itself.
func FromFile(fd *os.File, canWrite bool) *RawFile {
	return &RawFile{fd: fd, canWrite: canWrite}
}

// IsWritable reports whether this handle was opened for writing.
func (r *RawFile) IsWritable() bool {
	return r.canWrite
}

// Attrs is the subset of os.FileInfo that higher layers need; kept as its
// own type so cipherio/macio can rewrite Size without fighting os.FileInfo's
// immutability.
type Attrs struct {
	Size  int64
	Mode  os.FileMode
	IsDir bool
}

// GetAttrs fstat()s the underlying descriptor.
func (r *RawFile) GetAttrs() (Attrs, error) {
	fi, err := r.fd.Stat()
	if err != nil {
		return Attrs{}, err
	}
	return Attrs{Size: fi.Size(), Mode: fi.Mode(), IsDir: fi.IsDir()}, nil
}

// Read performs a positional read at offset. EINTR is retried transparently.
func (r *RawFile) Read(data []byte, offset int64) (int, error) {
	for {
		n, err := r.fd.ReadAt(data, offset)
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		return n, err
	}
}

// Write performs a positional write at offset, retrying on EINTR without
// counting against maxWriteRetries, and advancing through partial writes.
// After maxWriteRetries attempts that still leave bytes unwritten, it fails
// with an I/O error — matching RawFile.write in spec.md §4.1.
func (r *RawFile) Write(data []byte, offset int64) (int, error) {
	written := 0
	for attempts := 0; written < len(data); attempts++ {
		if attempts >= maxWriteRetries {
			return written, syscall.EIO
		}
		n, err := r.fd.WriteAt(data[written:], offset+int64(written))
		if errors.Is(err, syscall.EINTR) {
			attempts--
			continue
		}
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Truncate resizes the file. If we hold a writable handle, ftruncate() is
// used, followed by fdatasync() on Linux (matching the teacher's RawFileIO
// truncate behavior of syncing metadata-light after resize). Otherwise falls
// back to a path-level truncate.
func (r *RawFile) Truncate(size int64) error {
	if r.canWrite {
		if err := r.fd.Truncate(size); err != nil {
			return err
		}
		if runtime.GOOS == "linux" {
			return r.Sync(true)
		}
		return nil
	}
	return os.Truncate(r.fd.Name(), size)
}

// Sync flushes the file. dataOnly selects fdatasync()-equivalent behavior
// (skip inode metadata) where the platform supports it.
func (r *RawFile) Sync(dataOnly bool) error {
	if dataOnly && runtime.GOOS == "linux" {
		return unix.Fdatasync(int(r.fd.Fd()))
	}
	return r.fd.Sync()
}

// Fd returns the raw OS file descriptor, for callers that need direct
// syscall access.
func (r *RawFile) Fd() int {
	return int(r.fd.Fd())
}

// Close closes the descriptor. Close errors are logged but non-fatal,
// matching the spec's destructor contract.
func (r *RawFile) Close() {
	if err := r.fd.Close(); err != nil {
		vlog.Warn.Printf("rawio: close failed: %v", err)
	}
}
