// Package core implements the coordination layer: the host filesystem
// adapter contract, the weak open-file registry, the directory node that
// translates plaintext paths to ciphertext ones, and the file node that
// owns each open file's MAC/Cipher/Raw stack.
package core

import (
	"os"
	"time"

	"github.com/pkg/xattr"

	"github.com/go-vaultfs/vaultfs/internal/rawio"
)

// DirEntry is one entry returned by a host directory listing: a raw
// ciphertext basename plus whatever type bit the host could cheaply supply.
type DirEntry struct {
	Name  string
	IsDir bool
}

// HostFS is the external collaborator named in §6 of the on-disk contract:
// a black box providing byte-addressable files, directory enumeration and
// optional POSIX metadata. DirNode never reaches for "os" or "syscall"
// directly — everything it needs from the real filesystem comes through
// this interface, so the coordination logic stays testable against a fake.
type HostFS interface {
	OpenDir(path string) ([]DirEntry, error)
	OpenFile(path string, writable, create bool) (*rawio.RawFile, error)
	Mkdir(path string, mode os.FileMode) error
	Rmdir(path string) error
	Unlink(path string) error
	Rename(oldPath, newPath string) error
	GetAttrs(path string) (rawio.Attrs, error)
	SetTimes(path string, atime, mtime *time.Time) error

	Symlink(target, linkPath string) error
	Readlink(path string) (string, error)
	Link(oldPath, newPath string) error
	Chmod(path string, mode os.FileMode) error
	Chown(path string, uid, gid int) error

	GetXattr(path, name string) ([]byte, error)
	SetXattr(path, name string, data []byte) error
	ListXattr(path string) ([]string, error)
	RemoveXattr(path, name string) error

	// ReadFile/WriteFile/DeleteFile back the long-name sidecar scheme:
	// small, whole-file reads/writes rather than the positional I/O
	// RawFile provides, since sidecars are tiny and never reopened.
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	DeleteFile(path string) error
}

// posixFS is the concrete HostFS backed by the real OS. EINTR retry for the
// read/write path lives in rawio.RawFile; everything else here is a direct
// syscall, since mkdir/rename/stat don't have gocryptfs's read/write retry
// concerns.
type posixFS struct{}

// NewPosixFS returns the production HostFS implementation.
func NewPosixFS() HostFS { return posixFS{} }

func (posixFS) OpenDir(path string) ([]DirEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	infos, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if name == "." || name == ".." {
			continue
		}
		out = append(out, DirEntry{Name: name, IsDir: fi.IsDir()})
	}
	return out, nil
}

func (posixFS) OpenFile(path string, writable, create bool) (*rawio.RawFile, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
	}
	if create {
		flags |= os.O_CREATE
	}
	return rawio.Open(path, flags, 0600)
}

func (posixFS) Mkdir(path string, mode os.FileMode) error { return os.Mkdir(path, mode) }
func (posixFS) Rmdir(path string) error                   { return os.Remove(path) }
func (posixFS) Unlink(path string) error                  { return os.Remove(path) }
func (posixFS) Rename(oldPath, newPath string) error      { return os.Rename(oldPath, newPath) }

func (posixFS) GetAttrs(path string) (rawio.Attrs, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return rawio.Attrs{}, err
	}
	return rawio.Attrs{Size: fi.Size(), Mode: fi.Mode(), IsDir: fi.IsDir()}, nil
}

func (posixFS) SetTimes(path string, atime, mtime *time.Time) error {
	at, mt := time.Now(), time.Now()
	if atime != nil {
		at = *atime
	}
	if mtime != nil {
		mt = *mtime
	}
	return os.Chtimes(path, at, mt)
}

func (posixFS) Symlink(target, linkPath string) error { return os.Symlink(target, linkPath) }
func (posixFS) Readlink(path string) (string, error)  { return os.Readlink(path) }
func (posixFS) Link(oldPath, newPath string) error    { return os.Link(oldPath, newPath) }
func (posixFS) Chmod(path string, mode os.FileMode) error { return os.Chmod(path, mode) }
func (posixFS) Chown(path string, uid, gid int) error      { return os.Chown(path, uid, gid) }

func (posixFS) GetXattr(path, name string) ([]byte, error)  { return xattr.Get(path, name) }
func (posixFS) SetXattr(path, name string, data []byte) error {
	return xattr.Set(path, name, data)
}
func (posixFS) ListXattr(path string) ([]string, error) { return xattr.List(path) }
func (posixFS) RemoveXattr(path, name string) error     { return xattr.Remove(path, name) }

func (posixFS) ReadFile(path string) ([]byte, error)       { return os.ReadFile(path) }
func (posixFS) WriteFile(path string, data []byte) error   { return os.WriteFile(path, data, 0600) }
func (posixFS) DeleteFile(path string) error                { return os.Remove(path) }
