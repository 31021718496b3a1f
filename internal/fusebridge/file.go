package fusebridge

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/go-vaultfs/vaultfs/internal/core"
)

func fileModeFromUnix(mode uint32) os.FileMode {
	return os.FileMode(mode).Perm()
}

// vaultFile is the FileHandle backing an open regular file: a thin
// wrapper around core.FileNode's Read/Write/Truncate/Sync.
type vaultFile struct {
	node *core.FileNode
}

var _ = (fs.FileHandle)((*vaultFile)(nil))
var _ = (fs.FileReader)((*vaultFile)(nil))
var _ = (fs.FileWriter)((*vaultFile)(nil))
var _ = (fs.FileFlusher)((*vaultFile)(nil))
var _ = (fs.FileFsyncer)((*vaultFile)(nil))

func (f *vaultFile) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := f.node.Read(off, dest)
	if err != nil {
		return nil, errnoFrom(err)
	}
	return fuse.ReadResultData(dest[:n]), fs.OK
}

func (f *vaultFile) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if err := f.node.Write(off, data); err != nil {
		return 0, errnoFrom(err)
	}
	return uint32(len(data)), fs.OK
}

func (f *vaultFile) Flush(ctx context.Context) syscall.Errno {
	return errnoFrom(f.node.Sync(false))
}

func (f *vaultFile) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return errnoFrom(f.node.Sync(flags != 0))
}

func openFlags(flags uint32) (writable, truncate bool) {
	acc := flags & syscall.O_ACCMODE
	writable = acc == syscall.O_WRONLY || acc == syscall.O_RDWR
	truncate = flags&syscall.O_TRUNC != 0
	return
}

func (n *vaultNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	writable, truncate := openFlags(flags)
	node, err := n.root.Dir.OpenNode(n.path, writable, false)
	if err != nil {
		return nil, 0, errnoFrom(err)
	}
	if truncate {
		if err := node.Truncate(0); err != nil {
			return nil, 0, errnoFrom(err)
		}
	}
	return &vaultFile{node: node}, 0, fs.OK
}

func (n *vaultNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := n.childPath(name)
	node, err := n.root.Dir.Create(child, true, fileModeFromUnix(mode))
	if err != nil {
		return nil, nil, 0, errnoFrom(err)
	}
	attrs, err := node.GetAttr()
	if err == nil {
		attrsToFuse(attrs, &out.Attr)
	}
	return n.newChild(name, false), &vaultFile{node: node}, 0, fs.OK
}

func (n *vaultNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.childPath(name)
	if err := n.root.Dir.Mkdir(child, fileModeFromUnix(mode)); err != nil {
		return nil, errnoFrom(err)
	}
	attrs, err := n.root.Dir.GetAttrs(child)
	if err == nil {
		attrsToFuse(attrs, &out.Attr)
	}
	return n.newChild(name, true), fs.OK
}

func (n *vaultNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoFrom(n.root.Dir.Unlink(n.childPath(name)))
}

func (n *vaultNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoFrom(n.root.Dir.Rmdir(n.childPath(name)))
}

func (n *vaultNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	dst, ok := newParent.(*vaultNode)
	if !ok {
		return syscall.EXDEV
	}
	return errnoFrom(n.root.Dir.Rename(n.childPath(name), dst.childPath(newName)))
}

func (n *vaultNode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.childPath(name)
	if err := n.root.Dir.Symlink(target, child); err != nil {
		return nil, errnoFrom(err)
	}
	attrs, err := n.root.Dir.GetAttrs(child)
	if err == nil {
		attrsToFuse(attrs, &out.Attr)
	}
	return n.newChild(name, false), fs.OK
}

func (n *vaultNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.root.Dir.Readlink(n.path)
	if err != nil {
		return nil, errnoFrom(err)
	}
	return []byte(target), fs.OK
}

func (n *vaultNode) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	src, ok := target.(*vaultNode)
	if !ok {
		return nil, syscall.EXDEV
	}
	child := n.childPath(name)
	if err := n.root.Dir.Link(src.path, child); err != nil {
		return nil, errnoFrom(err)
	}
	attrs, err := n.root.Dir.GetAttrs(child)
	if err == nil {
		attrsToFuse(attrs, &out.Attr)
	}
	return n.newChild(name, false), fs.OK
}
