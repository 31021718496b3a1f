// Package fusebridge mounts a vault over FUSE using go-fuse/v2's
// InodeEmbedder node API, translating each FUSE callback into a call
// against internal/core's DirNode/FileNode. It knows nothing about
// encryption; every plaintext path it hands to core.DirNode is already
// fully decoded.
package fusebridge

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/go-vaultfs/vaultfs/internal/core"
	"github.com/go-vaultfs/vaultfs/internal/rawio"
	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

// vaultNode is the single InodeEmbedder type used for both files and
// directories; which operations make sense is decided by the underlying
// DirNode/FileNode call, not by a static type split.
type vaultNode struct {
	fs.Inode

	root *Root
	// path is this node's plaintext path, relative to the vault root
	// ("" for the root itself).
	path string
}

// Root bundles the shared, per-mount state every vaultNode reaches through.
type Root struct {
	Dir *core.DirNode
}

var _ = (fs.InodeEmbedder)((*vaultNode)(nil))
var _ = (fs.NodeLookuper)((*vaultNode)(nil))
var _ = (fs.NodeReaddirer)((*vaultNode)(nil))
var _ = (fs.NodeGetattrer)((*vaultNode)(nil))
var _ = (fs.NodeSetattrer)((*vaultNode)(nil))
var _ = (fs.NodeOpener)((*vaultNode)(nil))
var _ = (fs.NodeCreater)((*vaultNode)(nil))
var _ = (fs.NodeMkdirer)((*vaultNode)(nil))
var _ = (fs.NodeUnlinker)((*vaultNode)(nil))
var _ = (fs.NodeRmdirer)((*vaultNode)(nil))
var _ = (fs.NodeRenamer)((*vaultNode)(nil))
var _ = (fs.NodeSymlinker)((*vaultNode)(nil))
var _ = (fs.NodeReadlinker)((*vaultNode)(nil))
var _ = (fs.NodeLinker)((*vaultNode)(nil))

// Mount mounts root at mountpoint and returns the already-serving
// *fuse.Server; the caller blocks on its Wait until unmount.
func Mount(mountpoint string, dir *core.DirNode, opts *fs.Options) (*fuse.Server, error) {
	root := &Root{Dir: dir}
	rootNode := &vaultNode{root: root, path: ""}
	server, err := fs.Mount(mountpoint, rootNode, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}

func (n *vaultNode) childPath(name string) string {
	if n.path == "" {
		return "/" + name
	}
	return n.path + "/" + name
}

func (n *vaultNode) newChild(name string, isDir bool) *fs.Inode {
	child := &vaultNode{root: n.root, path: n.childPath(name)}
	mode := fuse.S_IFREG
	if isDir {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(context.Background(), child, fs.StableAttr{Mode: uint32(mode)})
}

func attrsToFuse(a rawio.Attrs, out *fuse.Attr) {
	out.Size = uint64(a.Size)
	out.Mode = uint32(a.Mode.Perm())
	switch {
	case a.IsDir:
		out.Mode |= fuse.S_IFDIR
	case a.Mode&os.ModeSymlink != 0:
		out.Mode |= fuse.S_IFLNK
	default:
		out.Mode |= fuse.S_IFREG
	}
	now := uint64(time.Now().Unix())
	out.Mtime, out.Atime, out.Ctime = now, now, now
	out.Blocks = (out.Size + 511) / 512
}

func errnoFrom(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	if os.IsNotExist(err) {
		return syscall.ENOENT
	}
	if os.IsExist(err) {
		return syscall.EEXIST
	}
	if os.IsPermission(err) {
		return syscall.EACCES
	}
	vlog.Warn.Printf("fusebridge: unmapped error: %v", err)
	return syscall.EIO
}

func (n *vaultNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.childPath(name)
	attrs, err := n.root.Dir.GetAttrs(child)
	if err != nil {
		return nil, errnoFrom(err)
	}
	attrsToFuse(attrs, &out.Attr)
	return n.newChild(name, attrs.IsDir), fs.OK
}

func (n *vaultNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.root.Dir.OpenDir(n.path)
	if err != nil {
		return nil, errnoFrom(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fuse.S_IFREG)
		if e.IsDir {
			mode = fuse.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(out), fs.OK
}

func (n *vaultNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attrs, err := n.root.Dir.GetAttrs(n.path)
	if err != nil {
		return errnoFrom(err)
	}
	attrsToFuse(attrs, &out.Attr)
	return fs.OK
}

func (n *vaultNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok {
		node, err := n.root.Dir.OpenNode(n.path, true, false)
		if err != nil {
			return errnoFrom(err)
		}
		if err := node.Truncate(int64(sz)); err != nil {
			return errnoFrom(err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := n.root.Dir.Chmod(n.path, os.FileMode(mode).Perm()); err != nil {
			return errnoFrom(err)
		}
	}
	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		u, g := -1, -1
		if uok {
			u = int(uid)
		}
		if gok {
			g = int(gid)
		}
		if err := n.root.Dir.Chown(n.path, u, g); err != nil {
			return errnoFrom(err)
		}
	}
	return n.Getattr(ctx, f, out)
}
