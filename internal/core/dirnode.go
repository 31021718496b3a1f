package core

import (
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-vaultfs/vaultfs/internal/namecode"
	"github.com/go-vaultfs/vaultfs/internal/rawio"
	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

// DirNode owns the mapping between plaintext and ciphertext paths. A
// single mutex serializes the methods that consult or change the open-file
// map: OpenNode, Create, Unlink and Rename (the recursive rename holds it for
// its whole multi-step duration). The remaining operations (Mkdir, Rmdir,
// Symlink, Link, Chmod, Chown and the like) translate the path and call the
// host without taking it.
type DirNode struct {
	mu sync.Mutex

	ctx    *Context
	hostFS HostFS
	cfg    Config
	coder  namecode.Coder

	// rootDir is the ciphertext directory everything is encoded under.
	rootDir string
}

// NewDirNode constructs the root of a mounted vault. rootDir is the
// ciphertext storage directory on the host; the plaintext view is always
// rooted at "/".
func NewDirNode(ctx *Context, hostFS HostFS, cfg Config, coder namecode.Coder, rootDir string) *DirNode {
	d := &DirNode{ctx: ctx, hostFS: hostFS, cfg: cfg, coder: coder, rootDir: rootDir}
	ctx.SetRoot(d)
	return d
}

func splitPlain(plainPath string) []string {
	trimmed := strings.Trim(path.Clean("/"+plainPath), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// apiToInternal translates a plaintext path into its ciphertext path and
// the chained IV that encoding its final component produced, mirroring
// DirNode::apiToInternal.
func (d *DirNode) apiToInternal(plainPath string) (cipherPath string, iv uint64, err error) {
	comps := splitPlain(plainPath)
	var v uint64
	encoded := namecode.EncodePath(d.coder, comps, &v)
	cipherPath = d.rootDir
	for _, c := range encoded {
		cipherPath = path.Join(cipherPath, c)
	}
	return cipherPath, v, nil
}

// decodeCipherSuffix decodes a ciphertext path that lives under d.rootDir
// back into its plaintext form, used for symlink target decryption.
func (d *DirNode) decodeCipherSuffix(cipherPath string) (string, error) {
	rel := strings.TrimPrefix(cipherPath, d.rootDir)
	comps := strings.Split(strings.Trim(rel, "/"), "/")
	if len(comps) == 1 && comps[0] == "" {
		return "/", nil
	}
	var v uint64
	plain, err := namecode.DecodePath(d.coder, comps, &v)
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(plain, "/"), nil
}

// findOrCreate returns the live FileNode for plainPath, creating and
// registering one if none is tracked yet.
func (d *DirNode) findOrCreate(plainPath string) (*FileNode, error) {
	if n := d.ctx.LookupNode(plainPath); n != nil {
		return n, nil
	}
	cipherPath, iv, err := d.apiToInternal(plainPath)
	if err != nil {
		return nil, err
	}
	node := newFileNode(d.cfg, d.hostFS, d.ctx, plainPath, cipherPath)
	node.cipher.PresetIV(0)
	if d.coder.IsChainedNameIV() {
		// A brand-new node always has externalIV == 0, so SetIV takes its
		// no-op-adopt branch here and cannot fail.
		_ = node.cipher.SetIV(iv, nil)
	}
	d.ctx.TrackNode(plainPath, node)
	return node, nil
}

// OpenNode combines findOrCreate with Open: if the open fails the node is
// not retained (Context never sees a node that couldn't be opened).
func (d *DirNode) OpenNode(plainPath string, requestWrite, create bool) (*FileNode, error) {
	d.mu.Lock()
	node, err := d.findOrCreate(plainPath)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := node.Open(requestWrite, create); err != nil {
		return nil, err
	}
	return node, nil
}

// GetAttrs stats plainPath and applies the content/MAC size-wrapping
// transforms. Symlinks report the length of their decrypted target.
func (d *DirNode) GetAttrs(plainPath string) (rawio.Attrs, error) {
	cipherPath, _, err := d.apiToInternal(plainPath)
	if err != nil {
		return rawio.Attrs{}, err
	}
	attrs, err := d.hostFS.GetAttrs(cipherPath)
	if err != nil {
		return rawio.Attrs{}, err
	}
	if attrs.IsDir {
		return attrs, nil
	}
	if attrs.Mode&os.ModeSymlink != 0 {
		target, err := d.Readlink(plainPath)
		if err == nil {
			attrs.Size = int64(len(target))
		}
		return attrs, nil
	}
	// Reverse mode's raw file is the plaintext source itself: no fileIV
	// header, no MAC layer (newFileStack skips macio there too), so the
	// raw size already is the exposed size.
	if d.cfg.Reverse {
		return attrs, nil
	}
	headerLen := int64(0)
	if d.cfg.PerFileIV {
		headerLen = 8
	}
	macHeader := int64(d.cfg.MACBytes + d.cfg.RandBytes)
	attrs.Size = wrapSize(attrs.Size, d.cfg.BlockSize, headerLen, macHeader)
	return attrs, nil
}

// wrapSize inverts the on-disk size transforms content+MAC encoding apply,
// without needing a live FileNode — used for plain stat() calls on files
// nobody has open.
func wrapSize(raw, dataBlockSize, headerLen, macHeader int64) int64 {
	size := raw
	if headerLen > 0 {
		size -= headerLen
		if size < 0 {
			size = 0
		}
	}
	if macHeader > 0 {
		bs := dataBlockSize + macHeader
		blockNum := (size + bs - 1) / bs
		size -= blockNum * macHeader
		if size < 0 {
			size = 0
		}
	}
	return size
}

func (d *DirNode) warnf(format string, v ...interface{}) {
	vlog.Warn.Printf("core: dirnode: "+format, v...)
}
