package core

import (
	"os"
	"path"
	"syscall"

	"github.com/go-vaultfs/vaultfs/internal/namecode"
)

// maxCipherBasename is the host filesystem's own basename limit. Encoded
// names that would exceed it are stored via the long-name sidecar scheme
// instead of directly as a basename.
const maxCipherBasename = 255

// encodeBasename encodes one plaintext component under parentIV and, if
// the result is too long for the host filesystem, returns the long-name
// content basename instead while writing the real ciphertext name into a
// sidecar file alongside it.
func (d *DirNode) encodeBasename(cipherDir, plainName string, parentIV uint64) (basename string, nextIV uint64, err error) {
	encoded, next := d.coder.EncodeName(plainName, parentIV)
	if len(encoded) <= maxCipherBasename {
		return encoded, next, nil
	}
	content := namecode.HashLongName(encoded)
	sidecar := namecode.SidecarName(content)
	if err := d.hostFS.WriteFile(path.Join(cipherDir, sidecar), []byte(encoded)); err != nil {
		return "", 0, err
	}
	return content, next, nil
}

// Mkdir creates a plaintext directory.
func (d *DirNode) Mkdir(plainPath string, mode os.FileMode) error {
	parentPlain, base := path.Split(path.Clean(plainPath))
	parentCipher, parentIV, err := d.apiToInternal(parentPlain)
	if err != nil {
		return err
	}
	basename, _, err := d.encodeBasename(parentCipher, base, parentIV)
	if err != nil {
		return err
	}
	return d.hostFS.Mkdir(path.Join(parentCipher, basename), mode)
}

// Rmdir removes a plaintext directory. The directory must be empty on the
// host side already; no recursive emptiness check happens here.
func (d *DirNode) Rmdir(plainPath string) error {
	cipherPath, _, err := d.apiToInternal(plainPath)
	if err != nil {
		return err
	}
	return d.hostFS.Rmdir(cipherPath)
}

// Create opens (creating if necessary) a plaintext file and registers its
// FileNode, handling the long-name sidecar scheme transparently.
func (d *DirNode) Create(plainPath string, requestWrite bool, mode os.FileMode) (*FileNode, error) {
	parentPlain, base := path.Split(path.Clean(plainPath))
	parentCipher, parentIV, err := d.apiToInternal(parentPlain)
	if err != nil {
		return nil, err
	}
	basename, iv, err := d.encodeBasename(parentCipher, base, parentIV)
	if err != nil {
		return nil, err
	}
	cipherPath := path.Join(parentCipher, basename)

	d.mu.Lock()
	node := d.ctx.LookupNode(plainPath)
	if node == nil {
		node = newFileNode(d.cfg, d.hostFS, d.ctx, plainPath, cipherPath)
		node.cipher.PresetIV(0)
		if d.coder.IsChainedNameIV() {
			// A brand-new node always has externalIV == 0, so SetIV takes
			// its no-op-adopt branch here and cannot fail.
			_ = node.cipher.SetIV(iv, nil)
		}
		d.ctx.TrackNode(plainPath, node)
	}
	d.mu.Unlock()

	if err := node.Open(requestWrite, true); err != nil {
		d.ctx.EraseNode(plainPath)
		return nil, err
	}
	if mode != 0 {
		_ = d.hostFS.Chmod(cipherPath, mode)
	}
	return node, nil
}

// Unlink removes a plaintext file. Refuses with EBUSY if a FileNode for it
// is currently tracked open, matching the "open files can't be unlinked
// out from under their FileIO stack" invariant.
func (d *DirNode) Unlink(plainPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.LookupNode(plainPath) != nil {
		return syscall.EBUSY
	}
	cipherPath, _, err := d.apiToInternal(plainPath)
	if err != nil {
		return err
	}
	if namecode.ClassifyLongName(path.Base(cipherPath)) == namecode.LongNameContent {
		sidecar := path.Join(path.Dir(cipherPath), namecode.SidecarName(path.Base(cipherPath)))
		_ = d.hostFS.DeleteFile(sidecar)
	}
	return d.hostFS.Unlink(cipherPath)
}

// Symlink creates a plaintext symlink whose on-disk target is the
// encrypted form of target, matching FUSE semantics where the link target
// itself carries plaintext content needing its own protection.
func (d *DirNode) Symlink(target, linkPath string) error {
	if d.coder.IsChainedNameIV() {
		// Chained-IV naming ties a name's IV to its position in the tree;
		// a symlink target isn't positioned anywhere, so there's no IV to
		// encode it under.
		return syscall.EACCES
	}
	cipherLink, iv, err := d.apiToInternal(linkPath)
	if err != nil {
		return err
	}
	cipherTarget, _ := d.coder.EncodeName(target, iv)
	return d.hostFS.Symlink(cipherTarget, cipherLink)
}

// Readlink reads and decodes a plaintext symlink's target.
func (d *DirNode) Readlink(plainPath string) (string, error) {
	cipherPath, iv, err := d.apiToInternal(plainPath)
	if err != nil {
		return "", err
	}
	cipherTarget, err := d.hostFS.Readlink(cipherPath)
	if err != nil {
		return "", err
	}
	plain, _, err := d.coder.DecodeName(cipherTarget, iv)
	if err != nil {
		return "", err
	}
	return plain, nil
}

// Link creates a plaintext hard link. Refused under chained-IV naming for
// the same reason as Symlink: a hard link has two parent directories and
// thus two candidate IVs, which breaks the single-IV-per-inode model.
func (d *DirNode) Link(oldPlain, newPlain string) error {
	if d.coder.IsChainedNameIV() {
		return syscall.EACCES
	}
	oldCipher, _, err := d.apiToInternal(oldPlain)
	if err != nil {
		return err
	}
	newCipher, _, err := d.apiToInternal(newPlain)
	if err != nil {
		return err
	}
	return d.hostFS.Link(oldCipher, newCipher)
}

func (d *DirNode) Chmod(plainPath string, mode os.FileMode) error {
	cipherPath, _, err := d.apiToInternal(plainPath)
	if err != nil {
		return err
	}
	return d.hostFS.Chmod(cipherPath, mode)
}

func (d *DirNode) Chown(plainPath string, uid, gid int) error {
	cipherPath, _, err := d.apiToInternal(plainPath)
	if err != nil {
		return err
	}
	return d.hostFS.Chown(cipherPath, uid, gid)
}
