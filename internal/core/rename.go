package core

import (
	"fmt"
	"path"
	"syscall"
)

// renameEntry is one host-level rename DirNode.Rename must perform to
// carry out a plaintext rename. Directory entries whose chained IV is
// rooted at the renamed subtree need every descendant renamed too, since
// each descendant's ciphertext name was folded from its ancestors' IVs;
// entries are ordered children-before-parent so undo can walk the slice
// in reverse and always find the parent still present.
type renameEntry struct {
	fromCipher, toCipher string
	fromPlain, toPlain   string // plaintext paths, for Context bookkeeping
}

// Rename moves fromPlain to toPlain. Refuses with EBUSY if toPlain is
// currently open — the destination's FileNode, if any, would otherwise be
// left pointing at ciphertext bytes that no longer correspond to it.
//
// Under chained-IV naming, renaming a directory invalidates every
// descendant's IV chain, since each descendant's name was encoded using an
// IV folded from its ancestors. genRenameList walks the subtree collecting
// one renameEntry per descendant — each an in-place basename rename under
// its current, unmoved parent directory — before the top-level rename
// (which actually moves the subtree) is added as the list's last entry.
// A single loop then applies the whole list in order and unwinds it
// entirely on the first failure. This keeps every intermediate rename
// valid: no entry ever targets a destination directory that a later
// entry in the list is responsible for creating.
func (d *DirNode) Rename(fromPlain, toPlain string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.LookupNode(toPlain) != nil {
		return syscall.EBUSY
	}

	fromCipher, _, err := d.apiToInternal(fromPlain)
	if err != nil {
		return err
	}
	toCipher, _, err := d.apiToInternal(toPlain)
	if err != nil {
		return err
	}

	var list []renameEntry
	if d.coder.IsChainedNameIV() {
		attrs, err := d.hostFS.GetAttrs(fromCipher)
		if err == nil && attrs.IsDir {
			list, err = d.genRenameList(fromPlain, toPlain)
			if err != nil {
				return err
			}
		}
	}
	list = append(list, renameEntry{fromCipher: fromCipher, toCipher: toCipher, fromPlain: fromPlain, toPlain: toPlain})

	applied := 0
	for _, e := range list {
		if err := d.hostFS.Rename(e.fromCipher, e.toCipher); err != nil {
			d.undoRename(list[:applied])
			return err
		}
		applied++
	}

	for _, e := range list {
		d.ctx.RenameNode(e.fromPlain, e.toPlain)
	}
	return nil
}

// undoRename reverses a prefix of an already-partially-applied rename
// list, in reverse order so each step's destination is the one most
// recently created.
func (d *DirNode) undoRename(applied []renameEntry) {
	for i := len(applied) - 1; i >= 0; i-- {
		e := applied[i]
		if err := d.hostFS.Rename(e.toCipher, e.fromCipher); err != nil {
			d.warnf("rename: failed to undo %s -> %s: %v", e.toCipher, e.fromCipher, err)
		}
	}
}

// genRenameList recursively walks fromPlain's subtree, renaming each
// descendant's basename *in place* under its current physical parent to
// the name it would have under toPlain's chain, children-before-parent.
// Nothing moves across directories here: the subtree is left exactly
// where it was, just re-encoded. Only the final top-level entry (appended
// by the caller, applied last) renames fromCipher to toCipher and so
// moves the whole already-re-encoded subtree in one step. This mirrors
// the upstream scheme (DirNode.cpp's genRenameList: rename each
// descendant under its existing parent, then one rename moves the
// renamed root) rather than trying to move every descendant straight to
// its destination path, which would require the destination directory to
// already exist before the top-level rename creates it.
//
// Any entry that fails to decode aborts the whole rename — unlike a plain
// directory listing, which tolerates and skips undecodable entries, a
// rename cannot silently leave part of a subtree behind.
func (d *DirNode) genRenameList(fromPlain, toPlain string) ([]renameEntry, error) {
	fromCipher, fromIV, err := d.apiToInternal(fromPlain)
	if err != nil {
		return nil, err
	}
	toCipher, toIV, err := d.apiToInternal(toPlain)
	if err != nil {
		return nil, err
	}

	raw, err := d.hostFS.OpenDir(fromCipher)
	if err != nil {
		return nil, err
	}

	var out []renameEntry
	for _, child := range raw {
		plain, _, err := d.coder.DecodeName(child.Name, fromIV)
		if err != nil {
			return nil, fmt.Errorf("rename: undecodable entry %q under %s: %w", child.Name, fromPlain, err)
		}
		childFromPlain := path.Join(fromPlain, plain)
		childToPlain := path.Join(toPlain, plain)

		if child.IsDir {
			sub, err := d.genRenameList(childFromPlain, childToPlain)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}

		childToCipher, _ := d.coder.EncodeName(plain, toIV)
		out = append(out, renameEntry{
			fromCipher: path.Join(fromCipher, child.Name),
			toCipher:   path.Join(fromCipher, childToCipher),
			fromPlain:  childFromPlain,
			toPlain:    childToPlain,
		})
	}
	return out, nil
}
