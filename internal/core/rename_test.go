package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-vaultfs/vaultfs/internal/namecode"
)

// Chained-IV naming is the path genRenameList exercises; NullCoder (used by
// every other rename test) reports IsChainedNameIV()==false and skips it
// entirely. This renames a directory with a nested subtree under it, which
// only succeeds if every descendant is re-encoded in place under its
// existing parent rather than joined onto the not-yet-created destination.
func TestRenameDirectoryWithChainedIVMovesWholeSubtree(t *testing.T) {
	cfg := testConfig(t)
	hfs := newFakeHostFS(t)
	coder := namecode.NewBlockCoder(cfg.Core, true)
	d := NewDirNode(NewContext(), hfs, cfg, coder, "/")

	require.NoError(t, d.Mkdir("/dir", 0755))
	require.NoError(t, d.Mkdir("/dir/sub", 0755))
	node, err := d.Create("/dir/sub/file.txt", true, 0644)
	require.NoError(t, err)
	require.NoError(t, node.Write(0, []byte("payload")))

	require.NoError(t, d.Rename("/dir", "/moved"))

	entries, err := d.OpenDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "moved", entries[0].Name)
	require.True(t, entries[0].IsDir)

	subEntries, err := d.OpenDir("/moved")
	require.NoError(t, err)
	require.Len(t, subEntries, 1)
	require.Equal(t, "sub", subEntries[0].Name)

	fileEntries, err := d.OpenDir("/moved/sub")
	require.NoError(t, err)
	require.Len(t, fileEntries, 1)
	require.Equal(t, "file.txt", fileEntries[0].Name)

	// The node opened before the rename keeps its host handle across it,
	// same as a plain file rename; content must still round-trip.
	out := make([]byte, 7)
	n, err := node.Read(0, out)
	require.NoError(t, err)
	require.Equal(t, "payload", string(out[:n]))

	require.Nil(t, d.ctx.LookupNode("/dir/sub/file.txt"))
	require.Same(t, node, d.ctx.LookupNode("/moved/sub/file.txt"))
}

// A rename that fails partway must leave the tree exactly as it was: every
// already-applied entry gets undone in reverse order.
func TestRenameDirectoryWithChainedIVUndoesOnFailure(t *testing.T) {
	cfg := testConfig(t)
	hfs := newFakeHostFS(t)
	coder := namecode.NewBlockCoder(cfg.Core, true)
	d := NewDirNode(NewContext(), hfs, cfg, coder, "/")

	require.NoError(t, d.Mkdir("/dir", 0755))
	require.NoError(t, d.Mkdir("/dir/sub", 0755))
	_, err := d.Create("/dir/sub/file.txt", true, 0644)
	require.NoError(t, err)

	// Descendants get renamed in place first; only the final, top-level
	// entry actually moves the subtree. Fail exactly that one so the undo
	// path has to reverse every already-applied descendant rename.
	dirCipher, _, err := d.apiToInternal("/dir")
	require.NoError(t, err)
	hfs.failRenameFrom = dirCipher

	err = d.Rename("/dir", "/moved")
	require.Error(t, err)

	// The subtree must still be reachable at its original location.
	subEntries, err := d.OpenDir("/dir")
	require.NoError(t, err)
	require.Len(t, subEntries, 1)
	require.Equal(t, "sub", subEntries[0].Name)

	fileEntries, err := d.OpenDir("/dir/sub")
	require.NoError(t, err)
	require.Len(t, fileEntries, 1)
	require.Equal(t, "file.txt", fileEntries[0].Name)
}
