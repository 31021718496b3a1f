package core

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Reverse mode with MAC integrity requested must still come up: macio is
// skipped entirely for reverse nodes (newFileStack), so this exercises
// CipherFileIO's read-only, header-less path directly against a real
// plaintext source file, with the default (MAC-enabled) Config a mount
// would actually use.
func TestReverseModeReadsPlaintextSourceWithMACEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reverse = true
	cfg.MACBytes = 4
	cfg.RandBytes = 2

	hfs := newFakeHostFS(t)
	plain := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, hfs.WriteFile("/source.txt", plain))
	hfs.files["/source.txt"] = true

	ctx := NewContext()
	node := newFileNode(cfg, hfs, ctx, "/source.txt", "/source.txt")
	require.NoError(t, node.Open(false, false))

	out := make([]byte, len(plain))
	n, err := node.Read(0, out)
	require.NoError(t, err)
	require.Equal(t, len(plain), n)

	// The source file itself must be untouched.
	raw, err := os.ReadFile(hfs.hostPath("/source.txt"))
	require.NoError(t, err)
	require.Equal(t, plain, raw)
}
