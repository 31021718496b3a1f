package macio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-vaultfs/vaultfs/internal/blockio"
	"github.com/go-vaultfs/vaultfs/internal/cipherio"
	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
	"github.com/go-vaultfs/vaultfs/internal/rawio"
)

func testCore(t *testing.T) *cryptocore.Core {
	t.Helper()
	key := make([]byte, cryptocore.KeyLen)
	for i := range key {
		key[i] = byte(i + 5)
	}
	c, err := cryptocore.New(key)
	require.NoError(t, err)
	return c
}

const (
	dataBlockSize = 64
	macBytes      = 4
	randBytes     = 2
)

// buildStack wires blockio -> macio -> cipherio -> rawio exactly the way
// core.newFileStack does, over a fresh temp file.
func buildStack(t *testing.T) *blockio.BlockFileIO {
	t.Helper()
	core := testCore(t)
	path := filepath.Join(t.TempDir(), "f")
	raw, err := rawio.Open(path, os.O_RDWR|os.O_CREATE, 0600)
	require.NoError(t, err)

	onDiskBlockSize := int64(dataBlockSize + macBytes + randBytes)
	c := cipherio.New(raw, cipherio.Config{
		BlockSize: onDiskBlockSize,
		PerFileIV: true,
		Block:     core.Block,
		Stream:    core.Stream,
		PRNG:      core.PRNG,
	})
	m := New(c, Config{
		DataBlockSize: dataBlockSize,
		MACBytes:      macBytes,
		RandBytes:     randBytes,
		AllowHoles:    true,
		MAC:           core.MAC,
		PRNG:          core.PRNG,
	})
	return blockio.New(m, dataBlockSize, true)
}

func TestMACStackRoundTrip(t *testing.T) {
	top := buildStack(t)
	plain := bytes.Repeat([]byte("integrity-checked content "), 10) // spans several data blocks

	require.NoError(t, top.Write(0, plain))
	out := make([]byte, len(plain))
	n, err := top.Read(0, out)
	require.NoError(t, err)
	require.Equal(t, len(plain), n)
	require.Equal(t, plain, out)
}

func TestMACStackDetectsTamper(t *testing.T) {
	core := testCore(t)
	path := filepath.Join(t.TempDir(), "f")
	raw, err := rawio.Open(path, os.O_RDWR|os.O_CREATE, 0600)
	require.NoError(t, err)

	onDiskBlockSize := int64(dataBlockSize + macBytes + randBytes)
	c := cipherio.New(raw, cipherio.Config{
		BlockSize: onDiskBlockSize, PerFileIV: true,
		Block: core.Block, Stream: core.Stream, PRNG: core.PRNG,
	})
	m := New(c, Config{
		DataBlockSize: dataBlockSize, MACBytes: macBytes, RandBytes: randBytes,
		AllowHoles: true, MAC: core.MAC, PRNG: core.PRNG,
	})
	top := blockio.New(m, dataBlockSize, true)

	require.NoError(t, top.Write(0, bytes.Repeat([]byte("x"), dataBlockSize)))

	// Flip a byte in the raw ciphertext+MAC block on disk.
	buf := make([]byte, 8)
	_, err = raw.Read(buf, 8)
	require.NoError(t, err)
	buf[0] ^= 0xFF
	_, err = raw.Write(buf, 8)
	require.NoError(t, err)

	// Read through a fresh BlockFileIO: top's single-block cache still holds
	// the block it just wrote and would serve it without touching disk.
	out := make([]byte, dataBlockSize)
	_, err = blockio.New(m, dataBlockSize, true).Read(0, out)
	require.ErrorIs(t, err, ErrMACMismatch)
}

func TestMACStackWarnOnlyReturnsDataDespiteMismatch(t *testing.T) {
	core := testCore(t)
	path := filepath.Join(t.TempDir(), "f")
	raw, err := rawio.Open(path, os.O_RDWR|os.O_CREATE, 0600)
	require.NoError(t, err)

	onDiskBlockSize := int64(dataBlockSize + macBytes + randBytes)
	c := cipherio.New(raw, cipherio.Config{
		BlockSize: onDiskBlockSize, PerFileIV: true,
		Block: core.Block, Stream: core.Stream, PRNG: core.PRNG,
	})
	m := New(c, Config{
		DataBlockSize: dataBlockSize, MACBytes: macBytes, RandBytes: randBytes,
		AllowHoles: true, WarnOnly: true, MAC: core.MAC, PRNG: core.PRNG,
	})
	top := blockio.New(m, dataBlockSize, true)

	plain := bytes.Repeat([]byte("y"), dataBlockSize)
	require.NoError(t, top.Write(0, plain))

	buf := make([]byte, 1)
	_, err = raw.Read(buf, 10)
	require.NoError(t, err)
	buf[0] ^= 0xFF
	_, err = raw.Write(buf, 10)
	require.NoError(t, err)

	// As above, bypass top's cache so the tampered block is really verified.
	out := make([]byte, dataBlockSize)
	n, err := blockio.New(m, dataBlockSize, true).Read(0, out)
	require.NoError(t, err)
	require.Equal(t, dataBlockSize, n)
}
