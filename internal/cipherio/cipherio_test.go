package cipherio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-vaultfs/vaultfs/internal/blockio"
	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
	"github.com/go-vaultfs/vaultfs/internal/rawio"
)

func testCore(t *testing.T) *cryptocore.Core {
	t.Helper()
	key := make([]byte, cryptocore.KeyLen)
	for i := range key {
		key[i] = byte(i + 1)
	}
	c, err := cryptocore.New(key)
	require.NoError(t, err)
	return c
}

func openTemp(t *testing.T) *rawio.RawFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	raw, err := rawio.Open(path, os.O_RDWR|os.O_CREATE, 0600)
	require.NoError(t, err)
	return raw
}

func TestCipherFileIOHeaderMaterializesOnce(t *testing.T) {
	core := testCore(t)
	raw := openTemp(t)
	c := New(raw, Config{BlockSize: 16, PerFileIV: true, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})

	err := c.WriteOneBlock(blockio.Request{Offset: 0, Data: []byte("0123456789012345"), Len: 16})
	require.NoError(t, err)
	firstIV := c.FileIV()
	require.NotZero(t, firstIV)

	// A second block write must not re-roll the header.
	err = c.WriteOneBlock(blockio.Request{Offset: 16, Data: []byte("abcdefghijklmnop"), Len: 16})
	require.NoError(t, err)
	require.Equal(t, firstIV, c.FileIV())
}

func TestCipherFileIORoundTripThroughBlockIO(t *testing.T) {
	core := testCore(t)
	raw := openTemp(t)
	c := New(raw, Config{BlockSize: 4096, PerFileIV: true, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	top := blockio.New(c, 4096, true)

	plain := bytes.Repeat([]byte("vaultfs round trip data "), 500) // >4096 bytes, spans blocks + partial tail
	require.NoError(t, top.Write(0, plain))

	out := make([]byte, len(plain))
	n, err := top.Read(0, out)
	require.NoError(t, err)
	require.Equal(t, len(plain), n)
	require.Equal(t, plain, out)
}

func TestCipherFileIOGetAttrsSubtractsHeader(t *testing.T) {
	core := testCore(t)
	raw := openTemp(t)
	c := New(raw, Config{BlockSize: 4096, PerFileIV: true, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	top := blockio.New(c, 4096, true)

	require.NoError(t, top.Write(0, []byte("hello")))
	attrs, err := top.GetAttrs()
	require.NoError(t, err)
	require.Equal(t, int64(5), attrs.Size)
}

func TestSetIVWithoutHeaderIsNoop(t *testing.T) {
	core := testCore(t)
	raw := openTemp(t)
	c := New(raw, Config{BlockSize: 4096, PerFileIV: false, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	err := c.SetIV(123, nil)
	require.NoError(t, err)
}

// Reverse mode presents an encrypted view over plaintext already sitting
// on disk: reading it must produce exactly the ciphertext a forward-mode
// CipherFileIO would have written for the same plaintext and IV.
func TestReverseModeMatchesForwardCiphertext(t *testing.T) {
	core := testCore(t)
	plain := []byte("0123456789012345")

	rawFwd := openTemp(t)
	fwd := New(rawFwd, Config{BlockSize: 16, PerFileIV: false, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	fwd.PresetIV(9)
	require.NoError(t, fwd.WriteOneBlock(blockio.Request{Offset: 0, Data: append([]byte{}, plain...), Len: 16}))
	wantCT := make([]byte, 16)
	_, err := rawFwd.Read(wantCT, 0)
	require.NoError(t, err)

	rawRev := openTemp(t)
	_, err = rawRev.Write(plain, 0)
	require.NoError(t, err)
	rev := New(rawRev, Config{BlockSize: 16, PerFileIV: false, Reverse: true, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	rev.PresetIV(9)

	got := make([]byte, 16)
	n, err := rev.ReadOneBlock(blockio.Request{Offset: 0, Data: got, Len: 16})
	require.NoError(t, err)
	require.Equal(t, 16, n)
	require.Equal(t, wantCT, got)
}

// Reverse mode with PerFileIV requested must still treat raw as a headerless,
// read-only plaintext file: PerFileIV is a forward-mode-only knob there, and
// must not shift raw offsets by HeaderLen or write an IV header into the
// user's source file.
func TestReverseModeWithPerFileIVNeverTouchesRawHeader(t *testing.T) {
	core := testCore(t)
	plain := []byte("0123456789012345")

	rawRev := openTemp(t)
	_, err := rawRev.Write(plain, 0)
	require.NoError(t, err)
	rev := New(rawRev, Config{BlockSize: 16, PerFileIV: true, Reverse: true, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	require.NoError(t, rev.SetIV(9, nil))

	got := make([]byte, 16)
	n, err := rev.ReadOneBlock(blockio.Request{Offset: 0, Data: got, Len: 16})
	require.NoError(t, err)
	require.Equal(t, 16, n)

	// raw must be byte-for-byte untouched: no header written, no bytes
	// consumed as a bogus fileIV.
	attrs, err := rawRev.GetAttrs()
	require.NoError(t, err)
	require.Equal(t, int64(16), attrs.Size)
	rawContent := make([]byte, 16)
	_, err = rawRev.Read(rawContent, 0)
	require.NoError(t, err)
	require.Equal(t, plain, rawContent)

	// Must match the same forward ciphertext as the PerFileIV:false case,
	// proving PerFileIV didn't introduce an 8-byte offset shift.
	rawFwd := openTemp(t)
	fwd := New(rawFwd, Config{BlockSize: 16, PerFileIV: false, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})
	require.NoError(t, fwd.SetIV(9, nil))
	require.NoError(t, fwd.WriteOneBlock(blockio.Request{Offset: 0, Data: append([]byte{}, plain...), Len: 16}))
	wantCT := make([]byte, 16)
	_, err = rawFwd.Read(wantCT, 0)
	require.NoError(t, err)
	require.Equal(t, wantCT, got)

	// A write attempt must be refused outright rather than corrupting the
	// source file.
	err = rev.WriteOneBlock(blockio.Request{Offset: 0, Data: append([]byte{}, plain...), Len: 16})
	require.ErrorIs(t, err, ErrReverseWrite)
}

// A source file shorter than HeaderLen used to trip initHeader's "fresh
// file" branch in reverse mode, writing a rolled IV straight into the
// user's source file. It must now come back byte-for-byte untouched.
func TestReverseModeShortSourceFileUntouched(t *testing.T) {
	core := testCore(t)
	plain := []byte("hi")

	rawRev := openTemp(t)
	_, err := rawRev.Write(plain, 0)
	require.NoError(t, err)
	rev := New(rawRev, Config{BlockSize: 16, PerFileIV: true, Reverse: true, Block: core.Block, Stream: core.Stream, PRNG: core.PRNG})

	got := make([]byte, 2)
	n, err := rev.ReadOneBlock(blockio.Request{Offset: 0, Data: got, Len: 2})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	attrs, err := rawRev.GetAttrs()
	require.NoError(t, err)
	require.Equal(t, int64(2), attrs.Size)
	rawContent := make([]byte, 2)
	_, err = rawRev.Read(rawContent, 0)
	require.NoError(t, err)
	require.Equal(t, plain, rawContent)
}
