package cryptocore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	k := make([]byte, KeyLen)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	_, err := New(make([]byte, KeyLen-1))
	require.Error(t, err)
}

func TestContentBlockRoundTrip(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	plain := bytes.Repeat([]byte("A"), 4096)
	iv := IVFromU64(42)
	ct, err := c.Block.Encrypt(iv, plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, ct)

	pt, err := c.Block.Decrypt(iv, ct)
	require.NoError(t, err)
	require.Equal(t, plain, pt)
}

func TestContentStreamRoundTrip(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	plain := []byte("a partial trailing block")
	iv := IVFromU64(7)
	ct := c.Stream.Encrypt(iv, plain)
	require.NotEqual(t, plain, ct)
	pt := c.Stream.Decrypt(iv, ct)
	require.Equal(t, plain, pt)
}

func TestSIVBlockRoundTrip(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	plain := []byte("variable-length-name.txt")
	iv := []byte("some-associated-data")
	ct, err := c.SIVBlock.Encrypt(iv, plain)
	require.NoError(t, err)

	pt, err := c.SIVBlock.Decrypt(iv, ct)
	require.NoError(t, err)
	require.Equal(t, plain, pt)
}

func TestSIVBlockDetectsTamper(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	ct, err := c.SIVBlock.Encrypt([]byte("iv"), []byte("hello world"))
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0xFF

	_, err = c.SIVBlock.Decrypt([]byte("iv"), ct)
	require.Error(t, err)
}

func TestMAC64Deterministic(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	data := []byte("folded name ciphertext")
	require.Equal(t, c.MAC.Sum64(data), c.MAC.Sum64(data))
}

func TestMAC64DiffersWithInput(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	a := c.MAC.Sum64([]byte("one"))
	b := c.MAC.Sum64([]byte("two"))
	require.NotEqual(t, a, b)
}

func TestPRNGReturnsRequestedLength(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)
	require.Len(t, c.PRNG.Bytes(16), 16)
	require.Len(t, c.PRNG.Bytes(0), 0)
}

func TestTwoCoresFromSameKeyAgree(t *testing.T) {
	k := testKey()
	c1, err := New(k)
	require.NoError(t, err)
	c2, err := New(k)
	require.NoError(t, err)

	iv := IVFromU64(99)
	ct1, err := c1.Block.Encrypt(iv, bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	pt, err := c2.Block.Decrypt(iv, ct1)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("x"), 4096), pt)
}
