package vaultconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-vaultfs/vaultfs/internal/exitcodes"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	flags := Flags{ChainedNameIV: true, MACIntegrity: true, AllowHoles: true}

	require.NoError(t, Create(path, "vaultfs-test", "correct horse", minLogN, flags))

	key, cfg, gotFlags, err := Load(path, "correct horse")
	require.NoError(t, err)
	require.Len(t, key, 32)
	require.Equal(t, uint16(formatVersion), cfg.Version)
	require.Equal(t, flags, gotFlags)
}

func TestLoadRejectsWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	require.NoError(t, Create(path, "vaultfs-test", "right password", minLogN, Flags{}))

	_, _, _, err := Load(path, "wrong password")
	require.Error(t, err)
	exitErr, ok := err.(*exitcodes.Err)
	require.True(t, ok)
	require.Equal(t, exitcodes.PasswordIncorrect, exitErr.Code)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, _, _, err := Load(filepath.Join(t.TempDir(), "nonexistent.conf"), "whatever")
	require.Error(t, err)
}

func TestFlagsRoundTripThroughStrings(t *testing.T) {
	f := Flags{PlaintextNames: true, Reverse: true}
	got := flagsFromStrings(f.toStrings())
	require.Equal(t, f, got)
}

func TestScryptParamsValidateRejectsBelowFloor(t *testing.T) {
	p := NewScryptParams(minLogN)
	require.NoError(t, p.validate())

	tooWeak := p
	tooWeak.N = 1 << (minLogN - 1)
	require.Error(t, tooWeak.validate())

	shortSalt := p
	shortSalt.Salt = p.Salt[:minSaltLen-1]
	require.Error(t, shortSalt.validate())

	lowR := p
	lowR.R = minR - 1
	require.Error(t, lowR.validate())
}

func TestTwoCreatesGetDistinctSalts(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.conf")
	pathB := filepath.Join(dir, "b.conf")
	require.NoError(t, Create(pathA, "vaultfs-test", "same password", minLogN, Flags{}))
	require.NoError(t, Create(pathB, "vaultfs-test", "same password", minLogN, Flags{}))

	_, a, _, err := Load(pathA, "same password")
	require.NoError(t, err)
	_, b, _, err := Load(pathB, "same password")
	require.NoError(t, err)
	require.NotEqual(t, a.ScryptParams.Salt, b.ScryptParams.Salt)
}
