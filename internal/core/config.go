package core

import "github.com/go-vaultfs/vaultfs/internal/cryptocore"

// Config is the frozen, process-wide set of parameters every FileNode and
// DirNode in a mounted vault shares. It is built once by the command
// (cmd/vaultfs, cmd/vaultfsck) from the flags vaultconfig loads, and
// never mutated afterward — per spec.md §9's design note, configuration is
// modeled as an immutable shared handle, not something any call site can
// tweak at runtime.
type Config struct {
	Core *cryptocore.Core

	// BlockSize is the user-visible plaintext block size: spec.md's
	// "blockSize" when MAC is disabled, or "dataBlockSize" when it's
	// enabled. blockio.BlockFileIO is always configured with this value.
	BlockSize int64
	PerFileIV bool
	MACBytes  int
	RandBytes int
	WarnOnly  bool

	AllowHoles bool
	Reverse    bool

	ChainedNameIV bool
}
