// Package namecode encodes and decodes path components, the NameCoder
// contract DirNode consumes. Four codecs are provided: a primary EME-based
// one (block.go), a CBC-based fallback (stream.go), a deterministic
// AES-SIV alternative (siv.go), and a plaintext passthrough (null.go) used
// by vaults created with plaintext names.
package namecode

import (
	"errors"

	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

// NameMax is the longest plaintext component name accepted, matching the
// common ext4/most-POSIX-filesystem limit.
const NameMax = 255

// ErrInvalidName is returned by Decode when the ciphertext cannot possibly
// be a name this coder produced: wrong length, bad padding, or a decoded
// value containing a path separator or null byte.
var ErrInvalidName = errors.New("namecode: invalid encoded name")

// Coder is the per-component codec DirNode drives while walking a path.
// Chained implementations fold the IV forward: the iv returned from
// encoding/decoding component i is the iv used for component i+1.
// EncodeName/DecodeName are pure functions of (name, iv) — no coder may
// consult any other state.
type Coder interface {
	EncodeName(plainName string, iv uint64) (cipherName string, nextIV uint64)
	DecodeName(cipherName string, iv uint64) (plainName string, nextIV uint64, err error)
	IsChainedNameIV() bool
}

// EncodePath encodes every component of a plaintext path, threading the IV
// forward through *iv exactly as spec.md's NameCoder contract describes.
func EncodePath(c Coder, components []string, iv *uint64) []string {
	out := make([]string, len(components))
	v := *iv
	for i, comp := range components {
		out[i], v = c.EncodeName(comp, v)
	}
	*iv = v
	return out
}

// DecodePath decodes every component of a ciphertext path. On the first
// decode error, the whole call fails — a partially decoded path is useless
// to callers, and a corrupt ciphertext component in the middle of a path
// means everything after it was encoded under an IV we can no longer trust.
func DecodePath(c Coder, components []string, iv *uint64) ([]string, error) {
	out := make([]string, len(components))
	v := *iv
	for i, comp := range components {
		plain, next, err := c.DecodeName(comp, v)
		if err != nil {
			return nil, err
		}
		out[i] = plain
		v = next
	}
	*iv = v
	return out, nil
}

// nextChainIV folds a fresh IV from the raw (pre-base64) ciphertext bytes
// produced for this component, using the vault's keyed MAC. Folding off the
// ciphertext rather than the plaintext keeps the chain a pure function of
// (name, iv) while still depending on everything the name encoder saw.
func nextChainIV(mac cryptocore.MAC, chained bool, iv uint64, cipherBytes []byte) uint64 {
	if !chained {
		return iv
	}
	return mac.Sum64(cipherBytes)
}

func isDotOrDotDot(name string) bool {
	return name == "." || name == ".."
}

func containsInvalidByte(b []byte) bool {
	for _, c := range b {
		if c == 0 || c == '/' {
			return true
		}
	}
	return false
}
