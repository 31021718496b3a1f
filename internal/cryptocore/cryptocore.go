// Package cryptocore provides the concrete cipher, MAC and PRNG primitives
// consumed through capability interfaces (BlockCipher, StreamCipher, MAC,
// PRNG) by the content- and name-encryption layers. The content layers
// (blockio/cipherio/macio) only see the interfaces in crypto_api.go, so a
// primitive can be swapped here without touching them; namecode also uses
// crypto/aes's block size and drives rfjakob/eme over the bare cipher.Block
// in Core.NameRaw.
package cryptocore

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeyLen is the master key length in bytes (AES-256).
	KeyLen = 32
	// ivLen is the tweak length every BlockCipher/StreamCipher implementation
	// in this package expects (128 bits, matching the AES block size).
	ivLen = 16
)

// Core bundles the derived subkeys and the concrete primitives built from
// them. One Core is created per mounted vault and is never mutated again.
//
// Content encryption always uses AES-CBC (full blocks whose length is a
// multiple of 16 bytes) / AES-CTR (the trailing partial block, and full
// blocks of any other length such as MAC-headered ones): this keeps CipherFileIO's on-disk geometry exactly
// plainBS-in, plainBS-out plus the optional 8-byte file header, with no
// per-block expansion, matching the block-geometry invariant in
// blockio/cipherio. SIVBlock is a second, deterministic-and-authenticated
// BlockCipher exposed for namecode's AES-SIV name codec, where names are of
// variable length anyway and the 16-byte synthetic IV overhead is harmless.
type Core struct {
	Block  BlockCipher
	Stream StreamCipher
	MAC    MAC
	PRNG   PRNG

	// NameBlock is a second BlockCipher instance, keyed off a separate
	// subkey, used by namecode's CBC codec (StreamCoder). Content and name
	// encryption intentionally never share a key.
	NameBlock BlockCipher
	// SIVBlock is a deterministic, variable-length-safe BlockCipher used by
	// namecode's alternate AES-SIV codec.
	SIVBlock BlockCipher

	// NameRaw is a bare AES block over the same name subkey, handed to
	// rfjakob/eme's wide-block construction by namecode's primary codec.
	NameRaw cipher.Block
}

// New derives per-purpose subkeys from masterKey via HKDF-SHA256 (matching
// the teacher's internal/cryptocore/hkdf.go) and builds a Core around them.
func New(masterKey []byte) (*Core, error) {
	if len(masterKey) != KeyLen {
		return nil, fmt.Errorf("cryptocore: master key must be %d bytes, got %d", KeyLen, len(masterKey))
	}
	contentKey := hkdfExpand(masterKey, "vaultfs-content", KeyLen)
	nameKey := hkdfExpand(masterKey, "vaultfs-names", KeyLen)
	macKey := hkdfExpand(masterKey, "vaultfs-mac", KeyLen)

	contentBlock, contentStream, err := newAESCipher(contentKey)
	if err != nil {
		return nil, err
	}
	nameBlock, err := newAESBlockCipher(nameKey)
	if err != nil {
		return nil, err
	}
	nameRaw, err := newAESRawBlock(nameKey)
	if err != nil {
		return nil, err
	}
	sivBlock, err := newSIVCipher(contentKey)
	if err != nil {
		return nil, err
	}

	return &Core{
		Block:     contentBlock,
		Stream:    contentStream,
		MAC:       newBlake3MAC(macKey),
		PRNG:      osRandPRNG{},
		NameBlock: nameBlock,
		SIVBlock:  sivBlock,
		NameRaw:   nameRaw,
	}, nil
}

func hkdfExpand(masterKey []byte, info string, outLen int) []byte {
	h := hkdf.Expand(sha256.New, masterKey, []byte(info))
	out := make([]byte, outLen)
	if _, err := h.Read(out); err != nil {
		panic("cryptocore: hkdf expand failed: " + err.Error())
	}
	return out
}
