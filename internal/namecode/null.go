package namecode

import "syscall"

// NullCoder passes names through unencoded, for vaults that only want
// content encryption. It never chains: there's no ciphertext to fold an IV
// from.
type NullCoder struct{}

var _ Coder = NullCoder{}

func (NullCoder) IsChainedNameIV() bool { return false }

func (NullCoder) EncodeName(plainName string, iv uint64) (string, uint64) {
	return plainName, iv
}

func (NullCoder) DecodeName(cipherName string, iv uint64) (string, uint64, error) {
	if cipherName == "" || isDotOrDotDot(cipherName) {
		return "", iv, syscall.EBADMSG
	}
	return cipherName, iv, nil
}
