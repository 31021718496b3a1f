package vaultconfig

import (
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
)

const (
	// DefaultLogN is the default scrypt cost parameter. N=2^16 uses 64MB of
	// memory and takes a few seconds on modest hardware.
	DefaultLogN = 16

	minLogN   = 10
	minR      = 8
	minP      = 1
	minSaltLen = 16
)

// ScryptParams holds the scrypt cost parameters and salt used to derive a
// key-wrapping key from a password. Stored verbatim in Config so a vault
// can be opened without guessing what it was created with.
type ScryptParams struct {
	Salt   []byte
	N      int
	R      int
	P      int
	KeyLen int
}

// NewScryptParams returns fresh parameters with a random salt.
func NewScryptParams(logN int) ScryptParams {
	if logN <= 0 {
		logN = DefaultLogN
	}
	return ScryptParams{
		Salt:   cryptocore.RandBytes(32),
		N:      1 << uint(logN),
		R:      8,
		P:      1,
		KeyLen: cryptocore.KeyLen,
	}
}

// DeriveKey runs scrypt with these parameters over password, after
// rejecting parameters weaker than our hardcoded floor — guards against a
// tampered config file silently downgrading the work factor.
func (s ScryptParams) DeriveKey(password string) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return scrypt.Key([]byte(password), s.Salt, s.N, s.R, s.P, s.KeyLen)
}

func (s ScryptParams) validate() error {
	if s.N < 1<<minLogN {
		return fmt.Errorf("vaultconfig: scrypt N=%d is below the minimum", s.N)
	}
	if s.R < minR {
		return fmt.Errorf("vaultconfig: scrypt R=%d is below the minimum", s.R)
	}
	if s.P < minP {
		return fmt.Errorf("vaultconfig: scrypt P=%d is below the minimum", s.P)
	}
	if len(s.Salt) < minSaltLen {
		return fmt.Errorf("vaultconfig: scrypt salt too short (%d bytes)", len(s.Salt))
	}
	if s.KeyLen < cryptocore.KeyLen {
		return fmt.Errorf("vaultconfig: scrypt KeyLen=%d is below the minimum", s.KeyLen)
	}
	return nil
}
