// Package vaultconfig reads and writes vaultfs.conf, the on-disk file that
// carries a vault's wrapped master key, its scrypt parameters and its
// feature flags. A vault is unusable without successfully loading this
// file first.
package vaultconfig

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jacobsa/crypto/siv"
	"golang.org/x/crypto/hkdf"

	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
	"github.com/go-vaultfs/vaultfs/internal/exitcodes"
	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

const (
	// DefaultName is the config file name created inside CIPHERDIR.
	DefaultName = "vaultfs.conf"
	// ReverseName is used instead of DefaultName when the vault is mounted
	// in reverse mode, where the config otherwise would sit inside the
	// directory being presented as ciphertext.
	ReverseName = ".vaultfs.reverse.conf"

	formatVersion = 1
	sivWrapKeyLen = 64
)

// Config is the JSON-serialized content of vaultfs.conf.
type Config struct {
	Creator      string
	UUID         string
	Version      uint16
	ScryptParams ScryptParams
	WrappedKey   []byte
	FeatureFlags []string

	filename string
}

// Flags is the decoded, spec-level view of the feature flags stored in a
// Config — Create/Load translate to and from the string slice that
// actually hits disk.
type Flags struct {
	PlaintextNames bool
	AESSIVNames    bool
	ChainedNameIV  bool
	MACIntegrity   bool
	AllowHoles     bool
	Reverse        bool
}

const (
	flagPlaintextNames = "PlaintextNames"
	flagAESSIVNames    = "AESSIVNames"
	flagChainedNameIV  = "ChainedNameIV"
	flagMACIntegrity   = "MACIntegrity"
	flagAllowHoles     = "AllowHoles"
	flagReverse        = "Reverse"
)

func (f Flags) toStrings() []string {
	var out []string
	if f.PlaintextNames {
		out = append(out, flagPlaintextNames)
	}
	if f.AESSIVNames {
		out = append(out, flagAESSIVNames)
	}
	if f.ChainedNameIV {
		out = append(out, flagChainedNameIV)
	}
	if f.MACIntegrity {
		out = append(out, flagMACIntegrity)
	}
	if f.AllowHoles {
		out = append(out, flagAllowHoles)
	}
	if f.Reverse {
		out = append(out, flagReverse)
	}
	return out
}

func flagsFromStrings(flags []string) Flags {
	var f Flags
	for _, s := range flags {
		switch s {
		case flagPlaintextNames:
			f.PlaintextNames = true
		case flagAESSIVNames:
			f.AESSIVNames = true
		case flagChainedNameIV:
			f.ChainedNameIV = true
		case flagMACIntegrity:
			f.MACIntegrity = true
		case flagAllowHoles:
			f.AllowHoles = true
		case flagReverse:
			f.Reverse = true
		}
	}
	return f
}

// Create generates a fresh random master key, wraps it with a password
// derived key via scrypt, and writes the result to filename.
func Create(filename, creator, password string, logN int, flags Flags) error {
	var cfg Config
	cfg.filename = filename
	cfg.Creator = creator
	cfg.Version = formatVersion
	cfg.UUID = uuid.New().String()
	cfg.FeatureFlags = flags.toStrings()

	masterKey := cryptocore.RandBytes(cryptocore.KeyLen)
	defer zero(masterKey)

	cfg.ScryptParams = NewScryptParams(logN)
	wrapped, err := cfg.ScryptParams.wrap(masterKey, password)
	if err != nil {
		return err
	}
	cfg.WrappedKey = wrapped

	return cfg.writeFile()
}

// Load reads filename and unwraps its master key using password. Returns
// the raw master key (caller must pass it to cryptocore.New and then
// discard it) plus the parsed Config and decoded Flags.
func Load(filename, password string) ([]byte, *Config, Flags, error) {
	var cfg Config
	cfg.filename = filename

	js, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, Flags{}, err
	}
	if err := json.Unmarshal(js, &cfg); err != nil {
		vlog.Warn.Printf("vaultconfig: failed to parse %s: %v", filename, err)
		return nil, nil, Flags{}, err
	}
	if cfg.Version != formatVersion {
		return nil, nil, Flags{}, fmt.Errorf("vaultconfig: unsupported on-disk format %d", cfg.Version)
	}

	key, err := cfg.ScryptParams.unwrap(cfg.WrappedKey, password)
	if err != nil {
		vlog.Warn.Printf("vaultconfig: failed to unwrap master key: %v", err)
		return nil, nil, Flags{}, exitcodes.NewErr("password incorrect", exitcodes.PasswordIncorrect)
	}
	return key, &cfg, flagsFromStrings(cfg.FeatureFlags), nil
}

// writeFile writes cfg to a temp file next to its final name, fsyncs, then
// renames into place so a half-written config is never observed.
func (cfg *Config) writeFile() error {
	tmp := cfg.filename + ".tmp"
	fd, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0400)
	if err != nil {
		return err
	}
	js, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		fd.Close()
		os.Remove(tmp)
		return err
	}
	js = append(js, '\n')
	if _, err := fd.Write(js); err != nil {
		fd.Close()
		os.Remove(tmp)
		return err
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, cfg.filename)
}

func sivWrapKey(scryptHash []byte) []byte {
	h := hkdf.Expand(sha256.New, scryptHash, []byte("vaultfs-conf-wrap"))
	out := make([]byte, sivWrapKeyLen)
	if _, err := h.Read(out); err != nil {
		panic("vaultconfig: hkdf expand failed: " + err.Error())
	}
	return out
}

// wrap authenticates and encrypts masterKey under a key derived from
// password via this ScryptParams, using AES-SIV so the wrapped key carries
// its own tamper detection without needing a stored nonce.
func (s ScryptParams) wrap(masterKey []byte, password string) ([]byte, error) {
	hash, err := s.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	defer zero(hash)
	return siv.Encrypt(nil, sivWrapKey(hash), masterKey, nil)
}

func (s ScryptParams) unwrap(wrapped []byte, password string) ([]byte, error) {
	hash, err := s.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	defer zero(hash)
	return siv.Decrypt(sivWrapKey(hash), wrapped, nil)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
