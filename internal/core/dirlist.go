package core

import (
	"path"

	"github.com/go-vaultfs/vaultfs/internal/namecode"
)

// PlainEntry is one decoded entry in a plaintext directory listing.
type PlainEntry struct {
	Name  string
	IsDir bool
}

// OpenDir lists plainPath, decoding every ciphertext basename back to
// plaintext. Entries that fail to decode are silently skipped — a
// directory listing is best-effort, unlike rename's child walk, which
// must abort on the same failure (see rename.go).
func (d *DirNode) OpenDir(plainPath string) ([]PlainEntry, error) {
	cipherPath, dirIV, err := d.apiToInternal(plainPath)
	if err != nil {
		return nil, err
	}
	raw, err := d.hostFS.OpenDir(cipherPath)
	if err != nil {
		return nil, err
	}

	out := make([]PlainEntry, 0, len(raw))
	for _, e := range raw {
		kind := namecode.ClassifyLongName(e.Name)
		if kind == namecode.LongNameSidecar {
			continue
		}

		cName := e.Name
		if kind == namecode.LongNameContent {
			sidecar := namecode.SidecarName(e.Name)
			data, err := d.hostFS.ReadFile(path.Join(cipherPath, sidecar))
			if err != nil {
				d.warnf("listing %s: long name sidecar %s unreadable: %v", plainPath, sidecar, err)
				continue
			}
			cName = string(data)
		}

		iv := dirIV
		plain, _, err := d.coder.DecodeName(cName, iv)
		if err != nil {
			d.warnf("listing %s: skipping undecodable entry %q: %v", plainPath, e.Name, err)
			continue
		}
		out = append(out, PlainEntry{Name: plain, IsDir: e.IsDir})
	}
	return out, nil
}

// BadEntry is one ciphertext entry OpenDirDiagnostic could not decode,
// reported for fsck-style tooling.
type BadEntry struct {
	CipherName string
	Err        error
}

// OpenDirDiagnostic lists plainPath like OpenDir, but additionally reports
// every entry that failed to decode rather than dropping it.
func (d *DirNode) OpenDirDiagnostic(plainPath string) ([]PlainEntry, []BadEntry, error) {
	cipherPath, dirIV, err := d.apiToInternal(plainPath)
	if err != nil {
		return nil, nil, err
	}
	raw, err := d.hostFS.OpenDir(cipherPath)
	if err != nil {
		return nil, nil, err
	}

	var good []PlainEntry
	var bad []BadEntry
	for _, e := range raw {
		kind := namecode.ClassifyLongName(e.Name)
		if kind == namecode.LongNameSidecar {
			continue
		}
		cName := e.Name
		if kind == namecode.LongNameContent {
			sidecar := namecode.SidecarName(e.Name)
			data, err := d.hostFS.ReadFile(path.Join(cipherPath, sidecar))
			if err != nil {
				bad = append(bad, BadEntry{CipherName: e.Name, Err: err})
				continue
			}
			cName = string(data)
		}
		plain, _, err := d.coder.DecodeName(cName, dirIV)
		if err != nil {
			bad = append(bad, BadEntry{CipherName: e.Name, Err: err})
			continue
		}
		good = append(good, PlainEntry{Name: plain, IsDir: e.IsDir})
	}
	return good, bad, nil
}
