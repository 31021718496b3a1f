// Package fsck walks a vault's ciphertext tree looking for names that
// don't decode; a long-name content file whose ".name" sidecar can't be read
// counts as one of them. A sidecar with no content file beside it is not
// reported. It never touches file contents —
// block-level MAC failures surface naturally through normal reads, so
// there is no separate content-scrubbing pass here.
package fsck

import (
	"fmt"

	"github.com/sabhiram/go-gitignore"

	"github.com/go-vaultfs/vaultfs/internal/core"
)

// Finding is one problem fsck discovered.
type Finding struct {
	Path string
	Msg  string
}

// Options controls which parts of the tree get skipped.
type Options struct {
	// Ignore, if set, excludes plaintext paths matching these gitignore-style
	// patterns from the walk — useful for skipping known-scratch directories
	// on a large vault.
	Ignore []string
}

// Check walks dir (the vault's DirNode root, at plaintext path "/") and
// returns every undecodable entry and every directory it cannot list.
func Check(dir *core.DirNode, opts Options) ([]Finding, error) {
	var matcher *ignore.GitIgnore
	if len(opts.Ignore) > 0 {
		matcher = ignore.CompileIgnoreLines(opts.Ignore...)
	}
	var findings []Finding
	err := walk(dir, "/", matcher, &findings)
	return findings, err
}

func walk(dir *core.DirNode, plainPath string, matcher *ignore.GitIgnore, findings *[]Finding) error {
	if matcher != nil && matcher.MatchesPath(plainPath) {
		return nil
	}
	entries, bad, err := dir.OpenDirDiagnostic(plainPath)
	if err != nil {
		*findings = append(*findings, Finding{Path: plainPath, Msg: fmt.Sprintf("cannot list: %v", err)})
		return nil
	}
	for _, b := range bad {
		*findings = append(*findings, Finding{
			Path: plainPath,
			Msg:  fmt.Sprintf("undecodable entry %q: %v", b.CipherName, b.Err),
		})
	}
	for _, e := range entries {
		child := joinPlain(plainPath, e.Name)
		if e.IsDir {
			if err := walk(dir, child, matcher, findings); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPlain(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
