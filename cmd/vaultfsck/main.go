// vaultfsck scans a vault for ciphertext entries that can't be decoded
// under the vault's configured key — the earliest and cheapest sign of
// corruption or an attempted tamper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/go-vaultfs/vaultfs/internal/core"
	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
	"github.com/go-vaultfs/vaultfs/internal/exitcodes"
	"github.com/go-vaultfs/vaultfs/internal/fsck"
	"github.com/go-vaultfs/vaultfs/internal/namecode"
	"github.com/go-vaultfs/vaultfs/internal/readpass"
	"github.com/go-vaultfs/vaultfs/internal/vaultconfig"
)

func main() {
	var extpass string
	var ignorePatterns []string

	flagSet := pflag.NewFlagSet("vaultfsck", pflag.ExitOnError)
	flagSet.StringVar(&extpass, "extpass", "", "use this external program to read the password")
	flagSet.StringArrayVar(&ignorePatterns, "exclude", nil, "gitignore-style pattern to skip (repeatable)")
	flagSet.Parse(os.Args[1:])

	args := flagSet.Args()
	if len(args) != 1 {
		exitcodes.Exit(exitcodes.Usage, "Usage: vaultfsck [OPTIONS] CIPHERDIR")
	}
	cipherDir := args[0]

	password, err := readpass.Once(extpass)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.ReadPassword)
	}
	masterKey, _, flags, err := vaultconfig.Load(cipherDir+"/"+vaultconfig.DefaultName, password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.LoadConf)
	}
	defer zero(masterKey)

	cc, err := cryptocore.New(masterKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.Other)
	}

	macBytes, randBytes := 0, 0
	if flags.MACIntegrity {
		macBytes, randBytes = 4, 2
	}
	cfg := core.Config{
		Core:          cc,
		BlockSize:     4096,
		PerFileIV:     true,
		MACBytes:      macBytes,
		RandBytes:     randBytes,
		AllowHoles:    flags.AllowHoles,
		ChainedNameIV: flags.ChainedNameIV && !flags.PlaintextNames,
	}
	var coder namecode.Coder
	switch {
	case flags.PlaintextNames:
		coder = namecode.NullCoder{}
	case flags.AESSIVNames:
		coder = namecode.NewSIVCoder(cc, cfg.ChainedNameIV)
	default:
		coder = namecode.NewBlockCoder(cc, cfg.ChainedNameIV)
	}

	ctx := core.NewContext()
	dir := core.NewDirNode(ctx, core.NewPosixFS(), cfg, coder, cipherDir)

	findings, err := fsck.Check(dir, fsck.Options{Ignore: ignorePatterns})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.Other)
	}
	for _, f := range findings {
		fmt.Printf("%s: %s\n", f.Path, f.Msg)
	}
	if len(findings) > 0 {
		os.Exit(exitcodes.Corruption)
	}
	fmt.Println("No problems found.")
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
