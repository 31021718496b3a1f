// vaultfs mounts and initializes encrypted vaults: run with a CIPHERDIR
// and MOUNTPOINT to mount, or with -init/-passwd against a CIPHERDIR alone
// to create a vault or change its password.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/spf13/pflag"

	"github.com/go-vaultfs/vaultfs/internal/core"
	"github.com/go-vaultfs/vaultfs/internal/cryptocore"
	"github.com/go-vaultfs/vaultfs/internal/exitcodes"
	"github.com/go-vaultfs/vaultfs/internal/fusebridge"
	"github.com/go-vaultfs/vaultfs/internal/namecode"
	"github.com/go-vaultfs/vaultfs/internal/readpass"
	"github.com/go-vaultfs/vaultfs/internal/vaultconfig"
	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

func main() {
	var (
		initVault      bool
		changePassword bool
		plaintextNames bool
		aesSIVNames    bool
		chainedNameIV  bool
		noMAC          bool
		allowHoles     bool
		reverse        bool
		extpass        string
		blockSize      int64
		quiet          bool
	)

	flagSet := pflag.NewFlagSet("vaultfs", pflag.ExitOnError)
	flagSet.BoolVar(&initVault, "init", false, "create a new vault in CIPHERDIR")
	flagSet.BoolVar(&changePassword, "passwd", false, "change the password of the vault in CIPHERDIR")
	flagSet.BoolVar(&plaintextNames, "plaintext-names", false, "don't encrypt file names")
	flagSet.BoolVar(&aesSIVNames, "aessiv-names", false, "encode file names with deterministic AES-SIV instead of EME")
	flagSet.BoolVar(&chainedNameIV, "chained-nameiv", true, "chain each name's IV from its parent directory")
	flagSet.BoolVar(&noMAC, "no-mac", false, "disable per-block MAC integrity checking")
	flagSet.BoolVar(&allowHoles, "allow-holes", true, "allow sparse files")
	flagSet.BoolVar(&reverse, "reverse", false, "mount in reverse mode (CIPHERDIR is the plaintext side)")
	flagSet.StringVar(&extpass, "extpass", "", "use this external program to read the password")
	flagSet.Int64Var(&blockSize, "blocksize", 4096, "plaintext data block size")
	flagSet.BoolVarP(&quiet, "quiet", "q", false, "disable informational output")
	flagSet.Parse(os.Args[1:])

	if quiet {
		vlog.Info.Enabled = false
	}

	args := flagSet.Args()
	if initVault || changePassword {
		if len(args) != 1 {
			exitcodes.Exit(exitcodes.Usage, "Usage: vaultfs -init|-passwd [OPTIONS] CIPHERDIR")
		}
		cipherDir := args[0]
		if initVault {
			doInit(cipherDir, plaintextNames, aesSIVNames, chainedNameIV, noMAC, allowHoles, reverse, extpass)
		} else {
			doPasswd(cipherDir, extpass)
		}
		return
	}

	if len(args) != 2 {
		exitcodes.Exit(exitcodes.Usage, "Usage: vaultfs [OPTIONS] CIPHERDIR MOUNTPOINT")
	}
	doMount(args[0], args[1], extpass, blockSize, reverse)
}

func doInit(cipherDir string, plaintextNames, aesSIVNames, chainedNameIV, noMAC, allowHoles, reverse bool, extpass string) {
	fi, err := os.Stat(cipherDir)
	if err != nil || !fi.IsDir() {
		exitcodes.Exit(exitcodes.CipherDir, "CIPHERDIR %q does not exist or is not a directory", cipherDir)
	}
	entries, err := os.ReadDir(cipherDir)
	if err != nil || len(entries) != 0 {
		exitcodes.Exit(exitcodes.CipherDir, "CIPHERDIR %q is not empty", cipherDir)
	}

	password, err := readpass.Twice(extpass)
	if err != nil {
		fail(err, exitcodes.ReadPassword)
	}

	confName := vaultconfig.DefaultName
	if reverse {
		confName = vaultconfig.ReverseName
	}
	flags := vaultconfig.Flags{
		PlaintextNames: plaintextNames,
		AESSIVNames:    aesSIVNames && !plaintextNames,
		ChainedNameIV:  chainedNameIV && !plaintextNames,
		MACIntegrity:   !noMAC,
		AllowHoles:     allowHoles,
		Reverse:        reverse,
	}
	if err := vaultconfig.Create(filepath.Join(cipherDir, confName), "vaultfs", password, vaultconfig.DefaultLogN, flags); err != nil {
		fail(err, exitcodes.Init)
	}
	vlog.Info.Printf("Vault created at %s", cipherDir)
}

func doPasswd(cipherDir, extpass string) {
	confName := vaultconfig.DefaultName
	path := filepath.Join(cipherDir, confName)
	oldPassword, err := readpass.Once(extpass)
	if err != nil {
		fail(err, exitcodes.ReadPassword)
	}
	masterKey, _, flags, err := vaultconfig.Load(path, oldPassword)
	if err != nil {
		fail(err, exitcodes.LoadConf)
	}
	defer zero(masterKey)

	newPassword, err := readpass.Twice(extpass)
	if err != nil {
		fail(err, exitcodes.ReadPassword)
	}
	if err := vaultconfig.Create(path+".new", "vaultfs", newPassword, vaultconfig.DefaultLogN, flags); err != nil {
		fail(err, exitcodes.Init)
	}
	if err := os.Rename(path+".new", path); err != nil {
		fail(err, exitcodes.Init)
	}
	vlog.Info.Println("Password changed")
}

func doMount(cipherDir, mountpoint, extpass string, blockSize int64, reverse bool) {
	confName := vaultconfig.DefaultName
	if reverse {
		confName = vaultconfig.ReverseName
	}
	password, err := readpass.Once(extpass)
	if err != nil {
		fail(err, exitcodes.ReadPassword)
	}
	masterKey, _, flags, err := vaultconfig.Load(filepath.Join(cipherDir, confName), password)
	if err != nil {
		fail(err, exitcodes.LoadConf)
	}
	defer zero(masterKey)

	cc, err := cryptocore.New(masterKey)
	if err != nil {
		fail(err, exitcodes.Other)
	}

	macBytes, randBytes := 0, 0
	if flags.MACIntegrity {
		macBytes, randBytes = 4, 2
	}
	cfg := core.Config{
		Core:      cc,
		BlockSize: blockSize,
		// PerFileIV is requested unconditionally; cipherio.New ignores it
		// in reverse mode, where raw is the real plaintext source file and
		// must never gain an on-disk header.
		PerFileIV:     true,
		MACBytes:      macBytes,
		RandBytes:     randBytes,
		AllowHoles:    flags.AllowHoles,
		Reverse:       flags.Reverse,
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

	mountOpts := &fs.Options{}
	if flags.Reverse {
		// Reverse mounts are always read-only: the backing store is the
		// user's real plaintext source tree, and cipherio refuses writes
		// to it regardless, but the kernel should never offer them.
		mountOpts.MountOptions.Options = append(mountOpts.MountOptions.Options, "ro")
	}
	server, err := fusebridge.Mount(mountpoint, dir, mountOpts)
	if err != nil {
		exitcodes.Exit(exitcodes.MountFailed, "Mount failed: %v", err)
	}
	vlog.Info.Printf("Mounted %s at %s", cipherDir, mountpoint)
	server.Wait()
}

func fail(err error, fallback int) {
	code := fallback
	if e, ok := err.(*exitcodes.Err); ok {
		code = e.Code
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
