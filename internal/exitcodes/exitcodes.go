// Package exitcodes contains the well-defined process exit codes that
// cmd/vaultfs and cmd/vaultfsck can return.
package exitcodes

import (
	"fmt"
	"os"
)

const (
	// Usage - wrong CLI syntax or wrong number of arguments.
	Usage = 1
	// 2 is reserved, used by Go panic.

	// CipherDir means CIPHERDIR does not exist, is not empty, or is not a directory.
	CipherDir = 6
	// Init is an error while initializing a new vault.
	Init = 7
	// LoadConf is an error while loading the vault config file.
	LoadConf = 8
	// ReadPassword means something went wrong reading the password.
	ReadPassword = 9
	// MountPoint means the mountpoint is invalid.
	MountPoint = 10
	// Other - please inspect the message.
	Other = 11
	// PasswordIncorrect - the password did not unwrap the master key.
	PasswordIncorrect = 12
	// ScryptParams means scrypt was invoked with invalid parameters.
	ScryptParams = 13
	// MountFailed means the FUSE mount call itself failed.
	MountFailed = 19
	// PasswordEmpty - we received an empty password.
	PasswordEmpty = 22
	// Corruption means vaultfsck found unrecoverable corruption.
	Corruption = 26
)

// Exit prints msg to stderr and exits the process with code.
func Exit(code int, format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", v...)
	os.Exit(code)
}

// Err pairs an error message with the exit code that should be returned if
// it propagates all the way up to main. Callers that only care about the
// message can still treat it as a plain error.
type Err struct {
	Msg  string
	Code int
}

func (e *Err) Error() string {
	return e.Msg
}

// NewErr constructs an Err.
func NewErr(msg string, code int) *Err {
	return &Err{Msg: msg, Code: code}
}
