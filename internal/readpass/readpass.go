// Package readpass prompts for a vault password, from the terminal,
// stdin, or an external helper program.
package readpass

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"

	"github.com/go-vaultfs/vaultfs/internal/exitcodes"
	"github.com/go-vaultfs/vaultfs/internal/vlog"
)

// Once reads a password once: from extpass if set, from stdin if stdin is
// not a terminal, otherwise by prompting interactively.
func Once(extpass string) (string, error) {
	if extpass != "" {
		return fromExtpass(extpass)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fromStdin()
	}
	return fromTerminal("Password: ")
}

// Twice is Once, but prompts a second time for confirmation when reading
// interactively — used on vault creation, where a typo in the only copy
// of the password is unrecoverable.
func Twice(extpass string) (string, error) {
	if extpass != "" {
		return fromExtpass(extpass)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fromStdin()
	}
	p1, err := fromTerminal("Password: ")
	if err != nil {
		return "", err
	}
	p2, err := fromTerminal("Repeat: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", exitcodes.NewErr("passwords do not match", exitcodes.ReadPassword)
	}
	return p1, nil
}

func fromTerminal(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	p, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", exitcodes.NewErr(fmt.Sprintf("could not read password from terminal: %v", err), exitcodes.ReadPassword)
	}
	if len(p) == 0 {
		return "", exitcodes.NewErr("password is empty", exitcodes.PasswordEmpty)
	}
	return string(p), nil
}

func fromStdin() (string, error) {
	vlog.Info.Println("Reading password from stdin")
	p, err := readLine(os.Stdin)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", exitcodes.NewErr("got empty password from stdin", exitcodes.PasswordEmpty)
	}
	return p, nil
}

func fromExtpass(extpass string) (string, error) {
	vlog.Info.Println("Reading password from extpass program")
	parts := strings.Fields(extpass)
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stderr = os.Stderr
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", exitcodes.NewErr(fmt.Sprintf("extpass pipe setup failed: %v", err), exitcodes.ReadPassword)
	}
	if err := cmd.Start(); err != nil {
		return "", exitcodes.NewErr(fmt.Sprintf("extpass start failed: %v", err), exitcodes.ReadPassword)
	}
	p, err := readLine(pipe)
	pipe.Close()
	cmd.Wait()
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", exitcodes.NewErr("extpass: password is empty", exitcodes.PasswordEmpty)
	}
	return p, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", exitcodes.NewErr(fmt.Sprintf("readLine: %v", err), exitcodes.ReadPassword)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
