package cmd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/xkilldash9x/banner-cli/internal/config"
)

// Function variables so tests can stand in for a terminal.
var (
	stdinFd      = func() int { return int(os.Stdin.Fd()) }
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword

	passwordPrompt = promptPassword
)

// promptPassword asks for the portal password without echoing it.
func promptPassword(w io.Writer, username string) (string, error) {
	fd := stdinFd()
	if !isTerminal(fd) {
		return "", fmt.Errorf("no password available: set %s or run from a terminal", config.PasswordEnvVar)
	}

	fmt.Fprintf(w, "Password for %s: ", username)
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(pw), nil
}
