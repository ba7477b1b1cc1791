package osutil

import (
	"os"

	"golang.org/x/term"
)

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadSecret prints `prompt` to stderr and reads a line from the terminal
// without echoing it.
func ReadSecret(prompt string) (string, error) {
	os.Stderr.WriteString(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	os.Stderr.WriteString("\n")
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
