// Package promptutil prompts the operator for a master password on a real
// terminal, with input hidden the way login(1)-style tools do it.
package promptutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Password prompts for a single password with hidden input. Returns an
// error if stdin is not an interactive terminal.
func Password(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("promptutil: interactive password prompting requires a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("promptutil: read password: %w", err)
	}
	return string(password), nil
}

// NewPasswordWithConfirmation prompts for a new password and a confirming
// repeat, rejecting an empty password or a mismatched confirmation.
func NewPasswordWithConfirmation(prompt string) (string, error) {
	password, err := Password(prompt + ": ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("promptutil: password cannot be empty")
	}

	confirm, err := Password("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("promptutil: passwords do not match")
	}
	return password, nil
}

// Confirm asks a yes/no question on the terminal and reports the answer.
func Confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("promptutil: interactive confirmation requires a terminal")
	}

	fmt.Fprint(os.Stderr, prompt+" [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("promptutil: read confirmation: %w", err)
	}

	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "y" || answer == "yes", nil
}
