package secrets

import "github.com/arcbound/keeper/internal/promptutil"

// Prompter is the small interface standing in for a real terminal: asking
// for a password, a new password with confirmation, or a yes/no answer.
// Tests substitute an in-memory implementation instead of a real terminal.
type Prompter interface {
	Password(prompt string) (string, error)
	NewPasswordWithConfirmation(prompt string) (string, error)
	Confirm(prompt string) (bool, error)
}

// terminalPrompter is the default Prompter, backed by internal/promptutil.
type terminalPrompter struct{}

func (terminalPrompter) Password(prompt string) (string, error) {
	return promptutil.Password(prompt)
}

func (terminalPrompter) NewPasswordWithConfirmation(prompt string) (string, error) {
	return promptutil.NewPasswordWithConfirmation(prompt)
}

func (terminalPrompter) Confirm(prompt string) (bool, error) {
	return promptutil.Confirm(prompt)
}
