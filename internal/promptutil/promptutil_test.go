package promptutil

import "testing"

func TestPassword_NonInteractiveTerminal(t *testing.T) {
	_, err := Password("Enter password: ")
	if err == nil {
		t.Error("expected error for non-interactive terminal")
	}
}

func TestNewPasswordWithConfirmation_NonInteractiveTerminal(t *testing.T) {
	_, err := NewPasswordWithConfirmation("New password")
	if err == nil {
		t.Error("expected error for non-interactive terminal")
	}
}

func TestConfirm_NonInteractiveTerminal(t *testing.T) {
	_, err := Confirm("Continue?")
	if err == nil {
		t.Error("expected error for non-interactive terminal")
	}
}

// Note: interactive paths require a real terminal with simulated keystrokes,
// so coverage here is limited to the non-interactive error branches; the
// happy path is exercised manually and via internal/secrets' Service tests,
// which substitute an in-memory Prompter instead of calling promptutil directly.
