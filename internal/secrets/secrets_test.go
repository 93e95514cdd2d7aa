package secrets

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbound/keeper/internal/config"
	"github.com/arcbound/keeper/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakePrompter is an in-memory Prompter double, so these tests never need
// a real terminal.
type fakePrompter struct {
	password    string
	newPassword string
	confirm     bool
}

func (f fakePrompter) Password(prompt string) (string, error) {
	return f.password, nil
}

func (f fakePrompter) NewPasswordWithConfirmation(prompt string) (string, error) {
	return f.newPassword, nil
}

func (f fakePrompter) Confirm(prompt string) (bool, error) {
	return f.confirm, nil
}

func testService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{BaseDir: dir}
	return NewWithPrompter(cfg, "keeperd", fakePrompter{confirm: true})
}

func testServiceWithPrompter(t *testing.T, p Prompter) *Service {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{BaseDir: dir}
	return NewWithPrompter(cfg, "keeperd", p)
}

// Scenario 1: fresh setup, store then read.
func TestStoreThenRead(t *testing.T) {
	s := testService(t)

	require.NoError(t, s.Store("p@ss", "api", "token", "ghp_xyz", false))

	got, err := s.Read("p@ss", "api", "token")
	require.NoError(t, err)
	assert.Equal(t, "ghp_xyz", got)
}

// Scenario 2: wrong password.
func TestRead_WrongPassword(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "api", "token", "ghp_xyz", false))

	_, err := s.Read("wrong", "api", "token")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

// Scenario 3: overwrite guard.
func TestStore_OverwriteGuard(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "api", "token", "old", false))

	err := s.Store("p@ss", "api", "token", "new", false)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	got, _ := s.Read("p@ss", "api", "token")
	assert.Equal(t, "old", got, "value after rejected overwrite")

	require.NoError(t, s.Store("p@ss", "api", "token", "new", true))
	got, _ = s.Read("p@ss", "api", "token")
	assert.Equal(t, "new", got, "value after forced overwrite")
}

// Scenario 4: delete cascade.
func TestDelete_GroupCascade(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "a", "x", "1", false))
	require.NoError(t, s.Store("p@ss", "a", "y", "2", false))

	require.NoError(t, s.Delete("p@ss", "a", "x", true))
	_, err := s.Read("p@ss", "a", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Read("p@ss", "a", "y")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	require.NoError(t, s.Delete("p@ss", "a", "y", true))
	counts, _, err := s.List("p@ss", "", false)
	require.NoError(t, err)
	for _, c := range counts {
		assert.NotEqual(t, "a", c.Group, "expected group a to be gone entirely, found count %d", c.Count)
	}
}

// Scenario 5: password reset.
func TestResetPassword(t *testing.T) {
	s := testServiceWithPrompter(t, fakePrompter{confirm: true, newPassword: "new"})
	require.NoError(t, s.Store("old", "a", "x", "1", false))

	require.NoError(t, s.ResetPassword("old", true))

	_, err := s.Read("old", "a", "x")
	assert.ErrorIs(t, err, ErrDecryptionFailed, "read with old password after reset")

	got, err := s.Read("new", "a", "x")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

// ResetPassword without force still requires the operator to confirm, and
// declining leaves the vault under the old password.
func TestResetPassword_DeclinedConfirmation(t *testing.T) {
	s := testServiceWithPrompter(t, fakePrompter{confirm: false, newPassword: "new"})
	require.NoError(t, s.Store("old", "a", "x", "1", false))

	err := s.ResetPassword("old", false)
	assert.ErrorIs(t, err, ErrEmptyInput)

	got, err := s.Read("old", "a", "x")
	require.NoError(t, err)
	assert.Equal(t, "1", got, "vault should be unchanged")
}

func TestUpdate_RequiresExisting(t *testing.T) {
	s := testService(t)
	err := s.Update("p@ss", "a", "x", "1", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_Force(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "a", "x", "1", false))
	require.NoError(t, s.Update("p@ss", "a", "x", "2", true))
	got, _ := s.Read("p@ss", "a", "x")
	assert.Equal(t, "2", got)
}

func TestStore_EmptyValueRejected(t *testing.T) {
	s := testService(t)
	err := s.Store("p@ss", "a", "x", "   ", false)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestClear(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "a", "x", "1", false))
	require.NoError(t, s.Clear("p@ss", true))
	counts, _, err := s.List("p@ss", "", false)
	require.NoError(t, err)
	assert.Empty(t, counts, "expected empty vault after Clear")
}

func TestList_ShowNames(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "a", "x", "1", false))
	require.NoError(t, s.Store("p@ss", "a", "y", "2", false))
	require.NoError(t, s.Store("p@ss", "b", "z", "3", false))

	_, entries, err := s.List("p@ss", "", true)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestWithMetrics_RecordsOperationsAndDecryptFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{BaseDir: dir}
	reg := metrics.New()
	s := NewWithPrompter(cfg, "keeperd", fakePrompter{confirm: true}).WithMetrics(reg)

	require.NoError(t, s.Store("p@ss", "a", "x", "1", false))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.OperationsTotal.WithLabelValues("store", "ok")))

	_, err := s.Read("wrong", "a", "x")
	require.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.OperationsTotal.WithLabelValues("read", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.DecryptFailures))
}

func TestVaultFilePermissions(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Store("p@ss", "a", "x", "1", false))

	info, err := os.Stat(s.paths.VaultFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
