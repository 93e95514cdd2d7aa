// Package secrets is the client library behind the keeper CLI:
// store/read/update/delete/list/clear/reset-password against the vault via
// internal/vaultcrypto and internal/vaultstore. The mutating operations each
// do load -> decrypt -> mutate -> encrypt -> save, serialized against
// concurrent CLIs with internal/filelock; Read and List only load and
// decrypt.
//
// Password acquisition never recurses: each keeper CLI command calls
// AcquirePassword once and passes the result to the Service method.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arcbound/keeper/internal/config"
	"github.com/arcbound/keeper/internal/filelock"
	"github.com/arcbound/keeper/internal/keeperd"
	"github.com/arcbound/keeper/internal/metrics"
	"github.com/arcbound/keeper/internal/vaultcrypto"
	"github.com/arcbound/keeper/internal/vaultstore"
)

// Sentinel errors the CLI maps to exit codes and short stderr messages.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrDecryptionFailed = vaultcrypto.ErrDecryptionFailed
	ErrFormat           = errors.New("vault file is unparseable or has an unrecognized version")
	ErrEmptyInput       = errors.New("empty or invalid input")
	ErrIPCUnavailable   = errors.New("agent unreachable")
)

// Service is the handle every keeper CLI subcommand operates through.
type Service struct {
	paths         config.Paths
	keeperdBinary string
	prompter      Prompter
	metrics       *metrics.Registry
}

// New builds a Service bound to the given config's derived paths, prompting
// on a real terminal when a password must be collected interactively.
func New(cfg config.Config, keeperdBinary string) *Service {
	return &Service{paths: cfg.Paths(), keeperdBinary: keeperdBinary, prompter: terminalPrompter{}}
}

// NewWithPrompter builds a Service using a caller-supplied Prompter,
// letting tests substitute an in-memory implementation for the real
// terminal.
func NewWithPrompter(cfg config.Config, keeperdBinary string, prompter Prompter) *Service {
	return &Service{paths: cfg.Paths(), keeperdBinary: keeperdBinary, prompter: prompter}
}

// WithMetrics attaches a metrics registry that Store/Read/Update/Delete/
// List/Clear/ResetPassword record operation counts and decrypt failures
// against. Nil-safe when never called, matching internal/keeperd.Agent's
// own optional-metrics pattern.
func (s *Service) WithMetrics(reg *metrics.Registry) *Service {
	s.metrics = reg
	return s
}

// recordOp increments the per-operation counter and, on a decryption
// failure, the dedicated DecryptFailures counter.
func (s *Service) recordOp(op string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.OperationsTotal.WithLabelValues(op, status).Inc()
	if errors.Is(err, ErrDecryptionFailed) {
		s.metrics.DecryptFailures.Inc()
	}
}

// AcquirePassword implements the password acquisition ladder: environment
// variable, then agent GET, then spawn-agent-and-retry, then a direct
// masked prompt (verified by trial-decryption, or by create-with-
// confirmation if no vault exists yet). Service methods take the password
// as an argument; callers obtain it here once per command.
func (s *Service) AcquirePassword(envOverride string) (string, error) {
	if envOverride != "" {
		return envOverride, nil
	}

	if password, err := keeperd.Get(s.paths); err == nil {
		return password, nil
	}

	if err := keeperd.Start(s.paths, s.keeperdBinary); err == nil {
		if password, err := keeperd.Get(s.paths); err == nil {
			return password, nil
		}
	}

	return s.promptDirect()
}

func (s *Service) promptDirect() (string, error) {
	if !vaultstore.Exists(s.paths.VaultFile) {
		return s.prompter.NewPasswordWithConfirmation("Create a new master password")
	}

	password, err := s.prompter.Password("Master password: ")
	if err != nil {
		return "", err
	}
	blob, _, ok, err := vaultstore.Load(s.paths.VaultFile)
	if err != nil {
		return "", translateLoadErr(err)
	}
	if !ok {
		return password, nil
	}
	if _, err := vaultcrypto.Decrypt(blob, password); err != nil {
		return "", ErrDecryptionFailed
	}
	return password, nil
}

// load reads and decrypts the vault, returning an empty Tree if no vault
// file exists yet.
func (s *Service) load(password string) (vaultcrypto.Tree, error) {
	blob, _, ok, err := vaultstore.Load(s.paths.VaultFile)
	if err != nil {
		return nil, translateLoadErr(err)
	}
	if !ok {
		return vaultcrypto.Tree{}, nil
	}
	tree, err := vaultcrypto.Decrypt(blob, password)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return tree, nil
}

// save always derives a fresh salt and nonce (vaultcrypto.Encrypt never
// reuses either), never the loaded blob's.
func (s *Service) save(tree vaultcrypto.Tree, password string) error {
	blob, err := vaultcrypto.Encrypt(tree, password)
	if err != nil {
		return err
	}
	return vaultstore.Save(s.paths.VaultFile, blob)
}

// withLock acquires the advisory file lock around the read-modify-write
// cycle fn performs, serializing it against any other process doing the
// same. The lock file's directory is created first if it does not exist.
func (s *Service) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.paths.LockFile), 0700); err != nil {
		return fmt.Errorf("secrets: create lock dir: %w", err)
	}
	lock, err := filelock.Acquire(s.paths.LockFile)
	if err != nil {
		return fmt.Errorf("secrets: acquire lock: %w", err)
	}
	defer lock.Release()
	return fn()
}

func translateLoadErr(err error) error {
	if errors.Is(err, vaultstore.ErrUnsupportedVersion) {
		return ErrFormat
	}
	return err
}

// Store inserts or replaces (group, name) = value. Without force, it
// refuses to overwrite an existing entry.
func (s *Service) Store(password, group, name, value string, force bool) (err error) {
	defer func() { s.recordOp("store", err) }()

	value = strings.TrimSpace(value)
	if value == "" {
		return ErrEmptyInput
	}

	return s.withLock(func() error {
		tree, err := s.load(password)
		if err != nil {
			return err
		}
		if tree[group] == nil {
			tree[group] = map[string]string{}
		}
		if _, exists := tree[group][name]; exists && !force {
			return ErrAlreadyExists
		}
		tree[group][name] = value
		return s.save(tree, password)
	})
}

// Read returns the value at (group, name).
func (s *Service) Read(password, group, name string) (value string, err error) {
	defer func() { s.recordOp("read", err) }()

	tree, err := s.load(password)
	if err != nil {
		return "", err
	}
	value, ok := tree[group][name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Update replaces the value at (group, name), which must already exist.
func (s *Service) Update(password, group, name, value string, force bool) (err error) {
	defer func() { s.recordOp("update", err) }()

	value = strings.TrimSpace(value)
	if value == "" {
		return ErrEmptyInput
	}

	return s.withLock(func() error {
		tree, err := s.load(password)
		if err != nil {
			return err
		}
		if _, exists := tree[group][name]; !exists {
			return ErrNotFound
		}
		if !force {
			ok, err := s.prompter.Confirm(fmt.Sprintf("Overwrite %s/%s?", group, name))
			if err != nil || !ok {
				return ErrEmptyInput
			}
		}
		tree[group][name] = value
		return s.save(tree, password)
	})
}

// Delete removes a single (group, name) entry, or, when name is empty,
// removes the entire group. Prompts for confirmation unless force is set.
func (s *Service) Delete(password, group, name string, force bool) (err error) {
	defer func() { s.recordOp("delete", err) }()

	return s.withLock(func() error {
		tree, err := s.load(password)
		if err != nil {
			return err
		}

		if name == "" {
			if _, exists := tree[group]; !exists {
				return ErrNotFound
			}
			if !force {
				ok, err := s.prompter.Confirm(fmt.Sprintf("Delete entire group %s?", group))
				if err != nil || !ok {
					return ErrEmptyInput
				}
			}
			delete(tree, group)
			return s.save(tree, password)
		}

		if _, exists := tree[group][name]; !exists {
			return ErrNotFound
		}
		if !force {
			ok, err := s.prompter.Confirm(fmt.Sprintf("Delete %s/%s?", group, name))
			if err != nil || !ok {
				return ErrEmptyInput
			}
		}
		delete(tree[group], name)
		if len(tree[group]) == 0 {
			delete(tree, group)
		}
		return s.save(tree, password)
	})
}

// Entry is one (group, name) pair, used by List's show-names mode.
type Entry struct {
	Group string
	Name  string
}

// GroupCount is one group and the number of names it holds, used by List's
// default (non show-names) mode.
type GroupCount struct {
	Group string
	Count int
}

// List returns either the per-group counts or the full group/name pairs,
// optionally filtered to a single group.
func (s *Service) List(password string, group string, showNames bool) (counts []GroupCount, entries []Entry, err error) {
	defer func() { s.recordOp("list", err) }()

	tree, err := s.load(password)
	if err != nil {
		return nil, nil, err
	}

	groups := make([]string, 0, len(tree))
	for g := range tree {
		if group != "" && g != group {
			continue
		}
		groups = append(groups, g)
	}
	sort.Strings(groups)

	if !showNames {
		counts := make([]GroupCount, 0, len(groups))
		for _, g := range groups {
			counts = append(counts, GroupCount{Group: g, Count: len(tree[g])})
		}
		return counts, nil, nil
	}

	for _, g := range groups {
		names := make([]string, 0, len(tree[g]))
		for n := range tree[g] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			entries = append(entries, Entry{Group: g, Name: n})
		}
	}
	return nil, entries, nil
}

// Clear verifies password, then replaces the credential tree with an empty
// map and saves. Prompts for confirmation unless force is set.
func (s *Service) Clear(password string, force bool) (err error) {
	defer func() { s.recordOp("clear", err) }()

	return s.withLock(func() error {
		if _, err := s.load(password); err != nil {
			return err
		}
		if !force {
			ok, err := s.prompter.Confirm("Clear the entire vault?")
			if err != nil || !ok {
				return ErrEmptyInput
			}
		}
		return s.save(vaultcrypto.Tree{}, password)
	})
}

// ResetPassword decrypts with oldPassword, prompts for and confirms a new
// password, and re-encrypts the tree under it. Without force, the operator
// is asked to confirm the reset before the new-password prompt appears.
func (s *Service) ResetPassword(oldPassword string, force bool) (err error) {
	defer func() { s.recordOp("reset_password", err) }()

	return s.withLock(func() error {
		tree, err := s.load(oldPassword)
		if err != nil {
			return err
		}

		if !force {
			ok, err := s.prompter.Confirm("Reset the master password?")
			if err != nil || !ok {
				return ErrEmptyInput
			}
		}

		newPassword, err := s.prompter.NewPasswordWithConfirmation("New master password")
		if err != nil {
			return ErrEmptyInput
		}

		return s.save(tree, newPassword)
	})
}
