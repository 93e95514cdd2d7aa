// Package vaultstore persists an encrypted vaultcrypto.Blob to a single JSON
// file on disk. It knows nothing about passwords or plaintext — only about
// reading and atomically writing a versioned, base64-encoded envelope.
package vaultstore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arcbound/keeper/internal/vaultcrypto"
)

// CurrentVersion is the only version tag this package writes or accepts.
const CurrentVersion = "1.0"

// ErrUnsupportedVersion is returned by Load when a vault file's version tag
// is not recognized.
var ErrUnsupportedVersion = errors.New("vaultstore: unsupported vault file version")

// envelope is the on-disk JSON shape: {version, encrypted_data}.
type envelope struct {
	Version       string       `json:"version"`
	EncryptedData envelopeBlob `json:"encrypted_data"`
}

type envelopeBlob struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Salt       string `json:"salt"`
}

// Load reads and decodes the vault file at path. It returns ok=false (and a
// nil error) if the file does not exist; any other failure to read or parse
// is a hard error.
func Load(path string) (blob vaultcrypto.Blob, version string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return vaultcrypto.Blob{}, "", false, nil
		}
		return vaultcrypto.Blob{}, "", false, fmt.Errorf("vaultstore: read %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return vaultcrypto.Blob{}, "", false, fmt.Errorf("vaultstore: parse %s: %w", path, err)
	}
	if env.Version != CurrentVersion {
		return vaultcrypto.Blob{}, env.Version, false, ErrUnsupportedVersion
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.EncryptedData.Ciphertext)
	if err != nil {
		return vaultcrypto.Blob{}, "", false, fmt.Errorf("vaultstore: decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.EncryptedData.Nonce)
	if err != nil {
		return vaultcrypto.Blob{}, "", false, fmt.Errorf("vaultstore: decode nonce: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(env.EncryptedData.Salt)
	if err != nil {
		return vaultcrypto.Blob{}, "", false, fmt.Errorf("vaultstore: decode salt: %w", err)
	}

	return vaultcrypto.Blob{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, env.Version, true, nil
}

// Save writes blob to path as {version, encrypted_data}, creating parent
// directories as needed. The write is atomic with respect to readers: the
// envelope is written to a temporary sibling file, chmod'd to 0600, then
// renamed over the target — a reader never observes a partially written
// vault.
func Save(path string, blob vaultcrypto.Blob) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("vaultstore: create dir %s: %w", dir, err)
	}

	env := envelope{
		Version: CurrentVersion,
		EncryptedData: envelopeBlob{
			Ciphertext: base64.StdEncoding.EncodeToString(blob.Ciphertext),
			Nonce:      base64.StdEncoding.EncodeToString(blob.Nonce),
			Salt:       base64.StdEncoding.EncodeToString(blob.Salt),
		},
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("vaultstore: marshal envelope: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".keeper-vault-*.tmp")
	if err != nil {
		return fmt.Errorf("vaultstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("vaultstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vaultstore: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("vaultstore: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("vaultstore: rename into place: %w", err)
	}
	return nil
}

// Exists reports whether a vault file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
