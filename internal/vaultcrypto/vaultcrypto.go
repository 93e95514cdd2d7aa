// Package vaultcrypto implements the vault's cryptographic core: Argon2id
// key derivation bound to both the master password and the host's device
// key, and AES-256-GCM sealing of the credential tree. Every function here
// is a pure transform over its arguments — there is no in-memory key
// lifecycle or mutex to guard; the unlock agent owns that responsibility
// instead.
package vaultcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/arcbound/keeper/internal/deviceid"
)

// Argon2id parameters, fixed by the format: changing any of these changes
// every previously-written vault's derived key.
const (
	kdfTime    = 3
	kdfMemory  = 64 * 1024 // 64 MiB, in KiB units
	kdfThreads = 4
	kdfKeyLen  = 32

	// SaltLen and NonceLen are the sizes Encrypt always generates. Decrypt
	// accepts any salt length >= minSaltLen after padding.
	SaltLen    = 16
	NonceLen   = 12
	minSaltLen = 8
)

// ErrDecryptionFailed is returned for every decryption failure: wrong
// password, tampered ciphertext, or a corrupt JSON payload. Callers must
// never be able to distinguish these cases — doing so would hand an
// attacker a padding-oracle-style signal about which part of the blob is
// wrong.
var ErrDecryptionFailed = errors.New("invalid master password or corrupted data")

// Tree is the credential map: group -> name -> value.
type Tree map[string]map[string]string

// Blob is the encrypted representation of a Tree.
type Blob struct {
	Ciphertext []byte
	Nonce      []byte // NonceLen bytes
	Salt       []byte // SaltLen bytes
}

// DeriveKey combines password and deviceKey into the Argon2id KDF input and
// returns the 32-byte derived key. If salt is shorter than 8 bytes it is
// zero-padded to that length; this is a defensive affordance for malformed
// callers, not a security boundary (real callers always supply SaltLen
// bytes from Encrypt).
func DeriveKey(password string, deviceKey [32]byte, salt []byte) []byte {
	input := make([]byte, 0, len(password)+len(deviceKey))
	input = append(input, []byte(password)...)
	input = append(input, deviceKey[:]...)

	effectiveSalt := salt
	if len(salt) < minSaltLen {
		effectiveSalt = make([]byte, minSaltLen)
		copy(effectiveSalt, salt)
	}

	return argon2.IDKey(input, effectiveSalt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
}

// Encrypt serializes tree to canonical JSON and seals it with AES-256-GCM
// under a freshly derived key. A new salt and nonce are drawn from
// crypto/rand on every call; neither is ever reused.
func Encrypt(tree Tree, password string) (Blob, error) {
	plaintext, err := json.Marshal(tree)
	if err != nil {
		return Blob{}, fmt.Errorf("vaultcrypto: marshal tree: %w", err)
	}

	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Blob{}, fmt.Errorf("vaultcrypto: generate salt: %w", err)
	}

	devKey, err := deviceid.MachineKey()
	if err != nil {
		return Blob{}, fmt.Errorf("vaultcrypto: %w", err)
	}
	key := DeriveKey(password, devKey, salt)

	gcm, err := newGCM(key)
	if err != nil {
		return Blob{}, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Blob{}, fmt.Errorf("vaultcrypto: generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return Blob{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, nil
}

// Decrypt derives the key from blob.Salt and opens the AEAD; on success it
// parses the cleartext as a Tree. Any failure along the way — bad tag, or a
// cleartext that doesn't parse as JSON — collapses to ErrDecryptionFailed.
func Decrypt(blob Blob, password string) (Tree, error) {
	devKey, err := deviceid.MachineKey()
	if err != nil {
		return nil, fmt.Errorf("vaultcrypto: %w", err)
	}
	key := DeriveKey(password, devKey, blob.Salt)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(blob.Nonce) != gcm.NonceSize() {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var tree Tree
	if err := json.Unmarshal(plaintext, &tree); err != nil {
		return nil, ErrDecryptionFailed
	}
	return PruneEmptyGroups(tree), nil
}

// PruneEmptyGroups removes any group whose inner map is empty, preserving
// the invariant that an empty inner mapping never exists in a live Tree.
func PruneEmptyGroups(tree Tree) Tree {
	for group, names := range tree {
		if len(names) == 0 {
			delete(tree, group)
		}
	}
	return tree
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vaultcrypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vaultcrypto: new gcm: %w", err)
	}
	return gcm, nil
}

// SaltsDiffer reports whether two blobs were generated with distinct salts,
// used by tests asserting fresh randomness across successive Encrypt calls.
func SaltsDiffer(a, b Blob) bool {
	return !bytes.Equal(a.Salt, b.Salt)
}
