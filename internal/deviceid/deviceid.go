// Package deviceid derives a stable, per-machine 32-byte key used to bind
// the vault's encryption key to the host it was created on. It never reads
// or writes vault state — only the handful of identity probes described
// below.
package deviceid

import (
	"crypto/sha256"
	"fmt"
	"os"
	"os/user"
	"strings"
)

// machineIDPaths are tried in order; the first that yields a non-empty,
// trimmed line wins. Mirrors the discovery ladder systemd-based Linux (and
// most BSDs) expose for a per-install identifier.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineKey returns a 32-byte value derived from the most stable host
// identifier this process can discover. It tries, in order: /etc/machine-id,
// /var/lib/dbus/machine-id, then a deterministic fallback keyed by hostname
// and username. Only the fallback's own hostname/username lookup can fail
// this function outright — every machine-id probe failure simply falls
// through to the next step.
func MachineKey() ([32]byte, error) {
	if id, ok := readMachineID(); ok {
		return sha256.Sum256([]byte("device_uuid:" + id)), nil
	}

	hostname, username, err := hostUser()
	if err != nil {
		return [32]byte{}, fmt.Errorf("deviceid: %w", err)
	}
	ident := "fallback:" + hostname + ":" + username
	return sha256.Sum256([]byte(ident)), nil
}

func readMachineID() (string, bool) {
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, true
		}
	}
	return "", false
}

func hostUser() (hostname, username string, err error) {
	hostname, err = os.Hostname()
	if err != nil {
		return "", "", fmt.Errorf("hostname unavailable: %w", err)
	}
	u, err := user.Current()
	if err != nil {
		return "", "", fmt.Errorf("username unavailable: %w", err)
	}
	return hostname, u.Username, nil
}
