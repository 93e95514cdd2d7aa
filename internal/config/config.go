// Package config loads keeper's environment-driven configuration via a set
// of getEnv*-helpers, reading every KEEPER_* variable once at startup.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Config holds everything the keeper CLI and keeperd agent read from the
// environment.
type Config struct {
	// BaseDir is the root all persistent state is derived from. Defaults to
	// ~/.keeper.
	BaseDir string

	// MasterPassword, when non-empty, bypasses every prompting/agent step
	// in the password acquisition ladder. Intended for non-interactive
	// contexts (CI, scripted setup).
	MasterPassword string

	LogLevel string

	// DebugAddr, when non-empty, starts keeperdsrv's local-only /healthz
	// and /metrics HTTP listener at this address (must be loopback).
	DebugAddr string

	OTelEnabled     bool
	OTelEndpoint    string
	OTelServiceName string

	// QuietBanners suppresses informational (non-error) CLI output when the
	// process looks like it was invoked as a subprocess rather than directly
	// by a human at a shell.
	QuietBanners bool
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	base, err := defaultBaseDir()
	if err != nil {
		return Config{}, err
	}

	return Config{
		BaseDir:        getEnv("KEEPER_BASE_DIR", base),
		MasterPassword: getEnv("KEEPER_MASTER_PASSWORD", ""),
		LogLevel:       getEnv("KEEPER_LOG_LEVEL", "info"),
		DebugAddr:      getEnv("KEEPER_DEBUG_ADDR", ""),

		OTelEnabled:     getEnvBool("KEEPER_OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("KEEPER_OTEL_ENDPOINT", "localhost:4318"),
		OTelServiceName: getEnv("KEEPER_OTEL_SERVICE_NAME", "keeperd"),

		QuietBanners: isSubprocess(),
	}, nil
}

// Paths bundles the file locations derived from a single base directory.
type Paths struct {
	VaultFile  string
	SocketFile string
	PIDFile    string
	LockFile   string
}

// Paths computes the vault/socket/pid/lock file locations under
// <BaseDir>/persistent/keeper/.
func (c Config) Paths() Paths {
	dir := filepath.Join(c.BaseDir, "persistent", "keeper")
	return Paths{
		VaultFile:  filepath.Join(dir, "credentials.enc"),
		SocketFile: filepath.Join(dir, "keeper.sock"),
		PIDFile:    filepath.Join(dir, "keeper.pid"),
		LockFile:   filepath.Join(dir, "keeper.lock"),
	}
}

func defaultBaseDir() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(u.HomeDir, ".keeper"), nil
}

// isSubprocess auto-suppresses banners when invoked from another tool rather
// than a human's shell: an explicit KEEPER_QUIET override, or the absence of
// SHLVL (which a real interactive shell always sets).
func isSubprocess() bool {
	if os.Getenv("KEEPER_QUIET") != "" {
		return true
	}
	return os.Getenv("SHLVL") == ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
