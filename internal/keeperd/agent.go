// Package keeperd implements the unlock agent: a long-lived process that
// holds the master password in memory and hands it out over a local
// Unix-domain socket, plus the start/status/stop/restart lifecycle
// operations the keeper CLI drives to manage it.
//
// The accept loop is one goroutine calling Accept() and one goroutine per
// connection handling it — Go's scheduler does the cooperative multiplexing
// a single-threaded async runtime would otherwise provide by hand.
package keeperd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arcbound/keeper/internal/agentproto"
	"github.com/arcbound/keeper/internal/config"
	"github.com/arcbound/keeper/internal/metrics"
	"github.com/arcbound/keeper/internal/promptutil"
	"github.com/arcbound/keeper/internal/vaultcrypto"
	"github.com/arcbound/keeper/internal/vaultstore"
)

// Agent holds the unlocked master password in memory for its process
// lifetime. The password lives until explicit shutdown or process death;
// there is deliberately no auto-lock timer here.
type Agent struct {
	paths     config.Paths
	password  string
	logger    *slog.Logger
	metrics   *metrics.Registry
	startedAt time.Time

	listener net.Listener
}

// New resolves the master password — prompting to create a new vault if
// none exists yet, or prompting once and verifying by trial-decryption
// against the existing one — then binds the Unix-domain socket and writes
// the PID file. The accept loop is not started until New returns
// successfully, so a client can never observe a half-initialized agent.
func New(paths config.Paths, logger *slog.Logger, reg *metrics.Registry) (*Agent, error) {
	if err := removeStale(paths.SocketFile); err != nil {
		return nil, err
	}

	password, err := resolvePassword(paths.VaultFile)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", paths.SocketFile)
	if err != nil {
		return nil, fmt.Errorf("keeperd: listen on %s: %w", paths.SocketFile, err)
	}

	if err := os.WriteFile(paths.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("keeperd: write pid file: %w", err)
	}

	return &Agent{
		paths:     paths,
		password:  password,
		logger:    logger,
		metrics:   reg,
		startedAt: time.Now(),
		listener:  listener,
	}, nil
}

// removeStale deletes a leftover socket file from an unclean previous exit.
func removeStale(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("keeperd: remove stale socket: %w", err)
		}
	}
	return nil
}

// resolvePassword implements the agent's startup step: create a new vault
// with a confirmed password if none exists yet, otherwise prompt once and
// verify it against the existing vault.
func resolvePassword(vaultFile string) (string, error) {
	_, _, ok, err := vaultstore.Load(vaultFile)
	if err != nil {
		return "", fmt.Errorf("keeperd: load vault: %w", err)
	}

	if !ok {
		password, err := promptutil.NewPasswordWithConfirmation("Create a new master password")
		if err != nil {
			return "", fmt.Errorf("keeperd: %w", err)
		}
		blob, err := vaultcrypto.Encrypt(vaultcrypto.Tree{}, password)
		if err != nil {
			return "", fmt.Errorf("keeperd: initialize vault: %w", err)
		}
		if err := vaultstore.Save(vaultFile, blob); err != nil {
			return "", fmt.Errorf("keeperd: save new vault: %w", err)
		}
		return password, nil
	}

	blob, _, _, err := vaultstore.Load(vaultFile)
	if err != nil {
		return "", fmt.Errorf("keeperd: load vault: %w", err)
	}

	password, err := promptutil.Password("Master password: ")
	if err != nil {
		return "", fmt.Errorf("keeperd: %w", err)
	}
	if _, err := vaultcrypto.Decrypt(blob, password); err != nil {
		return "", fmt.Errorf("keeperd: %w", vaultcrypto.ErrDecryptionFailed)
	}
	return password, nil
}

// Serve runs the accept loop until ctx is cancelled, then closes the
// listener and best-effort removes the socket and PID files.
func (a *Agent) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()
	go a.reportUptime(ctx)

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				a.cleanup()
				return nil
			default:
				return fmt.Errorf("keeperd: accept: %w", err)
			}
		}
		go a.handle(conn)
	}
}

func (a *Agent) cleanup() {
	os.Remove(a.paths.SocketFile)
	os.Remove(a.paths.PIDFile)
}

// handle services exactly one request on conn, then closes it. No session
// state survives across connections.
func (a *Agent) handle(conn net.Conn) {
	defer conn.Close()

	line, _ := bufio.NewReader(conn).ReadString('\n')
	line = strings.TrimSpace(line)

	if line != agentproto.GetVerb {
		a.recordRequest("bad_request")
		return
	}

	if _, err := conn.Write([]byte(a.password)); err != nil {
		a.logger.Warn("agent write failed", slog.String("error", err.Error()))
		a.recordRequest("write_error")
		return
	}
	a.recordRequest("ok")
}

// reportUptime updates the AgentUptime gauge once a second until ctx is
// cancelled, so a /metrics scrape always sees a value close to current.
func (a *Agent) reportUptime(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.AgentUptime.Set(time.Since(a.startedAt).Seconds())
		}
	}
}

func (a *Agent) recordRequest(status string) {
	if a.metrics != nil {
		a.metrics.AgentRequestsTotal.WithLabelValues(status).Inc()
	}
}
