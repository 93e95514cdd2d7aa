package keeperd

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/arcbound/keeper/internal/agentproto"
	"github.com/arcbound/keeper/internal/config"
)

func testPaths(t *testing.T) config.Paths {
	t.Helper()
	dir := t.TempDir()
	return config.Paths{
		SocketFile: filepath.Join(dir, "keeper.sock"),
		PIDFile:    filepath.Join(dir, "keeper.pid"),
	}
}

func TestGet_NoSocket(t *testing.T) {
	paths := testPaths(t)
	_, err := Get(paths)
	if err == nil {
		t.Fatal("expected error when socket does not exist")
	}
}

func TestGet_EmptyResponseIsError(t *testing.T) {
	paths := testPaths(t)
	listener, err := net.Listen("unix", paths.SocketFile)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		conn.Close() // close without writing anything
	}()

	_, err = Get(paths)
	if err == nil {
		t.Error("expected error for empty agent response")
	}
}

func TestGet_ReturnsPassword(t *testing.T) {
	paths := testPaths(t)
	listener, err := net.Listen("unix", paths.SocketFile)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, len(agentproto.GetRequest))
		conn.Read(buf)
		conn.Write([]byte("the-password"))
	}()

	got, err := Get(paths)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "the-password" {
		t.Errorf("got %q, want %q", got, "the-password")
	}
}

func TestStatus_NotRunning(t *testing.T) {
	paths := testPaths(t)
	status, err := Status(paths)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != "not running" {
		t.Errorf("status = %q, want %q", status, "not running")
	}
}

func TestStop_NotRunningIsNoop(t *testing.T) {
	paths := testPaths(t)
	if err := Stop(paths); err != nil {
		t.Fatalf("Stop on non-running agent returned error: %v", err)
	}
}

func TestStop_MissingPIDFileCleansUpSocket(t *testing.T) {
	paths := testPaths(t)
	if err := os.WriteFile(paths.SocketFile, []byte(""), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Stop(paths); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(paths.SocketFile); !os.IsNotExist(err) {
		t.Error("expected socket file to be removed")
	}
}
