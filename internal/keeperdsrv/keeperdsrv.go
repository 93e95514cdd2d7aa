// Package keeperdsrv is the agent's local-only debug HTTP surface: a
// /healthz liveness check and a Prometheus /metrics endpoint, bound to
// loopback and disabled unless explicitly opted into. Nothing on this mux
// ever touches the vault or the in-memory password.
package keeperdsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arcbound/keeper/internal/logging"
	"github.com/arcbound/keeper/internal/metrics"
	"github.com/arcbound/keeper/internal/tracing"
)

// Start binds addr (which must be a loopback address) and serves /healthz
// and /metrics until the returned shutdown func is called.
func Start(addr string, reg *metrics.Registry, logger *slog.Logger) (func(context.Context) error, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("keeperdsrv: invalid address %q: %w", addr, err)
	}
	if !isLoopback(host) {
		return nil, fmt.Errorf("keeperdsrv: refusing to bind non-loopback address %q", addr)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))
	r.Use(tracing.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", reg.Handler())

	srv := &http.Server{Addr: addr, Handler: r}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("keeperdsrv: listen on %s: %w", addr, err)
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warn("debug server exited", slog.String("error", err.Error()))
		}
	}()

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
