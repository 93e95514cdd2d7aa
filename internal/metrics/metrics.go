// Package metrics exposes Prometheus counters for vault operations and the
// unlock agent. Nothing here ever carries secret material as a label value —
// only operation names, outcome strings, and counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the counters the keeper CLI and agent record against.
type Registry struct {
	reg *prometheus.Registry

	OperationsTotal    *prometheus.CounterVec
	DecryptFailures    prometheus.Counter
	AgentRequestsTotal *prometheus.CounterVec
	AgentUptime        prometheus.Gauge
}

// New builds a Registry with its own isolated prometheus.Registry rather
// than the global default, so tests never collide with each other.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_operations_total",
			Help: "Total vault operations performed by the keeper CLI",
		}, []string{"operation", "status"}),
		DecryptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_decrypt_failures_total",
			Help: "Total vault decryption failures (wrong password or corrupted data)",
		}),
		AgentRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_agent_requests_total",
			Help: "Total GET requests served by the unlock agent",
		}, []string{"status"}),
		AgentUptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_agent_uptime_seconds",
			Help: "Seconds since the unlock agent finished startup and began serving",
		}),
	}
	reg.MustRegister(m.OperationsTotal, m.DecryptFailures, m.AgentRequestsTotal, m.AgentUptime)
	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
