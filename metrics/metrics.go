// Package metrics exposes Prometheus instrumentation for the bootstrap
// subsystem and a small HTTP server to scrape it from.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NodesBootstrapped counts completed Verify calls by node type.
	NodesBootstrapped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeident_nodes_bootstrapped_total",
		Help: "Completed node bootstraps by node type.",
	}, []string{"node_type"})

	// CredentialsIssued counts credential records created in the shared store.
	CredentialsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeident_credentials_issued_total",
		Help: "Credential records created in the shared store.",
	})

	// CredentialCacheHits counts resolutions satisfied by the local cache file.
	CredentialCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeident_credential_cache_hits_total",
		Help: "Credential resolutions satisfied by the local cache file.",
	})

	// BootstrapErrors counts failed Verify calls by node type.
	BootstrapErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeident_bootstrap_errors_total",
		Help: "Failed node bootstraps by node type.",
	}, []string{"node_type"})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener,
// separate from the diagnostics API.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New creates a metrics server for the named service listening on addr.
func New(name, addr string) (*MetricsServer, error) {
	if addr == "" {
		return nil, fmt.Errorf("metrics listen address must not be empty")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/metrics", http.StatusFound)
	})

	return &MetricsServer{
		name: name,
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// Name returns the service name this metrics server was created for.
func (m *MetricsServer) Name() string {
	return m.name
}

// Start runs the metrics server until Shutdown is called. It returns
// http.ErrServerClosed after a clean shutdown, like http.Server.
func (m *MetricsServer) Start() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
