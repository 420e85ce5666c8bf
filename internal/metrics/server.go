// Package metrics exposes chain and store gauges over a Prometheus endpoint,
// backed by the PostgreSQL key-value table.
package metrics

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KIWI0912/notar/internal/metrics/collectors"
)

// CreateMetricsServer registers the notar collectors on a fresh registry and
// starts serving /metrics on addr. Shutting the server down is the caller's
// responsibility.
func CreateMetricsServer(db *sql.DB, addr string) (*http.Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewRecordCountCollector(db),
		collectors.NewConfirmedRecordCountCollector(db),
		collectors.NewBlockCountCollector(db),
	)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux}

	go func() {
		slog.Info("Metrics server listening", "addr", addr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return server, nil
}
