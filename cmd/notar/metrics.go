package notar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KIWI0912/notar/internal/config"
	"github.com/KIWI0912/notar/internal/kvstore"
	"github.com/KIWI0912/notar/internal/metrics"
)

var MetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve Prometheus metrics over the PostgreSQL backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsConfig := config.LoadMetricsConfigFromCLI()
		if err := metricsConfig.Validate(); err != nil {
			return fmt.Errorf("invalid metrics configuration: %w", err)
		}

		postgresConfig := config.LoadPostgresConfigFromCLI()
		if err := postgresConfig.Validate(); err != nil {
			return fmt.Errorf("metrics require the PostgreSQL backend: %w", err)
		}

		kv, err := kvstore.NewPostgresStore(postgresConfig.ConnString, postgresConfig.MaxConns)
		if err != nil {
			return fmt.Errorf("failed to open PostgreSQL backend: %w", err)
		}
		defer kv.Close()

		server, err := metrics.CreateMetricsServer(kv.DB(), metricsConfig.Addr)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		handleInterrupt(cancel)

		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}

		return nil
	},
}

func init() {
	MetricsCmd.Flags().String("prometheus-addr", "0.0.0.0:2112", "address and port of the Prometheus metrics server")
	if err := viper.BindPFlags(MetricsCmd.Flags()); err != nil {
		slog.Error("Failed to bind metricsCmd flags", "error", err)
	}
}
