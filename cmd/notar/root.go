package notar

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validLogLevels = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	validLogLevelsStr = strings.Join(slices.Sorted(maps.Keys(validLogLevels)), "|")
)

var RootCmd = &cobra.Command{
	Use:   "notar",
	Short: "Tamper-evident record keeping for generated documents",
	Long: `notar keeps a content-addressable store of generated document records and
anchors their digests into a proof-of-work hash chain that can be validated on demand.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := viper.GetString("logLevel")
		if err := setLogLevel(logLevel); err != nil {
			return err
		}
		slog.Debug("Application started", "version", Version)
		return nil
	},
}

// setLogLevel sets the log level
func setLogLevel(logLevel string) error {
	level, exists := validLogLevels[logLevel]
	if !exists {
		return fmt.Errorf("invalid log level: %s. Valid log levels are: %s", logLevel, validLogLevelsStr)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func init() {
	RootCmd.PersistentFlags().StringP("logLevel", "l", "info", fmt.Sprintf("set log level (%s)", validLogLevelsStr))
	RootCmd.PersistentFlags().StringP("data-dir", "d", "data", "data directory for the file backend")
	RootCmd.PersistentFlags().StringP("postgres-conn", "p", "", "PostgreSQL connection string (overrides the file backend)")
	RootCmd.PersistentFlags().Uint("postgres-max-conns", 10, "maximum PostgreSQL connections")
	RootCmd.PersistentFlags().Int("index-cap", 500, "maximum number of indexed records before eviction")
	RootCmd.PersistentFlags().Uint("difficulty", 3, "number of leading zero hex characters a block hash must have")
	RootCmd.PersistentFlags().Uint64("max-nonce", 1<<32, "maximum nonce tried before mining fails")
	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		slog.Error("Failed to bind rootCmd flags", "error", err)
	}

	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true

	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.notar")
	viper.AddConfigPath("/etc/notar")

	viper.SetEnvPrefix("notar")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	RootCmd.AddCommand(SaveCmd)
	RootCmd.AddCommand(ListCmd)
	RootCmd.AddCommand(DeleteCmd)
	RootCmd.AddCommand(ClearCmd)
	RootCmd.AddCommand(ExportCmd)
	RootCmd.AddCommand(SealCmd)
	RootCmd.AddCommand(VerifyCmd)
	RootCmd.AddCommand(InfoCmd)
	RootCmd.AddCommand(MetricsCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := viper.ReadInConfig(); err == nil {
		slog.Info("Using config file", "file", viper.ConfigFileUsed())
	} else {
		slog.Info("No config file found")
	}

	if err := RootCmd.Execute(); err != nil {
		slog.Error("An error occurred", "error", err)
		os.Exit(1)
	}
}
