package notar

import (
	"context"
	"fmt"

	"github.com/KIWI0912/notar/internal/config"
	"github.com/KIWI0912/notar/internal/kvstore"
	"github.com/KIWI0912/notar/internal/ledger"
	"github.com/KIWI0912/notar/internal/store"
)

// openBackend picks the persistence backend from the CLI configuration:
// PostgreSQL when a connection string is set, the file backend otherwise.
func openBackend() (kvstore.Store, error) {
	postgresConfig := config.LoadPostgresConfigFromCLI()
	if postgresConfig.Enabled() {
		if err := postgresConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid PostgreSQL configuration: %w", err)
		}
		return kvstore.NewPostgresStore(postgresConfig.ConnString, postgresConfig.MaxConns)
	}

	storeConfig := config.LoadStoreConfigFromCLI()
	if storeConfig.DataDir == "" {
		return nil, fmt.Errorf("missing data directory")
	}
	return kvstore.NewFileStore(storeConfig.DataDir)
}

// openContentStore opens the record store over the configured backend.
func openContentStore() (*store.ContentStore, kvstore.Store, error) {
	kv, err := openBackend()
	if err != nil {
		return nil, nil, err
	}

	return store.New(kv, config.LoadStoreConfigFromCLI().IndexCap), kv, nil
}

// openLedger opens the chain over the configured backend, creating the genesis
// block if needed. onNonce is an optional mining progress hook.
func openLedger(ctx context.Context, kv kvstore.Store, onNonce func(uint64)) (*ledger.Ledger, error) {
	ledgerConfig := config.LoadLedgerConfigFromCLI()
	if err := ledgerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}

	return ledger.New(ctx, kv, ledger.Options{
		Difficulty: uint8(ledgerConfig.Difficulty),
		MaxNonce:   ledgerConfig.MaxNonce,
		OnNonce:    onNonce,
	})
}
