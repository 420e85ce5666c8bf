package notar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KIWI0912/notar/internal/config"
	"github.com/KIWI0912/notar/internal/ledger"
	"github.com/KIWI0912/notar/internal/signer"
	"github.com/KIWI0912/notar/internal/store"
)

var SealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Anchor unsubmitted records into a new mined block",
	Long: `Seal collects every record not yet on the chain, wraps each content digest in a
transaction, mines a block over them, and updates the records' chain status.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		signerConfig := config.LoadSignerConfigFromCLI()
		if err := signerConfig.Validate(); err != nil {
			return fmt.Errorf("invalid signer configuration: %w", err)
		}

		contentStore, kv, err := openContentStore()
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		defer kv.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		handleInterrupt(cancel)

		bar := progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("Mining block..."),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
		)
		chain, err := openLedger(ctx, kv, func(nonce uint64) {
			_ = bar.Set64(int64(nonce))
		})
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}

		var sign signer.Signer
		if signerConfig.Enabled() {
			sign = signer.NewHTTPSigner(signerConfig.URL, signerConfig.MaxRetries)
		}

		return seal(ctx, contentStore, chain, sign)
	},
}

func init() {
	SealCmd.Flags().String("signer-url", "", "external signing service URL (optional)")
	SealCmd.Flags().Uint("signer-retries", 3, "maximum signer call retries")
	if err := viper.BindPFlags(SealCmd.Flags()); err != nil {
		slog.Error("Failed to bind sealCmd flags", "error", err)
	}
}

// seal builds one transaction per pending record, mines a block over them, and
// records the outcome in each record's chain status.
func seal(ctx context.Context, contentStore *store.ContentStore, chain *ledger.Ledger, sign signer.Signer) error {
	records, err := contentStore.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	var pending []store.Record
	for _, record := range records {
		if record.ChainStatus == store.StatusNotSubmitted || record.ChainStatus == store.StatusPending {
			pending = append(pending, record)
		}
	}
	if len(pending) == 0 {
		fmt.Println("no records to seal")
		return nil
	}

	txs := make([]ledger.Transaction, 0, len(pending))
	for _, record := range pending {
		tx := ledger.Transaction{
			ID:   uuid.NewString(),
			Type: "contract_deployment",
			Data: ledger.Payload{
				Kind: ledger.PayloadContractDeployment,
				Contract: &ledger.ContractDeployment{
					TemplateID:    record.TemplateRef,
					FileName:      record.FileName,
					ContentDigest: record.ContentDigest,
				},
			},
			Status: "pending",
		}

		if sign != nil {
			signature, err := sign.Sign(ctx, record.ContentDigest)
			if err != nil {
				return fmt.Errorf("failed to sign record %s: %w", record.ID, err)
			}
			tx.Signature = signature
		}

		txs = append(txs, tx)
	}

	for _, record := range pending {
		if record.ChainStatus != store.StatusNotSubmitted {
			continue
		}
		if err := contentStore.UpdateChainStatus(ctx, record.ID, store.StatusPending); err != nil {
			return fmt.Errorf("failed to mark record pending: %w", err)
		}
	}

	block, err := chain.CreateBlock(ctx, txs)
	switch {
	case errors.Is(err, ledger.ErrMiningExhausted):
		for _, record := range pending {
			if statusErr := contentStore.UpdateChainStatus(ctx, record.ID, store.StatusFailed); statusErr != nil {
				slog.Warn("Failed to mark record failed", "id", record.ID, "error", statusErr)
			}
		}
		return err
	case errors.Is(err, context.Canceled):
		// Records stay pending and are retried on the next seal.
		return err
	case err != nil:
		return fmt.Errorf("failed to create block: %w", err)
	}

	for _, record := range pending {
		if err := contentStore.UpdateChainStatus(ctx, record.ID, store.StatusConfirmed); err != nil {
			slog.Warn("Failed to mark record confirmed", "id", record.ID, "error", err)
		}
	}

	fmt.Printf("sealed %d records into block %d (nonce %d)\n%s\n", len(pending), block.Index, block.Nonce, block.Hash)
	return nil
}

// handleInterrupt handles interrupt signals for graceful shutdown.
func handleInterrupt(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		slog.Info("Received interrupt signal, shutting down...")
		cancel()
	}()
}
