package notar

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KIWI0912/notar/internal/ledger"
)

var VerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the whole chain by hash recomputation",
	Long: `Verify recomputes every block's hash from its stored fields and checks every
linkage pointer, reporting the first block at which the chain diverges.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := openBackend()
		if err != nil {
			return fmt.Errorf("failed to open backend: %w", err)
		}
		defer kv.Close()

		chain, err := openLedger(cmd.Context(), kv, nil)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}

		if err := chain.Validate(); err != nil {
			var integrity *ledger.IntegrityError
			if errors.As(err, &integrity) {
				fmt.Printf("chain INVALID at block %d: %s\n", integrity.Index, integrity.Reason)
			}
			return err
		}

		info := chain.Info()
		fmt.Printf("chain valid (%d blocks)\n", info.BlockCount)
		return nil
	},
}

var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the chain block count and latest hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := openBackend()
		if err != nil {
			return fmt.Errorf("failed to open backend: %w", err)
		}
		defer kv.Close()

		chain, err := openLedger(cmd.Context(), kv, nil)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}

		info := chain.Info()
		fmt.Printf("blocks: %d\nlatest: %s\n", info.BlockCount, info.LatestHash)
		return nil
	},
}
