package notar

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		contentStore, kv, err := openContentStore()
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		defer kv.Close()

		records, err := contentStore.LoadAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("no records")
			return nil
		}
		for _, record := range records {
			fmt.Printf("%s  %s  %-13s  %6d bytes  %s\n",
				record.ID, record.ContentDigest, record.ChainStatus, record.SizeBytes, record.FileName)
		}

		return nil
	},
}

var DeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a record and its index entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentStore, kv, err := openContentStore()
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		defer kv.Close()

		if err := contentStore.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		fmt.Println("deleted", args[0])
		return nil
	},
}

var ClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every indexed record and empty the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		contentStore, kv, err := openContentStore()
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		defer kv.Close()

		if err := contentStore.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}

		fmt.Println("cleared")
		return nil
	},
}

var ExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Rebuild a record's original bytes to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentStore, kv, err := openContentStore()
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		defer kv.Close()

		record, err := contentStore.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load record: %w", err)
		}

		blob, ok := contentStore.RebuildBlob(record)
		if !ok {
			return fmt.Errorf("record %s carries no encoded payload; regenerate the content from its template", record.ID)
		}

		out := viper.GetString("export-out")
		if out == "" {
			out = record.FileName
		}
		if err := os.WriteFile(out, blob, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		fmt.Printf("exported %s to %s (%d bytes)\n", record.ID, out, len(blob))
		return nil
	},
}

func init() {
	ExportCmd.Flags().StringP("export-out", "o", "", "output file (defaults to the recorded file name)")
	if err := viper.BindPFlags(ExportCmd.Flags()); err != nil {
		slog.Error("Failed to bind exportCmd flags", "error", err)
	}
}
