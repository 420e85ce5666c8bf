package notar

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/KIWI0912/notar/internal/config"
	"github.com/KIWI0912/notar/internal/store"
)

var SaveCmd = &cobra.Command{
	Use:   "save [files...]",
	Short: "Store document blobs in the content-addressable record store",
	Long: `Save digests each file, deduplicates byte-identical content, and persists a
record per distinct blob. Saving the same content twice returns the existing record id.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storeConfig := config.LoadStoreConfigFromCLI()
		if err := storeConfig.Validate(); err != nil {
			return fmt.Errorf("invalid store configuration: %w", err)
		}

		contentStore, kv, err := openContentStore()
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		defer kv.Close()

		meta := store.Metadata{
			TemplateRef: viper.GetString("template"),
			Fields:      toFieldMap(viper.GetStringMapString("field")),
		}

		return saveFiles(cmd, contentStore, meta, args, storeConfig.MaxConcurrency)
	},
}

func init() {
	SaveCmd.Flags().StringP("template", "t", "", "template reference recorded in the metadata")
	SaveCmd.Flags().StringToStringP("field", "f", nil, "metadata field as name=value (repeatable)")
	SaveCmd.Flags().UintP("max-concurrency", "c", 4, "maximum concurrent file saves")
	if err := viper.BindPFlags(SaveCmd.Flags()); err != nil {
		slog.Error("Failed to bind saveCmd flags", "error", err)
	}
}

func toFieldMap(fields map[string]string) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	out := make(map[string]any, len(fields))
	for name, value := range fields {
		out[name] = value
	}
	return out
}

// saveFiles persists each file as a record, bounded by maxConcurrency. Results
// are printed in argument order once every save has finished.
func saveFiles(cmd *cobra.Command, contentStore *store.ContentStore, meta store.Metadata, paths []string, maxConcurrency uint) error {
	var bar *progressbar.ProgressBar
	if len(paths) > 1 {
		bar = progressbar.NewOptions64(
			int64(len(paths)),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Saving files..."),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	eg, ctx := errgroup.WithContext(cmd.Context())
	sem := make(chan struct{}, maxConcurrency)

	var mu sync.Mutex
	ids := make([]string, len(paths))

	for i, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()

			blob, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			fileMeta := meta
			fileMeta.FileName = filepath.Base(path)

			id, err := contentStore.Save(ctx, fileMeta, blob)
			if err != nil {
				return fmt.Errorf("failed to save %s: %w", path, err)
			}

			mu.Lock()
			ids[i] = id
			mu.Unlock()

			if bar != nil {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	if bar != nil {
		if err := bar.Finish(); err != nil {
			return fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}

	for i, path := range paths {
		fmt.Printf("%s %s\n", ids[i], path)
	}

	return nil
}
