package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chromasync/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/logger"
)

var (
	indexFlags    settingsFlags
	indexProgress bool
	indexShowIDs  bool
)

var indexCmd = &cobra.Command{
	Use:   "index <archive>",
	Short: "Index an archive and sync it to Chroma",
	Long: `Extracts the archive, chunks and embeds every supported document, writes
the local collection and then reconciles the remote collection with it.

The archive may be a .zip, .tar, .tar.gz, .tar.zst or .tar.lz4 file, or a
directory. Only chunks whose content changed since the last run are
embedded again. The command fails if any chunk could not be synced; the
ids that are missing remotely are listed.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	addSettingsFlags(indexCmd, &indexFlags)
	indexCmd.Flags().BoolVar(&indexProgress, "progress", false, "show a progress view when attached to a terminal")
	indexCmd.Flags().BoolVar(&indexShowIDs, "show-ids", false, "list the planned ids")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	settings := resolveSettings(cmd, &indexFlags)
	report, err := runPipeline(cmd, "Indexing "+args[0], indexProgress,
		func(ctx context.Context, observer domain.ProgressObserver) (*domain.RunReport, error) {
			return indexService.Index(ctx, args[0], settings, observer)
		})
	printReport(cmd.OutOrStdout(), report, indexShowIDs)
	return err
}

// runPipeline runs fn behind the progress view when asked for and the
// output is a terminal, otherwise with progress going to the debug log.
func runPipeline(cmd *cobra.Command, title string, showProgress bool, fn progress.RunFunc) (*domain.RunReport, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if showProgress && isTerminal(cmd.OutOrStdout()) {
		return progress.Run(ctx, title, fn)
	}
	return fn(ctx, logProgress())
}

// logProgress logs stage changes and the final count of each stage.
func logProgress() domain.ProgressObserver {
	var (
		mu   sync.Mutex
		last domain.ProgressEvent
	)
	return domain.ProgressFunc(func(e domain.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if e.Stage != last.Stage {
			if last.Stage != "" {
				logger.Debug("%s: %d/%d", last.Stage, last.Done, last.Total)
			}
			logger.Debug("Stage %s", e.Stage)
		}
		last = e
	})
}
