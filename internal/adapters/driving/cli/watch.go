package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

var watchFlags settingsFlags

var watchCmd = &cobra.Command{
	Use:   "watch <archive>",
	Short: "Re-index an archive whenever it changes",
	Long: `Indexes the archive once and then again each time the file is rewritten
or replaced. Unchanged content produces an empty plan, so spurious change
events cost one extraction pass and nothing remotely. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addSettingsFlags(watchCmd, &watchFlags)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchService == nil {
		return errors.New("watch service not configured")
	}

	settings := resolveSettings(cmd, &watchFlags)
	out := cmd.OutOrStdout()
	onRun := func(report *domain.RunReport, err error) {
		cmd.Printf("--- %s\n", time.Now().Format("15:04:05"))
		printReport(out, report, false)
		if err != nil {
			cmd.PrintErrf("Error: %v\n", err)
		}
	}

	return watchService.Run(cmd.Context(), args[0], settings, logProgress(), onRun)
}
