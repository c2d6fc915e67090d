package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

var (
	planFlags   settingsFlags
	planShowIDs bool
)

var planCmd = &cobra.Command{
	Use:   "plan <archive>",
	Short: "Show what an index run would change remotely",
	Long: `Runs the pipeline up to the remote diff and prints the sync plan: the
chunk ids that would be added, updated and deleted. The local collection is
brought up to date; the remote collection is not modified.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	addSettingsFlags(planCmd, &planFlags)
	planCmd.Flags().BoolVar(&planShowIDs, "show-ids", false, "list the planned ids")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	settings := resolveSettings(cmd, &planFlags)
	report, err := runPipeline(cmd, "Planning "+args[0], false,
		func(ctx context.Context, observer domain.ProgressObserver) (*domain.RunReport, error) {
			return indexService.Plan(ctx, args[0], settings, observer)
		})
	printReport(cmd.OutOrStdout(), report, planShowIDs)
	return err
}
