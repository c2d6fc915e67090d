package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	collectionsRemote    remoteFlags
	collectionsOutputDir string
	deleteAllConfirmed   bool
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"collection"},
	Short:   "Manage remote and local collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remote collections",
	Args:  cobra.NoArgs,
	RunE:  runCollectionsList,
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a remote collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsDelete,
}

var collectionsDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every remote collection",
	Long:  `Deletes every collection in the configured tenant and database. Requires --yes.`,
	Args:  cobra.NoArgs,
	RunE:  runCollectionsDeleteAll,
}

var collectionsInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show the manifest of a local collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsInfo,
}

func init() {
	for _, c := range []*cobra.Command{collectionsListCmd, collectionsDeleteCmd, collectionsDeleteAllCmd} {
		addRemoteFlags(c, &collectionsRemote)
	}
	collectionsDeleteAllCmd.Flags().BoolVar(&deleteAllConfirmed, "yes", false, "confirm deletion")
	collectionsInfoCmd.Flags().StringVar(&collectionsOutputDir, "output-dir", ".", "directory holding local collections")

	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsDeleteCmd)
	collectionsCmd.AddCommand(collectionsDeleteAllCmd)
	collectionsCmd.AddCommand(collectionsInfoCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func runCollectionsList(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return errors.New("collection service not configured")
	}

	collections, err := collectionService.List(cmd.Context(), resolveRemote(cmd, &collectionsRemote))
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	if len(collections) == 0 {
		cmd.Println("No collections.")
		return nil
	}

	st := stylesFor(cmd.OutOrStdout())
	for i := range collections {
		c := &collections[i]
		line := st.Label.Render(c.Name)
		if model := c.Model(); model != "" {
			line += st.Muted.Render(fmt.Sprintf("%s, %d dims", model, c.Dimensions()))
		}
		cmd.Println(line)
	}
	return nil
}

func runCollectionsDelete(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errors.New("collection service not configured")
	}

	if err := collectionService.Delete(cmd.Context(), resolveRemote(cmd, &collectionsRemote), args[0]); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	cmd.Printf("Deleted collection %s\n", args[0])
	return nil
}

func runCollectionsDeleteAll(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return errors.New("collection service not configured")
	}
	if !deleteAllConfirmed {
		return errors.New("refusing to delete every collection without --yes")
	}

	deleted, err := collectionService.DeleteAll(cmd.Context(), resolveRemote(cmd, &collectionsRemote))
	cmd.Printf("Deleted collections: %s\n", joinNames(deleted))
	if err != nil {
		return fmt.Errorf("deleting collections: %w", err)
	}
	return nil
}

func runCollectionsInfo(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return errors.New("collection service not configured")
	}

	dir := defaultSettings(configStore).OutputDir
	if cmd.Flags().Changed("output-dir") {
		dir = collectionsOutputDir
	}
	info, err := collectionService.LocalInfo(cmd.Context(), dir, args[0])
	if err != nil {
		return fmt.Errorf("reading local collection: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	row := func(label string, value any) {
		cmd.Println(st.Label.Render(label) + fmt.Sprint(value))
	}
	cmd.Println(st.Title.Render("Collection " + info.Name))
	row("Records", info.Records)
	if m := info.Manifest; m != nil {
		row("Model", m.ModelName)
		row("Dimensions", m.EmbeddingDimensionality)
		row("Chunking", fmt.Sprintf("%d/%d", m.ChunkSize, m.ChunkOverlap))
		if m.SourceArchive != "" {
			row("Archive", m.SourceArchive)
		}
		row("Last run", m.LastRunID)
		row("Updated", m.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
