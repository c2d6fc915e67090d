package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/core/ports/driving"
	"github.com/custodia-labs/chromasync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// Services wired by main.
var (
	indexService      driving.IndexService
	collectionService driving.CollectionService
	watchService      driving.WatchService
	openConfig        func(path string) (driven.ConfigStore, error)
	loadEnv           func() error
)

// configStore is loaded before every command runs; nil means defaults only.
var configStore driven.ConfigStore

var rootCmd = &cobra.Command{
	Use:   "chromasync",
	Short: "Sync document archives into Chroma collections",
	Long: `chromasync turns a document archive into a searchable Chroma collection.

It extracts the archive, splits every supported document into overlapping
chunks, embeds the chunks and keeps a local SQLite copy of the collection.
The remote collection is then reconciled with the local one, so re-running
on an unchanged archive changes nothing.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ~/.chromasync/config.toml; .toml, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services holds the driving ports the commands call into.
type Services struct {
	Index       driving.IndexService
	Collections driving.CollectionService
	Watch       driving.WatchService

	// OpenConfig loads the config file at path ("" for the default location).
	OpenConfig func(path string) (driven.ConfigStore, error)

	// LoadEnv merges .env files into the environment.
	LoadEnv func() error
}

// SetServices wires the services used by the commands.
func SetServices(s *Services) {
	indexService = s.Index
	collectionService = s.Collections
	watchService = s.Watch
	openConfig = s.OpenConfig
	loadEnv = s.LoadEnv
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initConfig(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if loadEnv != nil {
		if err := loadEnv(); err != nil {
			return err
		}
	}

	configStore = nil
	if openConfig == nil {
		return nil
	}
	store, err := openConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	configStore = store
	logger.Debug("Config file: %s", store.Path())
	return nil
}
