// Command chromasync indexes document archives into Chroma collections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/chromasync/internal/adapters/driven/ai"
	"github.com/custodia-labs/chromasync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/chromasync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/chromasync/internal/adapters/driven/vectorstore/chroma"
	"github.com/custodia-labs/chromasync/internal/adapters/driven/watcher"
	"github.com/custodia-labs/chromasync/internal/adapters/driving/cli"
	"github.com/custodia-labs/chromasync/internal/archive"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
	"github.com/custodia-labs/chromasync/internal/core/services"
	"github.com/custodia-labs/chromasync/internal/logger"
	"github.com/custodia-labs/chromasync/internal/normalisers/plaintext"
	"github.com/custodia-labs/chromasync/internal/postprocessors"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetServices(wire())

	if err := cli.Execute(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

// wire connects the driving services to their adapters.
func wire() *cli.Services {
	index := services.NewIndexService(services.IndexDeps{
		OpenSource:  archive.OpenSource,
		Normaliser:  plaintext.New(),
		Pipelines:   postprocessors.PipelineFactory,
		Embeddings:  ai.CreateAndValidateEmbeddingService,
		OpenLocal:   sqlite.Open,
		OpenRemote:  chroma.New,
		LocalDirFor: sqlite.CollectionDir,
	})

	newWatcher := func() (driven.FileWatcher, error) {
		w, err := watcher.New(watcher.DefaultDebounce)
		if err != nil {
			return nil, fmt.Errorf("creating watcher: %w", err)
		}
		return w, nil
	}

	return &cli.Services{
		Index:       index,
		Collections: services.NewCollectionService(chroma.New, sqlite.Open),
		Watch:       services.NewWatchService(index, newWatcher),
		OpenConfig: func(path string) (driven.ConfigStore, error) {
			return file.NewConfigStore(path)
		},
		LoadEnv: func() error {
			return file.LoadEnv()
		},
	}
}
