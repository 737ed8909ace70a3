// openbook-reindex rebuilds both search corpora from the catalog tables.
// Run it when the incremental index is suspected to have diverged; the
// rebuild happens in one transaction, so searches against a live server
// keep working while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/deidaraiorek/openbook/internal/analyzer"
	"github.com/deidaraiorek/openbook/internal/config"
	"github.com/deidaraiorek/openbook/internal/logger"
	"github.com/deidaraiorek/openbook/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("reindex")

	store, err := storage.Open(cfg.Database.Path, analyzer.New(cfg.Search.Stemming))
	if err != nil {
		log.Error("opening store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	stats, err := store.Reindex(context.Background())
	if err != nil {
		log.Error("reindex failed", "error", err)
		os.Exit(1)
	}
	log.Info("reindex finished", "books", stats.Books, "authors", stats.Authors)
}
