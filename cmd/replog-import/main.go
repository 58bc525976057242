package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/replog/internal/config"
	"github.com/claude/replog/internal/docstore"
	"github.com/claude/replog/internal/importer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("path", "", "path to gymEntries export JSON (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the store")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: replog-import -config config.yaml -path /path/to/gym-entries.json [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*exportPath); err != nil {
		log.Error("export file does not exist", "path", *exportPath)
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations (postgres keeps schema in migrations/, sqlite creates
	// its schema at open)
	if cfg.Store.Driver == "postgres" {
		if err := docstore.RunMigrations(cfg.Store.Postgres.DSN(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode — no data will be written to the store")
	}

	// Open document store
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("store opened", "driver", cfg.Store.Driver)

	// Run import
	imp := importer.New(store, log, *dryRun)
	stats, err := imp.Import(ctx, *exportPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"entries_imported", stats.EntriesImported,
		"entries_skipped", stats.EntriesSkipped,
		"legacy_entries", stats.LegacyEntries,
		"sessions_created", stats.SessionsCreated,
	)
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return docstore.OpenSQLite(cfg.Store.DataDir)
	case "postgres":
		return docstore.OpenPostgres(ctx, cfg.Store.Postgres.DSN(), log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
