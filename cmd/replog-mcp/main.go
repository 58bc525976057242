package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/replog/internal/config"
	"github.com/claude/replog/internal/docstore"
	replogmcp "github.com/claude/replog/internal/mcp"
	"github.com/claude/replog/internal/workout"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (local store mode)")
	serverURL := flag.String("server", "", "RepLog server base URL (remote mode, e.g. http://replog:80)")
	flag.Parse()

	// stdout carries the MCP protocol, so logs go to stderr
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if (*configPath == "") == (*serverURL == "") {
		fmt.Fprintf(os.Stderr, "Usage: replog-mcp -config config.yaml | -server http://replog:80\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var ds replogmcp.DataSource

	if *serverURL != "" {
		ds = replogmcp.NewHTTPClient(*serverURL)
		log.Info("MCP remote mode", "server", *serverURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		ctx := context.Background()
		store, err := openStore(ctx, cfg, log)
		if err != nil {
			log.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
			os.Exit(1)
		}
		defer store.Close()

		ds = workout.NewLogbook(store, log)
		log.Info("MCP local mode", "driver", cfg.Store.Driver)
	}

	s := replogmcp.New(ds, Version, log)

	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
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
