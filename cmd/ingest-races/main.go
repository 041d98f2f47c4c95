package main

import (
	"context"
	"embed"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/formula1dl/ingest/internal/app"
	"github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// embeddedConfig is the default application configuration. Values can be overridden
// through INGEST_* environment variables or the .env file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// applicationMigrationsFS bundles the catalog migrations for every supported database.
//
//go:embed all:resources/migrations
var applicationMigrationsFS embed.FS

// adapterList splits a comma-separated environment variable. An unset variable enables every adapter.
func adapterList(envKey string) []string {
	var names []string
	for _, name := range strings.Split(os.Getenv(envKey), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func main() {
	queryMode := flag.Bool("query", false, "print the registered races table as JSON lines instead of running the ingestion")
	year := flag.Int("year", 0, "with -query, keep only races of this season")
	limit := flag.Int("limit", 0, "with -query, print at most this many rows")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	opts := app.Options{
		EnvFilePath:     envFilePath,
		EmbeddedConfig:  config.EmbeddedConfig(embeddedConfig),
		MigrationsFS:    applicationMigrationsFS,
		DBAdapters:      adapterList("DB_ADAPTERS"),
		StorageAdapters: adapterList("STORAGE_ADAPTERS"),
	}
	if *queryMode {
		opts.Query = &app.QueryOptions{Year: int32(*year), Limit: *limit}
	}

	code := app.RunApplication(ctx, opts)
	cancel()
	os.Exit(code)
}
