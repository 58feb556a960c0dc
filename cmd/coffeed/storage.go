package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"cryptocoffee/config"
	"cryptocoffee/storage"
)

// ledgerDSN resolves a SQLite path against the config file directory and
// passes URLs and SQLite URIs through unchanged.
func ledgerDSN(configPath, dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" || strings.Contains(trimmed, "://") || strings.HasPrefix(trimmed, "file:") {
		return trimmed
	}
	return config.ResolvePath(configPath, trimmed)
}

// openDatabase opens the configured ledger backend and names it for logs.
func openDatabase(configPath string, cfg *config.Config) (storage.Database, string, error) {
	if dsn := ledgerDSN(configPath, cfg.Storage.DSN); dsn != "" {
		db, err := storage.OpenSQL(dsn)
		if err != nil {
			return nil, "", err
		}
		backend := "sqlite"
		if storage.IsPostgresDSN(dsn) {
			backend = "postgres"
		}
		return db, backend, nil
	}
	db, err := storage.NewLevelDB(config.ResolvePath(configPath, cfg.DataDir))
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, "leveldb", nil
}

const snapshotUsage = "usage: coffeed snapshot [--config path] export|restore <file.parquet>"

// runSnapshot copies the ledger keyspace to or from a Parquet file. The node
// must not be running against the same database.
func runSnapshot(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("coffeed snapshot", pflag.ContinueOnError)
	configFile := flags.String("config", "./config.toml", "Path to the configuration file")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() != 2 {
		return errors.New(snapshotUsage)
	}
	action, path := flags.Arg(0), flags.Arg(1)

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, backend, err := openDatabase(*configFile, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "export":
		rows, err := storage.ExportSnapshot(path, db)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "exported %d records from %s to %s\n", rows, backend, path)
		return err
	case "restore":
		rows, err := storage.RestoreSnapshot(path, db)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "restored %d records into %s from %s\n", rows, backend, path)
		return err
	default:
		return fmt.Errorf("unknown snapshot action %q\n%s", action, snapshotUsage)
	}
}
