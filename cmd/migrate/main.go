package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/minelance/minelance-backend/pkg/config"
	"github.com/minelance/minelance-backend/pkg/db"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exit(ctx, logg, errors.New("missing -name for create"))
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			exit(ctx, logg, fmt.Errorf("create migration: %w", err))
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			exit(ctx, logg, fmt.Errorf("migration validation failed: %w", err))
		}
		logg.Info(ctx, "migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, fmt.Errorf("load config: %w", err))
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, fmt.Errorf("bootstrap database: %w", err))
	}
	runErr := run(ctx, dbClient, opts)
	if closeErr := dbClient.Close(); closeErr != nil {
		logg.Error(ctx, "error closing database", closeErr)
	}
	if runErr != nil {
		exit(ctx, logg, runErr)
	}
	logg.Info(ctx, "migration command complete")
}

func run(ctx context.Context, dbClient *db.Client, opts options) error {
	sqlDB, err := dbClient.SQL()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func exit(ctx context.Context, logg *logger.Logger, err error) {
	logg.Error(ctx, "migrate failed", err)
	os.Exit(1)
}
