package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/jellytodo/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Wrote %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set todoist.api_token (or TODOIST_API_KEY)\n")
	r.writePlain("2. Set todoist.project_id (or TODOIST_PROJECT_ID)\n")
	r.writePlain("3. Point the Jellyfin webhook plugin at http://<host>:<port>/webhook\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations, or rolls back the latest one with --rollback.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", shared.ErrMissingConfig)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	} else {
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ %s at schema version %d\n", config.Database.Path, version)
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					logLevelFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
