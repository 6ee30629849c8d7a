package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/shared"
)

// Setup writes a config file when none exists, then initializes the journal database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Config file created: %s\n", configPath)
	}

	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	if !r.config.Database.Enabled {
		r.logger.Info("session journal disabled, skipping database setup")
		return r.writePlain("Session journal disabled; nothing else to set up\n")
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to inspect migrations: %w", err)
	}

	r.logger.Info("running database migrations", "pending", pending)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Journal ready at %s (%d migrations applied)\n", r.config.Database.Path, pending)
}

// SetupRollback reverts the most recently applied journal migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return r.writePlain("✓ Rolled back the latest migration\n")
}
