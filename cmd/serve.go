package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/metrics"
	"github.com/desertthunder/pulse/internal/progress"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/session"
	"github.com/desertthunder/pulse/internal/shared"
)

// Serve runs the streaming server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	cfg := r.config

	counters, err := progress.NewCounterSource(progress.Scope(cfg.Session.CounterScope))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}

	var journal session.Journal
	if cfg.Database.Enabled {
		db, err := r.openJournal()
		if err != nil {
			return err
		}
		defer db.Close()
		journal = repositories.NewSessionRepository(db)
	}

	m := metrics.NewMetrics()
	manager := session.NewManager(session.Options{
		Interval:    cfg.Session.Interval,
		FailEvery:   cfg.Session.FailEvery,
		MaxTicks:    cfg.Session.MaxTicks,
		MaxDuration: cfg.Session.MaxDuration,
		Counters:    counters,
		Journal:     journal,
		Metrics:     m,
		Logger:      r.logger,
	})

	srv := server.New(server.Options{
		Addr: cfg.Address(),
		Stream: server.StreamOptions{
			Keepalive:   cfg.Server.Keepalive,
			Buffer:      cfg.Server.Buffer,
			AllowOrigin: cfg.Server.CORSAllowOrigin,
		},
		Manager: manager,
		Metrics: m,
		Limiter: server.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		Logger:  r.logger,
	})

	r.logger.Info("starting server",
		"addr", cfg.Address(),
		"interval", cfg.Session.Interval,
		"fail_every", cfg.Session.FailEvery,
		"counter_scope", cfg.Session.CounterScope,
		"journal", cfg.Database.Enabled,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return err
	}
	r.logger.Info("server stopped", "sessions_opened", manager.Opened())
	return nil
}

// openJournal opens the configured database and brings its schema up to date.
func (r *Runner) openJournal() (*sql.DB, error) {
	cfg := r.config.Database

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Debug("journal ready", "path", cfg.Path)
	return db, nil
}
