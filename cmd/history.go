package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pulse/internal/formatter"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/shared"
)

// withJournal loads config, opens the journal and hands a repository to fn.
func (r *Runner) withJournal(cmd *cli.Command, fn func(*repositories.SessionRepository) error) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if !r.config.Database.Enabled {
		return fmt.Errorf("%w: the session journal is disabled (database.enabled = false)", shared.ErrInvalidConfig)
	}

	db, err := r.openJournal()
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	return fn(repositories.NewSessionRepository(db))
}

// HistoryList prints ended sessions from the journal.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if outcome := cmd.String("outcome"); outcome != "" {
		switch outcome {
		case models.OutcomeCompleted, models.OutcomeFailed, models.OutcomeCancelled:
			criteria["outcome"] = outcome
		default:
			return fmt.Errorf("%w: unknown outcome %q", shared.ErrInvalidArgument, outcome)
		}
	}
	if transport := cmd.String("transport"); transport != "" {
		criteria["transport"] = transport
	}

	return r.withJournal(cmd, func(repo *repositories.SessionRepository) error {
		records, err := repo.List(criteria)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		format := cmd.String("format")
		if path := cmd.String("output"); path != "" {
			if err := formatter.WriteExport(records, format, path); err != nil {
				return err
			}
			r.logger.Info("history exported", "path", path, "sessions", len(records), "format", format)
			return r.writePlain("✓ Exported %d sessions to %s\n", len(records), path)
		}

		data, err := formatter.Render(records, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	})
}

// HistoryStats prints how many journaled sessions ended each way.
func (r *Runner) HistoryStats(ctx context.Context, cmd *cli.Command) error {
	return r.withJournal(cmd, func(repo *repositories.SessionRepository) error {
		stats, err := repo.Stats()
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w", err)
		}

		if cmd.Bool("json") {
			return r.writeJSON(stats, true)
		}

		outcomes := make([]string, 0, len(stats))
		total := 0
		for outcome, n := range stats {
			outcomes = append(outcomes, outcome)
			total += n
		}
		sort.Strings(outcomes)

		r.writePlainHeader(fmt.Sprintf("Sessions: %d", total))
		for _, outcome := range outcomes {
			r.writePlain("%-10s %d\n", outcome, stats[outcome])
		}
		return nil
	})
}

// HistoryPrune deletes journal entries older than --older-than.
func (r *Runner) HistoryPrune(ctx context.Context, cmd *cli.Command) error {
	age := cmd.Duration("older-than")
	if age <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	return r.withJournal(cmd, func(repo *repositories.SessionRepository) error {
		cutoff := time.Now().Add(-age)
		n, err := repo.Prune(cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune journal: %w", err)
		}

		r.logger.Info("journal pruned", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
		return r.writePlain("✓ Deleted %d sessions closed before %s\n", n, cutoff.Format(time.RFC3339))
	})
}
