package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pulse/internal/models"
)

// ErrNotFound is returned when a lookup matches no journal entry.
var ErrNotFound = errors.New("not found")

// SessionRepository implements [models.Repository] for [models.SessionRecord] journal entries.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts an ended session with the next journal sequence number.
func (r *SessionRepository) Create(rec *models.SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO sessions (id, sequence, transport, outcome, error, emitted, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		rec.ID(), sequence, rec.Transport(), rec.Outcome(), rec.Error(), rec.Emitted(),
		rec.OpenedAt().UTC(), rec.ClosedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	rec.SetSequence(sequence)
	return nil
}

// Get retrieves a journal entry by session ID
func (r *SessionRepository) Get(id string) (*models.SessionRecord, error) {
	query := `
		SELECT id, sequence, transport, outcome, error, emitted, opened_at, closed_at
		FROM sessions
		WHERE id = ?
	`

	rec, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns journal entries, newest first.
//
// Supported criteria: "outcome" (string), "transport" (string) and "limit" (int).
func (r *SessionRepository) List(criteria map[string]any) ([]*models.SessionRecord, error) {
	query := `
		SELECT id, sequence, transport, outcome, error, emitted, opened_at, closed_at
		FROM sessions
		WHERE 1 = 1
	`

	args := []any{}

	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	if transport, ok := criteria["transport"].(string); ok && transport != "" {
		query += " AND transport = ?"
		args = append(args, transport)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []*models.SessionRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Stats counts journal entries per outcome.
func (r *SessionRepository) Stats() (map[string]int, error) {
	rows, err := r.db.Query("SELECT outcome, COUNT(*) FROM sessions GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("failed to query session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan session stats: %w", err)
		}
		stats[outcome] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}

// Prune deletes entries for sessions closed before cutoff and returns how many were removed.
func (r *SessionRepository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM sessions WHERE closed_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads a single row into a [models.SessionRecord]
func (r *SessionRepository) scan(row scanner) (*models.SessionRecord, error) {
	var (
		id        string
		sequence  int
		transport string
		outcome   string
		errMsg    string
		emitted   int64
		openedAt  time.Time
		closedAt  time.Time
	)

	err := row.Scan(&id, &sequence, &transport, &outcome, &errMsg, &emitted, &openedAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	var cause error
	if errMsg != "" {
		cause = errors.New(errMsg)
	}

	rec := models.NewSessionRecord(id, transport, openedAt)
	rec.SetSequence(sequence)
	rec.Close(outcome, cause, emitted, closedAt)
	return rec, nil
}
