// package repositories provides the SQLite session journal.
package repositories

import (
	"database/sql"
	"fmt"
)

// Querier is satisfied by both [sql.DB] and [sql.Tx].
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence bumps and returns the counter kept in <table>_sequence (a single row with id = 1).
//
// Pass a [sql.Tx] to make the bump part of the insert that consumes it.
func NextSequence(q Querier, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
