package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ratebot/internal/config"
)

// StatsRepository defines DB operations for per-command usage counters.
type StatsRepository interface {
	Increment(ctx context.Context, command string) error
	All(ctx context.Context) (map[string]int64, error)
}

// SQLStatsRepository is an implementation of StatsRepository over database/sql.
type SQLStatsRepository struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLStatsRepository creates a new SQLStatsRepository for the given driver name.
func NewSQLStatsRepository(db *sql.DB, driver string) *SQLStatsRepository {
	return &SQLStatsRepository{db: db, dialect: dialect(driver)}
}

// Increment creates the counter at 1 or adds 1 in a single statement, so
// concurrent callers never lose an update.
func (r *SQLStatsRepository) Increment(ctx context.Context, command string) error {
	query := `INSERT INTO stats (command, count) VALUES (?, 1)
              ON CONFLICT (command) DO UPDATE SET count = count + 1`
	if r.dialect == config.DriverPostgres {
		// postgres treats a bare column as ambiguous against EXCLUDED
		query = `INSERT INTO stats (command, count) VALUES (?, 1)
              ON CONFLICT (command) DO UPDATE SET count = stats.count + 1`
	}
	query = r.dialect.rebind(query)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, command); err != nil {
			return fmt.Errorf("failed to increment %s: %w", command, err)
		}
		return nil
	})
}

// All returns a snapshot of every counter.
func (r *SQLStatsRepository) All(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT command, count FROM stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			command string
			count   int64
		)
		if err := rows.Scan(&command, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stat: %w", err)
		}
		out[command] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}
	return out, nil
}
