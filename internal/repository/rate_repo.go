package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RateObservation is one stored rate row. Rows are never updated or deleted.
type RateObservation struct {
	ID       int64
	Date     string
	Currency string
	Source   string
	Rate     float64
}

// RateRepository defines DB operations for rate observations.
type RateRepository interface {
	Insert(ctx context.Context, date, currency, source string, rate float64) error
	Latest(ctx context.Context, currency, source string) (*RateObservation, error)
	History(ctx context.Context, currency, source string, limit int) ([]RateObservation, error)
}

// SQLRateRepository is an implementation of RateRepository over database/sql.
type SQLRateRepository struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLRateRepository creates a new SQLRateRepository for the given driver name.
func NewSQLRateRepository(db *sql.DB, driver string) *SQLRateRepository {
	return &SQLRateRepository{db: db, dialect: dialect(driver)}
}

// Insert appends one observation. Same-day duplicates are kept.
func (r *SQLRateRepository) Insert(ctx context.Context, date, currency, source string, rate float64) error {
	query := r.dialect.rebind(`INSERT INTO rates (date, currency, source, rate) VALUES (?, ?, ?, ?)`)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, date, currency, source, rate); err != nil {
			return fmt.Errorf("failed to insert rate: %w", err)
		}
		return nil
	})
}

// Latest returns the newest observation for the pair, or (nil, nil) when there is none.
// Rows sharing a date resolve to the most recently inserted one.
func (r *SQLRateRepository) Latest(ctx context.Context, currency, source string) (*RateObservation, error) {
	query := r.dialect.rebind(`SELECT id, date, currency, source, rate
              FROM rates
              WHERE currency = ? AND source = ?
              ORDER BY date DESC, id DESC
              LIMIT 1`)

	var o RateObservation
	err := r.db.QueryRowContext(ctx, query, currency, source).
		Scan(&o.ID, &o.Date, &o.Currency, &o.Source, &o.Rate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest rate: %w", err)
	}
	return &o, nil
}

// History returns at most limit observations, oldest first.
func (r *SQLRateRepository) History(ctx context.Context, currency, source string, limit int) ([]RateObservation, error) {
	if limit <= 0 {
		return []RateObservation{}, nil
	}
	query := r.dialect.rebind(`SELECT id, date, currency, source, rate
              FROM rates
              WHERE currency = ? AND source = ?
              ORDER BY date DESC, id DESC
              LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, currency, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate history: %w", err)
	}
	defer rows.Close()

	out := make([]RateObservation, 0, limit)
	for rows.Next() {
		var o RateObservation
		if err := rows.Scan(&o.ID, &o.Date, &o.Currency, &o.Source, &o.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}

	// newest-first from the query; callers want oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
