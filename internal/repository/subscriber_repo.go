package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SubscriberRepository defines DB operations for broadcast subscribers.
type SubscriberRepository interface {
	// Register inserts the user as subscribed unless a row already exists.
	Register(ctx context.Context, userID int64) error
	// Subscribe inserts the user or flips an existing row back to subscribed.
	Subscribe(ctx context.Context, userID int64) error
	Unsubscribe(ctx context.Context, userID int64) error
	ListActive(ctx context.Context) ([]int64, error)
}

// SQLSubscriberRepository is an implementation of SubscriberRepository over database/sql.
type SQLSubscriberRepository struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLSubscriberRepository creates a new SQLSubscriberRepository for the given driver name.
func NewSQLSubscriberRepository(db *sql.DB, driver string) *SQLSubscriberRepository {
	return &SQLSubscriberRepository{db: db, dialect: dialect(driver)}
}

func (r *SQLSubscriberRepository) Register(ctx context.Context, userID int64) error {
	query := r.dialect.rebind(`INSERT INTO subscribers (user_id, subscribed) VALUES (?, ?)
              ON CONFLICT (user_id) DO NOTHING`)
	return r.exec(ctx, "register", query, userID, true)
}

func (r *SQLSubscriberRepository) Subscribe(ctx context.Context, userID int64) error {
	query := r.dialect.rebind(`INSERT INTO subscribers (user_id, subscribed) VALUES (?, ?)
              ON CONFLICT (user_id) DO UPDATE SET subscribed = excluded.subscribed`)
	return r.exec(ctx, "subscribe", query, userID, true)
}

// Unsubscribe clears the flag; a missing row is not an error.
func (r *SQLSubscriberRepository) Unsubscribe(ctx context.Context, userID int64) error {
	query := r.dialect.rebind(`UPDATE subscribers SET subscribed = ? WHERE user_id = ?`)
	return r.exec(ctx, "unsubscribe", query, false, userID)
}

// ListActive returns the ids of every subscribed user in ascending order.
func (r *SQLSubscriberRepository) ListActive(ctx context.Context) ([]int64, error) {
	query := r.dialect.rebind(`SELECT user_id FROM subscribers WHERE subscribed = ? ORDER BY user_id`)

	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return ids, nil
}

func (r *SQLSubscriberRepository) exec(ctx context.Context, op, query string, args ...any) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to %s: %w", op, err)
		}
		return nil
	})
}
