package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SeenOrdersRepository shares the announced-order set between every terminal
// of a branch through Postgres.
type SeenOrdersRepository struct {
	db       *sqlx.DB
	branchID string
	now      func() time.Time
}

func NewSeenOrdersRepository(db *sqlx.DB, branchID string) *SeenOrdersRepository {
	return &SeenOrdersRepository{db: db, branchID: branchID, now: time.Now}
}

func (r *SeenOrdersRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS seen_orders (
			branch_id TEXT NOT NULL,
			order_id  TEXT NOT NULL,
			seen_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (branch_id, order_id)
		)
	`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("repository: failed to create seen_orders: %w", err)
	}
	return nil
}

func (r *SeenOrdersRepository) Filter(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT order_id FROM seen_orders WHERE branch_id = ? AND order_id IN (?)`, r.branchID, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build seen orders query: %w", err)
	}

	var seen []string
	if err := r.db.SelectContext(ctx, &seen, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: select seen orders failed: %w", err)
	}

	known := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		known[id] = struct{}{}
	}

	unseen := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}

func (r *SeenOrdersRepository) Mark(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO seen_orders (branch_id, order_id, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (branch_id, order_id) DO NOTHING
	`
	seenAt := r.now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, insert, r.branchID, id, seenAt); err != nil {
			return fmt.Errorf("repository: failed to mark order %s seen: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

// Prune drops rows older than retention and returns how many were removed.
func (r *SeenOrdersRepository) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM seen_orders WHERE branch_id = $1 AND seen_at < $2`,
		r.branchID, r.now().UTC().Add(-retention),
	)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to prune seen orders: %w", err)
	}
	return result.RowsAffected()
}
