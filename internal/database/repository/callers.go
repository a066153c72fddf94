package repository

import (
	"context"
	"database/sql"
	"errors"
)

// CallerRepo records callers on first contact. Rows are never updated.
type CallerRepo struct {
	db Querier
}

func NewCallerRepo(db Querier) *CallerRepo { return &CallerRepo{db: db} }

// Register inserts c unless a caller with the same id already exists.
// It reports whether a new row was written.
func (r *CallerRepo) Register(ctx context.Context, c Caller) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO callers(id, display_name, username, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		c.ID, c.DisplayName, c.Username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CallerRepo) Get(ctx context.Context, id int64) (Caller, error) {
	var c Caller
	err := r.db.QueryRowContext(ctx, `SELECT id, display_name, username, created_at FROM callers WHERE id = ?`, id).
		Scan(&c.ID, &c.DisplayName, &c.Username, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Caller{}, ErrNotFound
	}
	return c, err
}

func (r *CallerRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM callers`).Scan(&n)
	return n, err
}
