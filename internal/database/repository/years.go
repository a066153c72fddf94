package repository

import (
	"context"
	"database/sql"
	"errors"
)

// YearRepo handles years.
type YearRepo struct {
	db Querier
}

func NewYearRepo(db Querier) *YearRepo { return &YearRepo{db: db} }

// Upsert returns the id of year, creating the row on first reference.
func (r *YearRepo) Upsert(ctx context.Context, year int) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO years(value) VALUES (?) ON CONFLICT(value) DO NOTHING`, year); err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM years WHERE value = ?`, year).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ByValue returns the year row for year, or ErrNotFound.
func (r *YearRepo) ByValue(ctx context.Context, year int) (Year, error) {
	var y Year
	err := r.db.QueryRowContext(ctx, `SELECT id, value FROM years WHERE value = ?`, year).Scan(&y.ID, &y.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return Year{}, ErrNotFound
	}
	return y, err
}

// List returns all years ascending.
func (r *YearRepo) List(ctx context.Context) ([]Year, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, value FROM years ORDER BY value`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Year
	for rows.Next() {
		var y Year
		if err := rows.Scan(&y.ID, &y.Value); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// Delete removes a year; its tasks and their topic links cascade.
func (r *YearRepo) Delete(ctx context.Context, year int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM years WHERE value = ?`, year)
	return err
}
