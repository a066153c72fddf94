package repository

import (
	"context"
)

// TopicRepo handles topics. Names are matched exactly (case-sensitive).
type TopicRepo struct {
	db Querier
}

func NewTopicRepo(db Querier) *TopicRepo { return &TopicRepo{db: db} }

func (r *TopicRepo) Upsert(ctx context.Context, name string) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO topics(name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM topics WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *TopicRepo) List(ctx context.Context) ([]Topic, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM topics ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a topic and its task links; the tasks stay.
func (r *TopicRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE name = ?`, name)
	return err
}
