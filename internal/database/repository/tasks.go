package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// TaskRepo handles tasks and their topic links.
type TaskRepo struct {
	db Querier
}

func NewTaskRepo(db Querier) *TaskRepo { return &TaskRepo{db: db} }

// Upsert stores the task for (yearID, exercise), overwriting any existing
// row, and replaces its topic links with topicIDs. Pass a *sql.Tx-backed repo
// when the row and its links must change together.
func (r *TaskRepo) Upsert(ctx context.Context, yearID int64, exercise int, f TaskFields, topicIDs []int64) (int64, error) {
	if missing := f.Validate(); len(missing) > 0 {
		return 0, &ValidationError{YearID: yearID, Exercise: exercise, Missing: missing}
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO tasks(year_id, exercise, task_text, task_image, hint_text, hint_image, answer_text, answer_image, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(year_id, exercise) DO UPDATE SET
	 task_text=excluded.task_text,
	 task_image=excluded.task_image,
	 hint_text=excluded.hint_text,
	 hint_image=excluded.hint_image,
	 answer_text=excluded.answer_text,
	 answer_image=excluded.answer_image,
	 updated_at=CURRENT_TIMESTAMP;
	`, yearID, exercise, f.TaskText, f.TaskImage, f.HintText, f.HintImage, f.AnswerText, f.AnswerImage)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM tasks WHERE year_id = ? AND exercise = ?`, yearID, exercise).Scan(&id); err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM task_topics WHERE task_id = ?`, id); err != nil {
		return 0, err
	}
	for _, topicID := range topicIDs {
		if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO task_topics(task_id, topic_id) VALUES (?, ?)`, id, topicID); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Get returns the task for (year, exercise) with its topic names, or ErrNotFound.
func (r *TaskRepo) Get(ctx context.Context, year, exercise int) (Task, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT t.id, y.value, t.exercise, t.task_text, t.task_image, t.hint_text, t.hint_image,
	 t.answer_text, t.answer_image, t.created_at, t.updated_at
	FROM tasks t JOIN years y ON y.id = t.year_id
	WHERE y.value = ? AND t.exercise = ?`, year, exercise)
	var t Task
	err := row.Scan(&t.ID, &t.Year, &t.Exercise, &t.TaskText, &t.TaskImage, &t.HintText, &t.HintImage,
		&t.AnswerText, &t.AnswerImage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	topics, err := r.topicNames(ctx, t.ID)
	if err != nil {
		return Task{}, err
	}
	t.Topics = topics
	return t, nil
}

// ListExercises returns the exercise numbers of year ascending.
func (r *TaskRepo) ListExercises(ctx context.Context, year int) ([]int, error) {
	return r.ints(ctx, `
	SELECT t.exercise FROM tasks t JOIN years y ON y.id = t.year_id
	WHERE y.value = ? ORDER BY t.exercise`, year)
}

// ListSharingTopics returns the distinct exercise numbers of year whose
// tasks carry at least one of topics, ascending.
func (r *TaskRepo) ListSharingTopics(ctx context.Context, year int, topics []string) ([]int, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(topics)+1)
	args = append(args, year)
	for _, name := range topics {
		args = append(args, name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(topics)), ",")
	return r.ints(ctx, `
	SELECT DISTINCT t.exercise
	FROM tasks t
	JOIN years y ON y.id = t.year_id
	JOIN task_topics tt ON tt.task_id = t.id
	JOIN topics tp ON tp.id = tt.topic_id
	WHERE y.value = ? AND tp.name IN (`+placeholders+`)
	ORDER BY t.exercise`, args...)
}

func (r *TaskRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

func (r *TaskRepo) topicNames(ctx context.Context, taskID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tp.name FROM topics tp JOIN task_topics tt ON tt.topic_id = tp.id WHERE tt.task_id = ? ORDER BY tp.name`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (r *TaskRepo) ints(ctx context.Context, query string, args ...interface{}) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
