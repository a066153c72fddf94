package repository

import (
	"context"
	"fmt"
)

// Content is the query and mutation surface of the quiz content graph.
// It is safe for concurrent readers when backed by *sql.DB.
type Content struct {
	Years  *YearRepo
	Topics *TopicRepo
	Tasks  *TaskRepo

	db Querier
}

func NewContent(db Querier) *Content {
	return &Content{
		Years:  NewYearRepo(db),
		Topics: NewTopicRepo(db),
		Tasks:  NewTaskRepo(db),
		db:     db,
	}
}

func (c *Content) UpsertYear(ctx context.Context, year int) (int64, error) {
	return c.Years.Upsert(ctx, year)
}

func (c *Content) UpsertTopic(ctx context.Context, name string) (int64, error) {
	return c.Topics.Upsert(ctx, name)
}

func (c *Content) UpsertTask(ctx context.Context, yearID int64, exercise int, f TaskFields, topicIDs []int64) (int64, error) {
	return c.Tasks.Upsert(ctx, yearID, exercise, f, topicIDs)
}

// ListYears returns the year values ascending.
func (c *Content) ListYears(ctx context.Context) ([]int, error) {
	years, err := c.Years.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(years))
	for _, y := range years {
		out = append(out, y.Value)
	}
	return out, nil
}

func (c *Content) ListExercises(ctx context.Context, year int) ([]int, error) {
	return c.Tasks.ListExercises(ctx, year)
}

func (c *Content) GetTask(ctx context.Context, year, exercise int) (Task, error) {
	return c.Tasks.Get(ctx, year, exercise)
}

func (c *Content) ListTasksSharingTopics(ctx context.Context, year int, topics []string) ([]int, error) {
	return c.Tasks.ListSharingTopics(ctx, year, topics)
}

// ClearAll deletes every link, task, topic and year. Callers are kept.
// Run it on a transaction-backed Content to make the wipe atomic.
func (c *Content) ClearAll(ctx context.Context) error {
	for _, table := range []string{"task_topics", "tasks", "topics", "years"} {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}
	return nil
}

func (c *Content) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx, `SELECT
	 (SELECT COUNT(*) FROM years),
	 (SELECT COUNT(*) FROM topics),
	 (SELECT COUNT(*) FROM tasks)`).Scan(&s.Years, &s.Topics, &s.Tasks)
	return s, err
}
