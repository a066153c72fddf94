package repository

import (
	"context"
	"database/sql"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repos can join a
// caller-owned transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Year represents a year row.
type Year struct {
	ID    int64
	Value int
}

// Topic represents a topic row.
type Topic struct {
	ID   int64
	Name string
}

// TaskFields is the content of a task: text and optional image per part.
type TaskFields struct {
	TaskText    string
	TaskImage   string
	HintText    string
	HintImage   string
	AnswerText  string
	AnswerImage string
}

// Task represents a task row joined with its year and topic names.
type Task struct {
	ID       int64
	Year     int
	Exercise int
	TaskFields
	Topics    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Caller is a transport identity seen by the bot.
type Caller struct {
	ID          int64
	DisplayName string
	Username    string
	CreatedAt   time.Time
}

// Stats summarises the content store.
type Stats struct {
	Years  int
	Topics int
	Tasks  int
}
