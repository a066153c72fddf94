// Package dbtest opens a migrated throwaway sqlite database for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/olympiadbot/internal/database"
)

// MigrationsDir returns the absolute path of the schema migrations.
func MigrationsDir(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "migrations")
}

// Open creates a fresh database file under t.TempDir with the schema applied.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath, MigrationsDir(t)))

	db, err := database.Open(dbPath, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
