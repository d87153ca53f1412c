// Package loantest provides throwaway loan stores for tests.
package loantest

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/leihbot/core/database"
	"github.com/m3rciful/leihbot/internal/loan"
)

// MigrationsDir returns the repository's sqlite migrations.
func MigrationsDir(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", database.DriverSQLite)
}

// OpenDB migrates a fresh sqlite database in t's temp dir and connects to it.
func OpenDB(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := database.Config{
		Driver:        database.DriverSQLite,
		Path:          filepath.Join(t.TempDir(), "loans.db"),
		MigrationsDir: MigrationsDir(t),
	}
	require.NoError(t, database.RunMigrations(cfg))
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewStore returns a SQLStore over a fresh sqlite database.
func NewStore(t testing.TB) *loan.SQLStore {
	t.Helper()
	return loan.NewSQLStore(OpenDB(t))
}

// CountRows returns the number of stored loans across all sessions.
func CountRows(t testing.TB, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM loans`))
	return n
}
