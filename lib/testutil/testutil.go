package testutil

import (
	"database/sql"
	"testing"

	"coursetrack/lib/sqliteutil"
	"coursetrack/lib/telemetry"
)

var slogReady = false

// SetupTest installs the slog handler once per test binary.
func SetupTest(t testing.TB) {
	if !slogReady {
		telemetry.InitSlog(true)
		slogReady = true
	}
}

// SetupDB opens an in-memory sqlite database with the given schema.
func SetupDB(t testing.TB, schema string) *sql.DB {
	SetupTest(t)

	db, err := sqliteutil.OpenDB(schema, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
