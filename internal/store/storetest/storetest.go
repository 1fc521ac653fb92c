// Package storetest opens in-memory SQLite stores for tests.
package storetest

import (
	_ "embed"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/tabletop/internal/store"
)

//go:embed schema.sql
var schema string

// Open returns a Store over a private in-memory database with the schema applied.
func Open(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection keeps the in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return store.New(db, opts...)
}

// SeedUser inserts a user with the given id and username.
func SeedUser(t testing.TB, s *store.Store, id int64, username string) {
	t.Helper()
	if _, err := s.Users.Upsert(t.Context(), id, username, false); err != nil {
		t.Fatalf("seed user %d: %v", id, err)
	}
}
