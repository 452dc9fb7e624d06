package store

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// Store is the relational gateway. It holds a single *sql.DB (pq driver)
// and exposes entity-scoped methods; multi-step writes use dbx.WithTx
// internally rather than leaking *sql.Tx to callers.
type Store struct {
	db *sql.DB
}

// Open wraps an already-configured *sql.DB. Callers are responsible for
// calling sql.Open("postgres", dsn) and for closing the DB on shutdown.
func Open(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks and migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}
