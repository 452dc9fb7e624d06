// Package dbx provides the transactional-session wrapper used by every
// multi-step relational write: commit on success, rollback on error, panic
// re-raised after a best-effort rollback.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn inside a *sql.Tx opened from db. If fn returns an error
// the transaction is rolled back and the error returned (wrapped with the
// rollback error if that also failed). If fn panics, the transaction is
// rolled back and the panic re-raised. Otherwise the transaction is
// committed.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbx: beginning transaction: %w", err)
	}

	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbx: committing transaction: %w", err)
	}

	return nil
}
