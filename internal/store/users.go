package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"monitorplane/internal/apperr"
)

// GetOrCreateUser returns the user with the given email, creating one with
// tier "free" if none exists. Identity is established upstream of this
// package; this is the control plane's first-touch provisioning point.
func (s *Store) GetOrCreateUser(ctx context.Context, email string) (*User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	u = &User{ID: newID("usr_"), Email: email, Tier: TierFree, Active: true}
	const q = `INSERT INTO users (id, email, tier, active) VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	if err := s.db.QueryRowContext(ctx, q, u.ID, u.Email, u.Tier, u.Active).Scan(&u.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: creating user: %w", err)
	}
	return u, nil
}

// GetUser fetches a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id, email, tier, active, created_at FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, q, id))
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT id, email, tier, active, created_at FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Tier, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound()
		}
		return nil, fmt.Errorf("store: fetching user: %w", err)
	}
	return &u, nil
}
