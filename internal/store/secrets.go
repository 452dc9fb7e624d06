package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"monitorplane/internal/apperr"
)

// CreateSecret inserts a new secret row. ciphertext must already be
// vault-encrypted; this layer never sees plaintext.
func (s *Store) CreateSecret(ctx context.Context, userID, name, ciphertext string) (*Secret, error) {
	sec := &Secret{ID: newID("sec_"), UserID: userID, Name: name, Ciphertext: ciphertext}
	const q = `INSERT INTO secrets (id, user_id, name, ciphertext) VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	if err := s.db.QueryRowContext(ctx, q, sec.ID, sec.UserID, sec.Name, sec.Ciphertext).Scan(&sec.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: creating secret: %w", err)
	}
	return sec, nil
}

// GetSecretForUser fetches a secret, returning apperr.ErrNotFound both
// when it does not exist and when it belongs to a different user.
func (s *Store) GetSecretForUser(ctx context.Context, userID, id string) (*Secret, error) {
	const q = `SELECT id, user_id, name, ciphertext, created_at FROM secrets
		WHERE id = $1 AND user_id = $2`
	var sec Secret
	err := s.db.QueryRowContext(ctx, q, id, userID).Scan(&sec.ID, &sec.UserID, &sec.Name, &sec.Ciphertext, &sec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound()
		}
		return nil, fmt.Errorf("store: fetching secret: %w", err)
	}
	return &sec, nil
}
