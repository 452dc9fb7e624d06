package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// defaultPreference is returned when a user has never set one explicitly —
// email on, no chat webhooks.
func defaultPreference(userID string) *NotificationPreference {
	return &NotificationPreference{UserID: userID, EmailEnabled: true, ChatWebhooks: nil}
}

// GetNotificationPreference returns userID's preference, or the default if
// none has been saved.
func (s *Store) GetNotificationPreference(ctx context.Context, userID string) (*NotificationPreference, error) {
	const q = `SELECT user_id, email_enabled, chat_webhooks FROM notification_preferences WHERE user_id = $1`
	var p NotificationPreference
	var webhooksJSON []byte
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&p.UserID, &p.EmailEnabled, &webhooksJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultPreference(userID), nil
		}
		return nil, fmt.Errorf("store: fetching notification preference: %w", err)
	}
	p.ChatWebhooks = []ChatWebhook{}
	if err := unmarshalJSON(webhooksJSON, &p.ChatWebhooks); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertNotificationPreference inserts or replaces userID's preference.
func (s *Store) UpsertNotificationPreference(ctx context.Context, p *NotificationPreference) error {
	webhooksJSON, err := marshalJSON(p.ChatWebhooks)
	if err != nil {
		return err
	}

	const q = `INSERT INTO notification_preferences (user_id, email_enabled, chat_webhooks)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email_enabled = $2, chat_webhooks = $3`
	if _, err := s.db.ExecContext(ctx, q, p.UserID, p.EmailEnabled, webhooksJSON); err != nil {
		return fmt.Errorf("store: upserting notification preference: %w", err)
	}
	return nil
}
