package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is an ordered list of idempotent DDL statements. Each one must
// be safe to re-run against a database that already has it applied —
// CREATE TABLE IF NOT EXISTS / ADD COLUMN IF NOT EXISTS — so repeated
// `monitorplane migrate` invocations converge rather than error.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'free',
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email)`,

	`CREATE TABLE IF NOT EXISTS secrets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS secrets_user_id_idx ON secrets (user_id)`,

	`CREATE TABLE IF NOT EXISTS monitors (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		monitor_type TEXT NOT NULL,
		config JSONB NOT NULL DEFAULT '{}',
		secret_refs JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'starting',
		workload_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_sample_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS monitors_user_id_idx ON monitors (user_id)`,
	`ALTER TABLE monitors ADD COLUMN IF NOT EXISTS secret_refs JSONB NOT NULL DEFAULT '{}'`,

	`CREATE TABLE IF NOT EXISTS alert_rules (
		id TEXT PRIMARY KEY,
		monitor_id TEXT NOT NULL REFERENCES monitors(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		condition JSONB NOT NULL,
		severity TEXT NOT NULL,
		cooldown_minutes INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS alert_rules_monitor_id_idx ON alert_rules (monitor_id)`,
	`CREATE INDEX IF NOT EXISTS alert_rules_active_idx ON alert_rules (is_active) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL REFERENCES alert_rules(id),
		monitor_id TEXT NOT NULL REFERENCES monitors(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		data JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		delivered_channels JSONB NOT NULL DEFAULT '[]',
		delivered_at TIMESTAMPTZ,
		acknowledged_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_monitor_id_idx ON alerts (monitor_id)`,
	`CREATE INDEX IF NOT EXISTS alerts_rule_id_idx ON alerts (rule_id)`,
	`CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		email_enabled BOOLEAN NOT NULL DEFAULT true,
		chat_webhooks JSONB NOT NULL DEFAULT '[]'
	)`,
}

// Migrate applies every migration in order. Safe to call repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dbx: migration %d failed: %w", i, err)
		}
	}
	return nil
}
