package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"monitorplane/internal/apperr"
	"monitorplane/internal/dbx"
)

// CreateAlertRule inserts a new rule, active by default.
func (s *Store) CreateAlertRule(ctx context.Context, userID, monitorID, title string, condition map[string]interface{}, severity Severity, cooldownMinutes int) (*AlertRule, error) {
	condJSON, err := marshalJSON(condition)
	if err != nil {
		return nil, err
	}

	r := &AlertRule{
		ID:              newID("rule_"),
		MonitorID:       monitorID,
		UserID:          userID,
		Title:           title,
		Condition:       condition,
		Severity:        severity,
		CooldownMinutes: cooldownMinutes,
		IsActive:        true,
	}

	const q = `INSERT INTO alert_rules (id, monitor_id, user_id, title, condition, severity, cooldown_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err = s.db.QueryRowContext(ctx, q, r.ID, r.MonitorID, r.UserID, r.Title, condJSON, r.Severity, r.CooldownMinutes, r.IsActive).
		Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: creating alert rule: %w", err)
	}
	return r, nil
}

// GetAlertRuleForUser fetches a rule scoped to its owning user.
func (s *Store) GetAlertRuleForUser(ctx context.Context, userID, id string) (*AlertRule, error) {
	const q = `SELECT id, monitor_id, user_id, title, condition, severity, cooldown_minutes, is_active, created_at, updated_at
		FROM alert_rules WHERE id = $1 AND user_id = $2`
	return scanRule(s.db.QueryRowContext(ctx, q, id, userID))
}

// ListAlertRulesForMonitor returns every rule on a monitor, newest first.
func (s *Store) ListAlertRulesForMonitor(ctx context.Context, userID, monitorID string) ([]*AlertRule, error) {
	const q = `SELECT id, monitor_id, user_id, title, condition, severity, cooldown_minutes, is_active, created_at, updated_at
		FROM alert_rules WHERE monitor_id = $1 AND user_id = $2 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, monitorID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: listing alert rules: %w", err)
	}
	defer rows.Close()

	var out []*AlertRule
	for rows.Next() {
		var r AlertRule
		var condJSON []byte
		if err := rows.Scan(&r.ID, &r.MonitorID, &r.UserID, &r.Title, &condJSON, &r.Severity,
			&r.CooldownMinutes, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning alert rule: %w", err)
		}
		r.Condition = map[string]interface{}{}
		if err := unmarshalJSON(condJSON, &r.Condition); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListAlertRulesForUser returns every rule owned by userID across all of
// their monitors, newest first — used when list_alert_rules omits monitor_id.
func (s *Store) ListAlertRulesForUser(ctx context.Context, userID string) ([]*AlertRule, error) {
	const q = `SELECT id, monitor_id, user_id, title, condition, severity, cooldown_minutes, is_active, created_at, updated_at
		FROM alert_rules WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("store: listing alert rules: %w", err)
	}
	defer rows.Close()

	var out []*AlertRule
	for rows.Next() {
		var r AlertRule
		var condJSON []byte
		if err := rows.Scan(&r.ID, &r.MonitorID, &r.UserID, &r.Title, &condJSON, &r.Severity,
			&r.CooldownMinutes, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning alert rule: %w", err)
		}
		r.Condition = map[string]interface{}{}
		if err := unmarshalJSON(condJSON, &r.Condition); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListActiveAlertRules returns every active rule across all users — the
// alert engine's per-tick work list.
func (s *Store) ListActiveAlertRules(ctx context.Context) ([]*AlertRule, error) {
	const q = `SELECT id, monitor_id, user_id, title, condition, severity, cooldown_minutes, is_active, created_at, updated_at
		FROM alert_rules WHERE is_active`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: listing active alert rules: %w", err)
	}
	defer rows.Close()

	var out []*AlertRule
	for rows.Next() {
		var r AlertRule
		var condJSON []byte
		if err := rows.Scan(&r.ID, &r.MonitorID, &r.UserID, &r.Title, &condJSON, &r.Severity,
			&r.CooldownMinutes, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning alert rule: %w", err)
		}
		r.Condition = map[string]interface{}{}
		if err := unmarshalJSON(condJSON, &r.Condition); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpdateAlertRule updates the mutable fields of a rule owned by userID.
func (s *Store) UpdateAlertRule(ctx context.Context, userID, id string, title string, condition map[string]interface{}, severity Severity, cooldownMinutes int, isActive bool) (*AlertRule, error) {
	condJSON, err := marshalJSON(condition)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE alert_rules SET title = $3, condition = $4, severity = $5,
		cooldown_minutes = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, q, id, userID, title, condJSON, severity, cooldownMinutes, isActive)
	if err != nil {
		return nil, fmt.Errorf("store: updating alert rule: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return nil, err
	}
	return s.GetAlertRuleForUser(ctx, userID, id)
}

// DeleteAlertRule removes a rule owned by userID together with the alerts
// it raised — an alert row must never outlive its rule.
func (s *Store) DeleteAlertRule(ctx context.Context, userID, id string) error {
	return dbx.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE rule_id = $1 AND user_id = $2`, id, userID); err != nil {
			return fmt.Errorf("store: deleting alerts for rule: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("store: deleting alert rule: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: checking delete result: %w", err)
		}
		if n == 0 {
			return apperr.NotFound()
		}
		return nil
	})
}

func scanRule(row *sql.Row) (*AlertRule, error) {
	var r AlertRule
	var condJSON []byte
	err := row.Scan(&r.ID, &r.MonitorID, &r.UserID, &r.Title, &condJSON, &r.Severity,
		&r.CooldownMinutes, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound()
		}
		return nil, fmt.Errorf("store: fetching alert rule: %w", err)
	}
	r.Condition = map[string]interface{}{}
	if err := unmarshalJSON(condJSON, &r.Condition); err != nil {
		return nil, err
	}
	return &r, nil
}
