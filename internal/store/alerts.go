package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"monitorplane/internal/apperr"
)

// CreateAlert inserts a new alert in status "pending". The alert engine
// calls this once a rule's condition evaluates true, before attempting
// dispatch.
func (s *Store) CreateAlert(ctx context.Context, rule *AlertRule, data map[string]interface{}) (*Alert, error) {
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return nil, err
	}

	a := &Alert{
		ID:                newID("alert_"),
		RuleID:            rule.ID,
		MonitorID:         rule.MonitorID,
		UserID:            rule.UserID,
		Severity:          rule.Severity,
		Title:             rule.Title,
		Data:              data,
		Status:            AlertPending,
		DeliveredChannels: []string{},
	}

	const q = `INSERT INTO alerts (id, rule_id, monitor_id, user_id, severity, title, data, status, delivered_channels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	err = s.db.QueryRowContext(ctx, q, a.ID, a.RuleID, a.MonitorID, a.UserID, a.Severity, a.Title, dataJSON, a.Status, "[]").
		Scan(&a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: creating alert: %w", err)
	}
	return a, nil
}

// RecordDelivery updates an alert's delivery accounting after the
// dispatcher runs. status is "delivered" if deliveredChannels is
// non-empty, "failed" otherwise.
func (s *Store) RecordDelivery(ctx context.Context, id string, deliveredChannels []string) error {
	status := AlertFailed
	if len(deliveredChannels) > 0 {
		status = AlertDelivered
	}
	channelsJSON, err := marshalJSON(deliveredChannels)
	if err != nil {
		return err
	}

	const q = `UPDATE alerts SET status = $2, delivered_channels = $3, delivered_at = now() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, status, channelsJSON)
	if err != nil {
		return fmt.Errorf("store: recording alert delivery: %w", err)
	}
	return requireOneRow(res)
}

// AcknowledgeAlert marks an alert acknowledged if it is owned by userID.
func (s *Store) AcknowledgeAlert(ctx context.Context, userID, id string) (*Alert, error) {
	const q = `UPDATE alerts SET status = $3, acknowledged_at = now()
		WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, q, id, userID, AlertAcknowledged)
	if err != nil {
		return nil, fmt.Errorf("store: acknowledging alert: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return nil, err
	}
	return s.GetAlertForUser(ctx, userID, id)
}

// GetAlertForUser fetches an alert scoped to its owning user.
func (s *Store) GetAlertForUser(ctx context.Context, userID, id string) (*Alert, error) {
	const q = `SELECT id, rule_id, monitor_id, user_id, severity, title, data, status,
		delivered_channels, delivered_at, acknowledged_at, created_at
		FROM alerts WHERE id = $1 AND user_id = $2`
	return scanAlert(s.db.QueryRowContext(ctx, q, id, userID))
}

// ListAlertsForUser returns a user's alerts, optionally scoped to one
// monitor, newest first, bounded by limit.
func (s *Store) ListAlertsForUser(ctx context.Context, userID, monitorID string, limit int) ([]*Alert, error) {
	var rows *sql.Rows
	var err error
	if monitorID != "" {
		const q = `SELECT id, rule_id, monitor_id, user_id, severity, title, data, status,
			delivered_channels, delivered_at, acknowledged_at, created_at
			FROM alerts WHERE user_id = $1 AND monitor_id = $2 ORDER BY created_at DESC LIMIT $3`
		rows, err = s.db.QueryContext(ctx, q, userID, monitorID, limit)
	} else {
		const q = `SELECT id, rule_id, monitor_id, user_id, severity, title, data, status,
			delivered_channels, delivered_at, acknowledged_at, created_at
			FROM alerts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err = s.db.QueryContext(ctx, q, userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: listing alerts: %w", err)
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scanAlertRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(row *sql.Row) (*Alert, error) {
	var a Alert
	var dataJSON, channelsJSON []byte
	err := row.Scan(&a.ID, &a.RuleID, &a.MonitorID, &a.UserID, &a.Severity, &a.Title, &dataJSON,
		&a.Status, &channelsJSON, &a.DeliveredAt, &a.AcknowledgedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound()
		}
		return nil, fmt.Errorf("store: fetching alert: %w", err)
	}
	if err := unmarshalAlertJSON(&a, dataJSON, channelsJSON); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAlertRows(rows *sql.Rows) (*Alert, error) {
	var a Alert
	var dataJSON, channelsJSON []byte
	err := rows.Scan(&a.ID, &a.RuleID, &a.MonitorID, &a.UserID, &a.Severity, &a.Title, &dataJSON,
		&a.Status, &channelsJSON, &a.DeliveredAt, &a.AcknowledgedAt, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: scanning alert: %w", err)
	}
	if err := unmarshalAlertJSON(&a, dataJSON, channelsJSON); err != nil {
		return nil, err
	}
	return &a, nil
}

func unmarshalAlertJSON(a *Alert, dataJSON, channelsJSON []byte) error {
	a.Data = map[string]interface{}{}
	if err := unmarshalJSON(dataJSON, &a.Data); err != nil {
		return err
	}
	a.DeliveredChannels = []string{}
	if err := unmarshalJSON(channelsJSON, &a.DeliveredChannels); err != nil {
		return err
	}
	return nil
}
