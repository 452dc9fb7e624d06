package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"monitorplane/internal/apperr"
	"monitorplane/internal/dbx"
)

// CreateMonitor inserts a new monitor in status "starting". config and
// secretRefs are marshalled to JSONB.
func (s *Store) CreateMonitor(ctx context.Context, userID, name, monitorType string, config map[string]interface{}, secretRefs map[string]string) (*Monitor, error) {
	configJSON, err := marshalJSON(config)
	if err != nil {
		return nil, err
	}
	refsJSON, err := marshalJSON(secretRefs)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		ID:          newID("mon_"),
		UserID:      userID,
		Name:        name,
		MonitorType: monitorType,
		Config:      config,
		SecretRefs:  secretRefs,
		Status:      MonitorStarting,
	}

	const q = `INSERT INTO monitors (id, user_id, name, monitor_type, config, secret_refs, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err = s.db.QueryRowContext(ctx, q, m.ID, m.UserID, m.Name, m.MonitorType, configJSON, refsJSON, m.Status).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: creating monitor: %w", err)
	}
	return m, nil
}

// GetMonitorForUser fetches a monitor scoped to its owning user.
func (s *Store) GetMonitorForUser(ctx context.Context, userID, id string) (*Monitor, error) {
	const q = `SELECT id, user_id, name, monitor_type, config, secret_refs, status,
		workload_id, created_at, updated_at, last_sample_at
		FROM monitors WHERE id = $1 AND user_id = $2`
	return scanMonitor(s.db.QueryRowContext(ctx, q, id, userID))
}

// ListMonitorsForUser returns all monitors owned by userID, newest first.
func (s *Store) ListMonitorsForUser(ctx context.Context, userID string) ([]*Monitor, error) {
	const q = `SELECT id, user_id, name, monitor_type, config, secret_refs, status,
		workload_id, created_at, updated_at, last_sample_at
		FROM monitors WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("store: listing monitors: %w", err)
	}
	defer rows.Close()

	var out []*Monitor
	for rows.Next() {
		m, err := scanMonitorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListActiveMonitors returns every monitor across all users whose status is
// "running". The alert engine does not use it; it scopes evaluation through
// ListActiveAlertRules.
func (s *Store) ListActiveMonitors(ctx context.Context) ([]*Monitor, error) {
	const q = `SELECT id, user_id, name, monitor_type, config, secret_refs, status,
		workload_id, created_at, updated_at, last_sample_at
		FROM monitors WHERE status = $1`
	rows, err := s.db.QueryContext(ctx, q, MonitorRunning)
	if err != nil {
		return nil, fmt.Errorf("store: listing active monitors: %w", err)
	}
	defer rows.Close()

	var out []*Monitor
	for rows.Next() {
		m, err := scanMonitorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListDeployedMonitors returns every monitor across all users that has a
// workload to reconcile — status ∈ {deploying, running, error} and
// workload_id set — for the periodic reconciliation sweep.
func (s *Store) ListDeployedMonitors(ctx context.Context) ([]*Monitor, error) {
	const q = `SELECT id, user_id, name, monitor_type, config, secret_refs, status,
		workload_id, created_at, updated_at, last_sample_at
		FROM monitors WHERE workload_id != '' AND status IN ($1, $2, $3)`
	rows, err := s.db.QueryContext(ctx, q, MonitorDeploying, MonitorRunning, MonitorError)
	if err != nil {
		return nil, fmt.Errorf("store: listing deployed monitors: %w", err)
	}
	defer rows.Close()

	var out []*Monitor
	for rows.Next() {
		m, err := scanMonitorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMonitorStatus transitions a monitor's status and, when provided,
// its workload_id.
func (s *Store) UpdateMonitorStatus(ctx context.Context, id string, status MonitorStatus, workloadID string) error {
	const q = `UPDATE monitors SET status = $2, workload_id = $3, updated_at = now() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, status, workloadID)
	if err != nil {
		return fmt.Errorf("store: updating monitor status: %w", err)
	}
	return requireOneRow(res)
}

// UpdateLastSampleAt is called by the alert engine after a successful
// window pull with the newest sample's timestamp.
func (s *Store) UpdateLastSampleAt(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE monitors SET last_sample_at = $2 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("store: updating last_sample_at: %w", err)
	}
	return nil
}

// DeleteMonitor removes a monitor and everything that references it
// (alerts, then alert rules, then its owned secrets, then the monitor
// itself) in one transaction, preserving referential integrity. It does
// not tear down the workload — callers must do that first and treat this
// as the row-level commit. Secret rows are deleted here because a
// secret's lifecycle is tied to its owning monitor's.
func (s *Store) DeleteMonitor(ctx context.Context, userID, id string) error {
	return dbx.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var refsJSON []byte
		err := tx.QueryRowContext(ctx, `SELECT secret_refs FROM monitors WHERE id = $1 AND user_id = $2`, id, userID).Scan(&refsJSON)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound()
			}
			return fmt.Errorf("store: loading monitor for delete: %w", err)
		}
		secretRefs := map[string]string{}
		if err := unmarshalJSON(refsJSON, &secretRefs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE monitor_id = $1`, id); err != nil {
			return fmt.Errorf("store: deleting alerts for monitor: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM alert_rules WHERE monitor_id = $1`, id); err != nil {
			return fmt.Errorf("store: deleting alert rules for monitor: %w", err)
		}
		for _, secretID := range secretRefs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1 AND user_id = $2`, secretID, userID); err != nil {
				return fmt.Errorf("store: deleting secret for monitor: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("store: deleting monitor: %w", err)
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

func scanMonitor(row *sql.Row) (*Monitor, error) {
	var m Monitor
	var configJSON, refsJSON []byte
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.MonitorType, &configJSON, &refsJSON, &m.Status,
		&m.WorkloadID, &m.CreatedAt, &m.UpdatedAt, &m.LastSampleAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound()
		}
		return nil, fmt.Errorf("store: fetching monitor: %w", err)
	}
	if err := unmarshalMonitorJSON(&m, configJSON, refsJSON); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMonitorRows(rows *sql.Rows) (*Monitor, error) {
	var m Monitor
	var configJSON, refsJSON []byte
	err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.MonitorType, &configJSON, &refsJSON, &m.Status,
		&m.WorkloadID, &m.CreatedAt, &m.UpdatedAt, &m.LastSampleAt)
	if err != nil {
		return nil, fmt.Errorf("store: scanning monitor: %w", err)
	}
	if err := unmarshalMonitorJSON(&m, configJSON, refsJSON); err != nil {
		return nil, err
	}
	return &m, nil
}

func unmarshalMonitorJSON(m *Monitor, configJSON, refsJSON []byte) error {
	m.Config = map[string]interface{}{}
	if err := unmarshalJSON(configJSON, &m.Config); err != nil {
		return err
	}
	m.SecretRefs = map[string]string{}
	if err := unmarshalJSON(refsJSON, &m.SecretRefs); err != nil {
		return err
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: checking update result: %w", err)
	}
	if n == 0 {
		return apperr.NotFound()
	}
	return nil
}
