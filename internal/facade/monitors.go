package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"monitorplane/internal/apperr"
	"monitorplane/internal/schema"
	"monitorplane/internal/store"
	"monitorplane/internal/workload"
)

type createMonitorRequest struct {
	Name        string                 `json:"name"`
	MonitorType string                 `json:"monitor_type"`
	Config      map[string]interface{} `json:"config"`
	Secrets     map[string]string      `json:"secrets"`
}

type deploymentSummary struct {
	WorkloadID string `json:"workload_id,omitempty"`
	Status     string `json:"status"`
}

type monitorResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Config     map[string]interface{} `json:"config,omitempty"`
	Status     string                 `json:"status"`
	CreatedAt  string                 `json:"created_at"`
	LastCheck  *string                `json:"last_check,omitempty"`
	Deployment *deploymentSummary     `json:"deployment,omitempty"`
}

func toMonitorResponse(m *store.Monitor) monitorResponse {
	resp := monitorResponse{
		ID:        m.ID,
		Name:      m.Name,
		Type:      m.MonitorType,
		Config:    m.Config,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
	if m.LastSampleAt != nil {
		s := m.LastSampleAt.Format(time.RFC3339)
		resp.LastCheck = &s
	}
	if m.WorkloadID != "" {
		resp.Deployment = &deploymentSummary{WorkloadID: m.WorkloadID, Status: string(m.Status)}
	}
	return resp
}

type monitorStatusResponse struct {
	monitorResponse
	RecentAlerts []alertResponse `json:"recent_alerts"`
}

// createMonitor validates the monitor_type's config against its JSON
// Schema, encrypts each supplied secret into a new secret row owned by the
// caller, creates the monitor row, then applies the workload. A workload failure leaves the
// monitor row in place with status "error" — row first, workload second,
// so a failed deploy is always visible rather than silently absent.
func (f *Facade) createMonitor(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req createMonitorRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	if !schema.Known(req.MonitorType) {
		return nil, apperr.Validation("unknown monitor type %q", req.MonitorType)
	}
	if err := schema.Validate(req.MonitorType, req.Config); err != nil {
		return nil, err
	}

	secretRefs := make(map[string]string, len(req.Secrets))
	secretValues := make(map[string]string, len(req.Secrets))
	for logicalName, plaintext := range req.Secrets {
		ciphertext, err := f.vault.Encrypt(plaintext)
		if err != nil {
			return nil, err
		}
		sec, err := f.store.CreateSecret(ctx, userID, logicalName, ciphertext)
		if err != nil {
			return nil, err
		}
		secretRefs[logicalName] = sec.ID
		secretValues[logicalName] = plaintext
	}

	m, err := f.store.CreateMonitor(ctx, userID, req.Name, req.MonitorType, req.Config, secretRefs)
	if err != nil {
		return nil, err
	}

	workloadID, err := f.workload.Apply(ctx, workload.Spec{
		MonitorID:   m.ID,
		UserID:      userID,
		MonitorType: m.MonitorType,
		Config:      m.Config,
		Secrets:     secretValues,
	})
	if err != nil {
		_ = f.store.UpdateMonitorStatus(ctx, m.ID, store.MonitorError, "")
		return nil, fmt.Errorf("facade: deploying monitor workload: %w", err)
	}

	if err := f.store.UpdateMonitorStatus(ctx, m.ID, store.MonitorDeploying, workloadID); err != nil {
		return nil, err
	}
	m.Status = store.MonitorDeploying
	m.WorkloadID = workloadID

	return map[string]interface{}{"monitor": toMonitorResponse(m)}, nil
}

func (f *Facade) listMonitors(ctx context.Context, userID string) (interface{}, error) {
	monitors, err := f.store.ListMonitorsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]monitorResponse, 0, len(monitors))
	for _, m := range monitors {
		out = append(out, toMonitorResponse(m))
	}
	return map[string]interface{}{"monitors": out}, nil
}

type monitorIDRequest struct {
	MonitorID string `json:"monitor_id"`
}

const recentAlertsLimit = 10

func (f *Facade) getMonitorStatus(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req monitorIDRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	m, err := f.store.GetMonitorForUser(ctx, userID, req.MonitorID)
	if err != nil {
		return nil, err
	}
	alerts, err := f.store.ListAlertsForUser(ctx, userID, m.ID, recentAlertsLimit)
	if err != nil {
		return nil, err
	}
	recent := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		recent = append(recent, toAlertResponse(a))
	}

	return map[string]interface{}{"monitor": monitorStatusResponse{
		monitorResponse: toMonitorResponse(m),
		RecentAlerts:    recent,
	}}, nil
}

// deleteMonitor stops the workload first, then removes the monitor row
// (which cascades to its alert rules and alerts). Workload teardown
// errors are returned, but partial teardown never blocks removing the
// row — a lingering orphaned workload is preferable to an undeletable
// monitor.
func (f *Facade) deleteMonitor(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req monitorIDRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	m, err := f.store.GetMonitorForUser(ctx, userID, req.MonitorID)
	if err != nil {
		return nil, err
	}

	var teardownErr error
	if m.WorkloadID != "" {
		teardownErr = f.workload.Stop(ctx, m.WorkloadID)
	}

	if err := f.store.DeleteMonitor(ctx, userID, req.MonitorID); err != nil {
		return nil, err
	}

	if teardownErr != nil {
		return map[string]interface{}{"message": fmt.Sprintf("monitor deleted, workload teardown warning: %s", teardownErr)}, nil
	}
	return map[string]interface{}{"message": "monitor deleted"}, nil
}

type deploymentStatusResponse struct {
	Status        string   `json:"status"`
	ReadyReplicas int32    `json:"ready_replicas"`
	TotalReplicas int32    `json:"total_replicas"`
	Conditions    []string `json:"conditions,omitempty"`
}

func (f *Facade) getDeploymentStatus(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req monitorIDRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	m, err := f.store.GetMonitorForUser(ctx, userID, req.MonitorID)
	if err != nil {
		return nil, err
	}
	if m.WorkloadID == "" {
		return map[string]interface{}{"deployment_status": deploymentStatusResponse{Status: "starting"}}, nil
	}

	status, err := f.workload.Status(ctx, m.WorkloadID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"deployment_status": deploymentStatusResponse{
		Status:        status.Phase,
		ReadyReplicas: status.ReadyReplicas,
		TotalReplicas: status.TotalReplicas,
		Conditions:    status.Conditions,
	}}, nil
}
