package facade

import (
	"context"
	"encoding/json"
	"time"

	"monitorplane/internal/store"
)

const defaultListAlertsLimit = 20

type listAlertsRequest struct {
	MonitorID string `json:"monitor_id"`
	Limit     int    `json:"limit"`
}

type alertResponse struct {
	ID                string                 `json:"id"`
	MonitorID         string                 `json:"monitor_id"`
	RuleID            string                 `json:"rule_id"`
	Severity          string                 `json:"severity"`
	Title             string                 `json:"title"`
	Data              map[string]interface{} `json:"data"`
	Status            string                 `json:"status"`
	DeliveredChannels []string               `json:"delivered_channels"`
	AcknowledgedAt    *string                `json:"acknowledged_at,omitempty"`
}

func toAlertResponse(a *store.Alert) alertResponse {
	resp := alertResponse{
		ID:                a.ID,
		MonitorID:         a.MonitorID,
		RuleID:            a.RuleID,
		Severity:          string(a.Severity),
		Title:             a.Title,
		Data:              a.Data,
		Status:            string(a.Status),
		DeliveredChannels: a.DeliveredChannels,
	}
	if a.AcknowledgedAt != nil {
		s := a.AcknowledgedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.AcknowledgedAt = &s
	}
	return resp
}

func (f *Facade) listAlerts(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req listAlertsRequest
	if len(payload) > 0 {
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListAlertsLimit
	}

	alerts, err := f.store.ListAlertsForUser(ctx, userID, req.MonitorID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertResponse(a))
	}
	return map[string]interface{}{"alerts": out}, nil
}

type alertIDRequest struct {
	AlertID string `json:"alert_id"`
}

type acknowledgeAlertResponse struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	AcknowledgedAt *string `json:"acknowledged_at,omitempty"`
}

func (f *Facade) acknowledgeAlert(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req alertIDRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	a, err := f.store.AcknowledgeAlert(ctx, userID, req.AlertID)
	if err != nil {
		return nil, err
	}
	resp := acknowledgeAlertResponse{ID: a.ID, Status: string(a.Status)}
	if a.AcknowledgedAt != nil {
		s := a.AcknowledgedAt.Format(time.RFC3339)
		resp.AcknowledgedAt = &s
	}
	return map[string]interface{}{"alert": resp}, nil
}
