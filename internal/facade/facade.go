// Package facade is the thin JSON tool surface the server exposes: each
// operation decodes its payload, does an ownership check, and delegates
// to store/workload/evaluator. No business logic lives in internal/server
// — it only knows how to get a request here and a response back out.
package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"monitorplane/internal/sampledb"
	"monitorplane/internal/secretvault"
	"monitorplane/internal/store"
	"monitorplane/internal/workload"
)

// Facade implements the tool operations the orchestrating agent calls.
type Facade struct {
	store    *store.Store
	vault    *secretvault.Vault
	workload workload.Manager
	samples  sampledb.Store
}

// New builds a Facade wired to its dependencies.
func New(st *store.Store, vault *secretvault.Vault, wl workload.Manager, samples sampledb.Store) *Facade {
	return &Facade{store: st, vault: vault, workload: wl, samples: samples}
}

// Operation names recognized by Handle.
const (
	OpCreateMonitor       = "create_monitor"
	OpListMonitors        = "list_monitors"
	OpGetMonitorStatus    = "get_monitor_status"
	OpDeleteMonitor       = "delete_monitor"
	OpGetDeploymentStatus = "get_deployment_status"
	OpCreateAlertRule     = "create_alert_rule"
	OpUpdateAlertRule     = "update_alert_rule"
	OpDeleteAlertRule     = "delete_alert_rule"
	OpListAlertRules      = "list_alert_rules"
	OpListAlerts          = "list_alerts"
	OpAcknowledgeAlert    = "acknowledge_alert"

	OpUpdateNotificationPreferences = "update_notification_preferences"
)

// Handle decodes payload for op and dispatches to the matching handler.
// userID is the caller's identity as established by the transport layer
// (internal/server reads it from a header) — every handler scopes its
// store access to this user.
func (f *Facade) Handle(ctx context.Context, userID string, op string, payload json.RawMessage) (interface{}, error) {
	switch op {
	case OpCreateMonitor:
		return f.createMonitor(ctx, userID, payload)
	case OpListMonitors:
		return f.listMonitors(ctx, userID)
	case OpGetMonitorStatus:
		return f.getMonitorStatus(ctx, userID, payload)
	case OpDeleteMonitor:
		return f.deleteMonitor(ctx, userID, payload)
	case OpGetDeploymentStatus:
		return f.getDeploymentStatus(ctx, userID, payload)
	case OpCreateAlertRule:
		return f.createAlertRule(ctx, userID, payload)
	case OpUpdateAlertRule:
		return f.updateAlertRule(ctx, userID, payload)
	case OpDeleteAlertRule:
		return f.deleteAlertRule(ctx, userID, payload)
	case OpListAlertRules:
		return f.listAlertRules(ctx, userID, payload)
	case OpListAlerts:
		return f.listAlerts(ctx, userID, payload)
	case OpAcknowledgeAlert:
		return f.acknowledgeAlert(ctx, userID, payload)
	case OpUpdateNotificationPreferences:
		return f.updateNotificationPreferences(ctx, userID, payload)
	default:
		return nil, fmt.Errorf("facade: unknown operation %q", op)
	}
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("facade: empty request payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("facade: decoding request: %w", err)
	}
	return nil
}
