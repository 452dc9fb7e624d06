package facade

import (
	"context"
	"encoding/json"

	"monitorplane/internal/apperr"
	"monitorplane/internal/evaluator"
	"monitorplane/internal/store"
)

var validSeverities = map[string]bool{
	string(store.SeverityLow):      true,
	string(store.SeverityMedium):   true,
	string(store.SeverityHigh):     true,
	string(store.SeverityCritical): true,
}

func validateSeverity(s string) error {
	if !validSeverities[s] {
		return apperr.Validation("severity must be one of low, medium, high, critical, got %q", s)
	}
	return nil
}

type createAlertRuleRequest struct {
	MonitorID       string                 `json:"monitor_id"`
	Title           string                 `json:"title"`
	Condition       map[string]interface{} `json:"condition"`
	Severity        string                 `json:"severity"`
	CooldownMinutes int                    `json:"cooldown_minutes"`
}

type alertRuleResponse struct {
	ID              string                 `json:"id"`
	MonitorID       string                 `json:"monitor_id"`
	Title           string                 `json:"title"`
	Condition       map[string]interface{} `json:"condition"`
	Severity        string                 `json:"severity"`
	CooldownMinutes int                    `json:"cooldown_minutes"`
	IsActive        bool                   `json:"is_active"`
}

func toAlertRuleResponse(r *store.AlertRule) alertRuleResponse {
	return alertRuleResponse{
		ID:              r.ID,
		MonitorID:       r.MonitorID,
		Title:           r.Title,
		Condition:       r.Condition,
		Severity:        string(r.Severity),
		CooldownMinutes: r.CooldownMinutes,
		IsActive:        r.IsActive,
	}
}

// createAlertRule validates the condition before it is stored, so an
// invalid condition is rejected here rather than reaching the alert
// engine. evaluator.Evaluate also re-runs Validate on every evaluation.
func (f *Facade) createAlertRule(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req createAlertRuleRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	if _, err := f.store.GetMonitorForUser(ctx, userID, req.MonitorID); err != nil {
		return nil, err
	}

	cond, err := evaluator.Parse(req.Condition)
	if err != nil {
		return nil, err
	}
	if err := evaluator.Validate(cond); err != nil {
		return nil, err
	}
	if err := validateSeverity(req.Severity); err != nil {
		return nil, err
	}
	if req.CooldownMinutes < 0 {
		return nil, apperr.Validation("cooldown_minutes must be non-negative")
	}

	r, err := f.store.CreateAlertRule(ctx, userID, req.MonitorID, req.Title, req.Condition,
		store.Severity(req.Severity), req.CooldownMinutes)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"alert_rule": toAlertRuleResponse(r)}, nil
}

// updateAlertRuleRequest uses pointers so the facade can tell an omitted
// field apart from an explicit zero value — an update touches only the
// fields present in the payload, never the whole rule.
type updateAlertRuleRequest struct {
	RuleID          string                 `json:"rule_id"`
	Title           *string                `json:"title"`
	Condition       map[string]interface{} `json:"condition"`
	Severity        *string                `json:"severity"`
	CooldownMinutes *int                   `json:"cooldown_minutes"`
	IsActive        *bool                  `json:"is_active"`
}

func (f *Facade) updateAlertRule(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req updateAlertRuleRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	existing, err := f.store.GetAlertRuleForUser(ctx, userID, req.RuleID)
	if err != nil {
		return nil, err
	}

	title := existing.Title
	if req.Title != nil {
		title = *req.Title
	}
	condition := existing.Condition
	if req.Condition != nil {
		condition = req.Condition
	}
	severity := existing.Severity
	if req.Severity != nil {
		if err := validateSeverity(*req.Severity); err != nil {
			return nil, err
		}
		severity = store.Severity(*req.Severity)
	}
	cooldown := existing.CooldownMinutes
	if req.CooldownMinutes != nil {
		if *req.CooldownMinutes < 0 {
			return nil, apperr.Validation("cooldown_minutes must be non-negative")
		}
		cooldown = *req.CooldownMinutes
	}
	isActive := existing.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	cond, err := evaluator.Parse(condition)
	if err != nil {
		return nil, err
	}
	if err := evaluator.Validate(cond); err != nil {
		return nil, err
	}

	r, err := f.store.UpdateAlertRule(ctx, userID, req.RuleID, title, condition, severity, cooldown, isActive)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"alert_rule": toAlertRuleResponse(r)}, nil
}

type ruleIDRequest struct {
	RuleID string `json:"rule_id"`
}

func (f *Facade) deleteAlertRule(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req ruleIDRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := f.store.DeleteAlertRule(ctx, userID, req.RuleID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"message": "alert rule deleted"}, nil
}

type listAlertRulesRequest struct {
	MonitorID string `json:"monitor_id"`
}

func (f *Facade) listAlertRules(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req listAlertRulesRequest
	if len(payload) > 0 {
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
	}

	var rules []*store.AlertRule
	var err error
	if req.MonitorID != "" {
		if _, err := f.store.GetMonitorForUser(ctx, userID, req.MonitorID); err != nil {
			return nil, err
		}
		rules, err = f.store.ListAlertRulesForMonitor(ctx, userID, req.MonitorID)
	} else {
		rules, err = f.store.ListAlertRulesForUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]alertRuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toAlertRuleResponse(r))
	}
	return map[string]interface{}{"alert_rules": out}, nil
}
