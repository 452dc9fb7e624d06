// Package store is the relational store gateway: CRUD for users, secrets,
// monitors, alert rules, alerts, and notification preferences, over a
// *sql.DB opened with lib/pq. Every multi-step write runs inside one
// dbx.WithTx transactional session.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a user's subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// MonitorStatus is a position in the monitor state machine.
type MonitorStatus string

const (
	MonitorStarting  MonitorStatus = "starting"
	MonitorDeploying MonitorStatus = "deploying"
	MonitorRunning   MonitorStatus = "running"
	MonitorError     MonitorStatus = "error"
)

// Severity is the closed set of alert-rule/alert severities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus tracks an alert's delivery/acknowledgement lifecycle.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertDelivered    AlertStatus = "delivered"
	AlertFailed       AlertStatus = "failed"
	AlertAcknowledged AlertStatus = "acknowledged"
)

// User is a control-plane tenant, created on first authentication upstream
// and never hard-deleted by the core.
type User struct {
	ID        string
	Email     string
	Tier      Tier
	Active    bool
	CreatedAt time.Time
}

// Secret is ciphertext-at-rest produced by internal/secretvault.Vault; the
// store never holds plaintext.
type Secret struct {
	ID         string
	UserID     string
	Name       string
	Ciphertext string
	CreatedAt  time.Time
}

// Monitor is a declarative data-collection workload.
type Monitor struct {
	ID           string
	UserID       string
	Name         string
	MonitorType  string
	Config       map[string]interface{}
	SecretRefs   map[string]string // logical name -> secret ID
	Status       MonitorStatus
	WorkloadID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSampleAt *time.Time
}

// AlertRule is a predicate over recent samples of one monitor.
type AlertRule struct {
	ID              string
	MonitorID       string
	UserID          string
	Title           string
	Condition       map[string]interface{}
	Severity        Severity
	CooldownMinutes int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Alert is an immutable (except for delivery/ack fields) record of a rule
// firing at a point in time.
type Alert struct {
	ID                string
	RuleID            string
	MonitorID         string
	UserID            string
	Severity          Severity
	Title             string
	Data              map[string]interface{}
	Status            AlertStatus
	DeliveredChannels []string
	DeliveredAt       *time.Time
	AcknowledgedAt    *time.Time
	CreatedAt         time.Time
}

// ChatWebhook is one entry of a NotificationPreference's chat_webhooks list.
type ChatWebhook struct {
	Style string `json:"style"`
	URL   string `json:"url"`
}

// NotificationPreference is a per-user override of which notification
// channels are enabled. A user without a row falls back to the
// process-wide defaults.
type NotificationPreference struct {
	UserID       string
	EmailEnabled bool
	ChatWebhooks []ChatWebhook
}

func newID(prefix string) string {
	return prefix + uuid.New().String()
}
