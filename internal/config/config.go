// Package config loads process configuration from the environment (with an
// optional .env file for local development), mirroring the flag/env wiring
// the control plane's own cmd/server uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of environment-driven settings every component
// needs at startup.
type Config struct {
	Host string
	Port int

	// AlertEvaluationInterval is the alert engine's tick cadence.
	AlertEvaluationInterval time.Duration

	// ReconcileInterval is the workload reconciler's sweep cadence.
	ReconcileInterval time.Duration

	// DatabaseURL is the relational store DSN (postgres://...).
	DatabaseURL string

	// MasterKey is the base64-encoded 32-byte AES-256 key for the secret
	// vault. OldMasterKeys are tried on decrypt failure (key rotation).
	MasterKey    string
	OldMasterKeys []string

	// SampleStoreURL selects the sample store backend: redis://... for the
	// real backend, simulator:// for the deterministic in-process one.
	SampleStoreURL   string
	SampleStoreToken string
	SampleStoreDB    int

	// CooldownEndpoints are the etcd endpoints backing the cooldown store.
	CooldownEndpoints []string

	// Kubernetes workload manager settings.
	KubeconfigPath string
	KubeContext    string
	KubeNamespace  string

	// MailProviderAPIKey is the SendGrid API key.
	MailProviderAPIKey string
	MailFromEmail      string
	MailFromName       string

	// DefaultChatWebhooks maps style (block|embed|card) to a process-wide
	// default webhook URL, used when a user has no notification preference
	// row.
	DefaultChatWebhooks map[string]string

	// RequestsPerMinute bounds the tool facade's per-IP rate limit.
	RequestsPerMinute int

	// CORSAllowedOrigins lists origins permitted to call the tool facade.
	CORSAllowedOrigins []string
}

// Load reads environment variables into a Config. A .env file in the
// working directory is loaded first if present; its absence is not an
// error — it is a development convenience only, never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:                    getEnv("HOST", "0.0.0.0"),
		Port:                    getEnvInt("PORT", 8080),
		AlertEvaluationInterval: getEnvDuration("ALERT_EVALUATION_INTERVAL", 30*time.Second),
		ReconcileInterval:       getEnvDuration("RECONCILE_INTERVAL", 60*time.Second),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		MasterKey:               getEnv("MASTER_KEY", ""),
		OldMasterKeys:           getEnvList("MASTER_KEY_OLD", nil),
		SampleStoreURL:          getEnv("SAMPLE_STORE_URL", "simulator://"),
		SampleStoreToken:        getEnv("SAMPLE_STORE_TOKEN", ""),
		SampleStoreDB:           getEnvInt("SAMPLE_STORE_DB", 0),
		CooldownEndpoints:       getEnvList("COOLDOWN_ENDPOINTS", []string{"localhost:2379"}),
		KubeconfigPath:          getEnv("KUBECONFIG", ""),
		KubeContext:             getEnv("KUBE_CONTEXT", ""),
		KubeNamespace:           getEnv("KUBE_NAMESPACE", "monitorplane"),
		MailProviderAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		MailFromEmail:           getEnv("MAIL_FROM_EMAIL", "alerts@monitorplane.local"),
		MailFromName:            getEnv("MAIL_FROM_NAME", "Monitorplane Alerts"),
		DefaultChatWebhooks: map[string]string{
			"block": getEnv("DEFAULT_WEBHOOK_BLOCK", ""),
			"embed": getEnv("DEFAULT_WEBHOOK_EMBED", ""),
			"card":  getEnv("DEFAULT_WEBHOOK_CARD", ""),
		},
		RequestsPerMinute:  getEnvInt("RATE_LIMIT_RPM", 120),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.MasterKey == "" {
		return nil, fmt.Errorf("config: MASTER_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	// Bare ALERT_EVALUATION_INTERVAL is specified in seconds.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
