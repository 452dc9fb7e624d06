// Package dispatch fans an alert out to every notification channel a
// user's preference enables, and records which ones actually succeeded.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"monitorplane/internal/dispatch/channel"
	"monitorplane/internal/logging"
	"monitorplane/internal/store"
)

// Dispatcher owns the single long-lived *http.Client used by every chat
// webhook channel for the life of the process, rather than opening one
// per alert. The email channel sends through its own SendGrid client.
type Dispatcher struct {
	store      *store.Store
	httpClient *http.Client

	mailAPIKey   string
	mailFrom     string
	mailFromName string

	defaultChatWebhooks map[string]string // style -> url
}

// New builds a Dispatcher. defaultChatWebhooks is used when a user's
// NotificationPreference lists no chat webhooks; a user who lists any
// replaces the whole default set, so styles they did not list get nothing.
func New(st *store.Store, mailAPIKey, mailFrom, mailFromName string, defaultChatWebhooks map[string]string) *Dispatcher {
	return &Dispatcher{
		store:      st,
		httpClient: &http.Client{Timeout: 30 * time.Second},

		mailAPIKey:   mailAPIKey,
		mailFrom:     mailFrom,
		mailFromName: mailFromName,

		defaultChatWebhooks: defaultChatWebhooks,
	}
}

// Close releases the shared HTTP client's idle connections on shutdown.
func (d *Dispatcher) Close() {
	d.httpClient.CloseIdleConnections()
}

// Dispatch resolves the alert owner's notification preference, fans the
// alert out to every enabled channel concurrently (email goes to
// userEmail), and records the delivery
// result on the alert. It never returns an error for partial channel
// failure — only total failure to even attempt dispatch — since delivery
// accounting is captured in delivered_channels, not in an error return.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *store.Alert, monitor *store.Monitor, userEmail string) error {
	pref, err := d.store.GetNotificationPreference(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("dispatch: resolving notification preference: %w", err)
	}

	channels := d.resolveChannels(pref, userEmail)
	n := channel.Notification{
		AlertID:     alert.ID,
		MonitorName: monitor.Name,
		RuleTitle:   alert.Title,
		Severity:    string(alert.Severity),
		Message:     fmt.Sprintf("%s fired on monitor %q", alert.Title, monitor.Name),
		Condition:   conditionText(alert.Data),
		TriggeredAt: alert.CreatedAt,
		Data:        alert.Data,
	}
	if v, ok := latestTriggerValue(alert.Data); ok {
		n.LatestValue = v
		n.HasLatestValue = true
	}

	delivered := d.sendAll(ctx, channels, n)
	return d.store.RecordDelivery(ctx, alert.ID, delivered)
}

func (d *Dispatcher) resolveChannels(pref *store.NotificationPreference, userEmail string) []channel.Channel {
	var channels []channel.Channel

	if pref.EmailEnabled && d.mailAPIKey != "" && userEmail != "" {
		channels = append(channels, channel.NewEmail(d.mailAPIKey, d.mailFrom, d.mailFromName, userEmail))
	}

	webhooks := d.defaultChatWebhooks
	if len(pref.ChatWebhooks) > 0 {
		webhooks = map[string]string{}
		for _, w := range pref.ChatWebhooks {
			webhooks[w.Style] = w.URL
		}
	}
	for style, url := range webhooks {
		if url == "" {
			continue
		}
		channels = append(channels, channel.NewChat(channel.ChatStyle(style), url, d.httpClient))
	}

	return channels
}

// sendAll dispatches to every channel concurrently and returns the names
// of the ones that succeeded, in no particular order.
func (d *Dispatcher) sendAll(ctx context.Context, channels []channel.Channel, n channel.Notification) []string {
	var (
		mu        sync.Mutex
		delivered []string
		wg        sync.WaitGroup
	)

	log := logging.FromContext(ctx)
	for _, ch := range channels {
		wg.Add(1)
		go func(ch channel.Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, n); err != nil {
				log.Warn("channel delivery failed",
					zap.String("channel", ch.Name()),
					zap.String("alert_id", n.AlertID),
					zap.Error(err))
				return
			}
			mu.Lock()
			delivered = append(delivered, ch.Name())
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	if delivered == nil {
		delivered = []string{}
	}
	return delivered
}

// conditionText renders alert.Data's stored condition as the
// "<aggregation>(<field>) <op> <value>" string every channel rendering
// carries. Defaults "aggregation" to "latest" exactly as
// internal/evaluator.Parse does for a condition that omitted it.
func conditionText(data map[string]interface{}) string {
	cond, ok := data["condition"].(map[string]interface{})
	if !ok {
		return ""
	}
	agg, _ := cond["aggregation"].(string)
	if agg == "" {
		agg = "latest"
	}
	field, _ := cond["field"].(string)
	op, _ := cond["operator"].(string)
	value := cond["value"]
	return fmt.Sprintf("%s(%s) %s %v", agg, field, op, value)
}

// latestTriggerValue extracts the numeric value of the condition's field
// from data.trigger_data[0] — the newest sample snapshotted onto the
// alert at creation time.
func latestTriggerValue(data map[string]interface{}) (float64, bool) {
	cond, ok := data["condition"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	field, _ := cond["field"].(string)
	if field == "" {
		return 0, false
	}
	triggerData, ok := data["trigger_data"].([]interface{})
	if !ok || len(triggerData) == 0 {
		return 0, false
	}
	sample, ok := triggerData[0].(map[string]interface{})
	if !ok {
		return 0, false
	}
	fields, ok := sample["fields"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	raw, ok := fields[field]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
