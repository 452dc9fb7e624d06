package facade

import (
	"context"
	"encoding/json"

	"monitorplane/internal/apperr"
	"monitorplane/internal/dispatch/channel"
	"monitorplane/internal/store"
)

var validChatStyles = map[string]bool{
	string(channel.StyleBlock): true,
	string(channel.StyleEmbed): true,
	string(channel.StyleCard):  true,
}

// updateNotificationPreferencesRequest uses pointer/nil-slice fields so an
// omitted field keeps the user's current value (or the process-wide
// default, for a user with no row yet) instead of being overwritten to
// the zero value — the same partial-update shape update_alert_rule uses.
type updateNotificationPreferencesRequest struct {
	EmailEnabled *bool               `json:"email_enabled"`
	ChatWebhooks []chatWebhookUpdate `json:"chat_webhooks"`
}

type chatWebhookUpdate struct {
	Style string `json:"style"`
	URL   string `json:"url"`
}

type notificationPreferencesResponse struct {
	EmailEnabled bool                `json:"email_enabled"`
	ChatWebhooks []chatWebhookUpdate `json:"chat_webhooks"`
}

func (f *Facade) updateNotificationPreferences(ctx context.Context, userID string, payload json.RawMessage) (interface{}, error) {
	var req updateNotificationPreferencesRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	existing, err := f.store.GetNotificationPreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	pref := &store.NotificationPreference{UserID: userID, EmailEnabled: existing.EmailEnabled, ChatWebhooks: existing.ChatWebhooks}
	if req.EmailEnabled != nil {
		pref.EmailEnabled = *req.EmailEnabled
	}
	if req.ChatWebhooks != nil {
		webhooks := make([]store.ChatWebhook, 0, len(req.ChatWebhooks))
		for _, w := range req.ChatWebhooks {
			if !validChatStyles[w.Style] {
				return nil, apperr.Validation("chat webhook style must be one of block, embed, card, got %q", w.Style)
			}
			if w.URL == "" {
				return nil, apperr.Validation("chat webhook url is required")
			}
			webhooks = append(webhooks, store.ChatWebhook{Style: w.Style, URL: w.URL})
		}
		pref.ChatWebhooks = webhooks
	}

	if err := f.store.UpsertNotificationPreference(ctx, pref); err != nil {
		return nil, err
	}

	resp := notificationPreferencesResponse{EmailEnabled: pref.EmailEnabled}
	for _, w := range pref.ChatWebhooks {
		resp.ChatWebhooks = append(resp.ChatWebhooks, chatWebhookUpdate{Style: w.Style, URL: w.URL})
	}
	return map[string]interface{}{"notification_preferences": resp}, nil
}
