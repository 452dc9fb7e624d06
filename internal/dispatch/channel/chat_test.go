package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatBlockPayloadShape(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChat(StyleBlock, srv.URL, srv.Client())
	err := c.Send(context.Background(), Notification{
		AlertID: "alert_1", MonitorName: "checkout", RuleTitle: "latency high", Severity: "high",
		Message: "p99 over threshold", Condition: "latest(latency_ms) > 200",
	})
	require.NoError(t, err)

	attachments, ok := received["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)
	attachment := attachments[0].(map[string]interface{})
	assert.Equal(t, SeverityColor("high"), attachment["color"])
	fields, ok := attachment["fields"].([]interface{})
	require.True(t, ok)
	assert.Len(t, fields, 4)
}

func TestChatEmbedPayloadShape(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewChat(StyleEmbed, srv.URL, srv.Client())
	err := c.Send(context.Background(), Notification{
		AlertID: "alert_1", MonitorName: "checkout", RuleTitle: "latency high", Severity: "critical",
	})
	require.NoError(t, err)

	embeds, ok := received["embeds"].([]interface{})
	require.True(t, ok)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, "latency high", embed["title"])
	assert.NotZero(t, embed["color"])
}

func TestChatCardPayloadShape(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChat(StyleCard, srv.URL, srv.Client())
	err := c.Send(context.Background(), Notification{AlertID: "alert_2", MonitorName: "feed", RuleTitle: "price spike", Severity: "medium"})
	require.NoError(t, err)

	assert.Equal(t, "[medium] price spike", received["summary"])
	assert.Equal(t, SeverityColor("medium"), received["themeColor"])
	sections, ok := received["sections"].([]interface{})
	require.True(t, ok)
	require.Len(t, sections, 1)
	section := sections[0].(map[string]interface{})
	assert.Equal(t, "price spike", section["activityTitle"])
}

func TestChatSendFailsOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChat(StyleBlock, srv.URL, srv.Client())
	err := c.Send(context.Background(), Notification{})
	require.Error(t, err)
}
