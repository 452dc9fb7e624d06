package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"monitorplane/internal/dispatch/channel"
	"monitorplane/internal/logging"
)

// fakeChannel lets a test control exactly which channels succeed and
// which fail, without standing up real SendGrid/webhook endpoints.
type fakeChannel struct {
	name string
	err  error
}

func (f fakeChannel) Name() string { return f.name }

func (f fakeChannel) Send(context.Context, channel.Notification) error { return f.err }

// TestSendAllRecordsPartialDeliverySuccess: of three configured channels,
// one fails and two succeed, and the accounting must list only the
// channels that actually delivered.
func TestSendAllRecordsPartialDeliverySuccess(t *testing.T) {
	d := &Dispatcher{}
	ctx := logging.WithLogger(context.Background(), zap.NewNop())

	channels := []channel.Channel{
		fakeChannel{name: "email"},
		fakeChannel{name: "chat-block", err: errors.New("webhook returned 500")},
		fakeChannel{name: "chat-embed"},
	}

	delivered := d.sendAll(ctx, channels, channel.Notification{AlertID: "alert_1"})

	assert.ElementsMatch(t, []string{"email", "chat-embed"}, delivered)
}

// TestSendAllReturnsEmptyNotNilWhenEveryChannelFails matters because the
// caller persists delivered directly as the alert's delivered_channels —
// a nil slice and an empty one must both serialize to `[]`, not `null`.
func TestSendAllReturnsEmptyNotNilWhenEveryChannelFails(t *testing.T) {
	d := &Dispatcher{}
	ctx := logging.WithLogger(context.Background(), zap.NewNop())

	channels := []channel.Channel{
		fakeChannel{name: "email", err: errors.New("rejected")},
		fakeChannel{name: "chat-card", err: errors.New("timeout")},
	}

	delivered := d.sendAll(ctx, channels, channel.Notification{AlertID: "alert_2"})

	assert.NotNil(t, delivered)
	assert.Empty(t, delivered)
}

// TestSendAllRecordsFullDeliverySuccess is the Scenario 5 complement: every
// configured channel succeeds, so every one must be recorded.
func TestSendAllRecordsFullDeliverySuccess(t *testing.T) {
	d := &Dispatcher{}
	ctx := logging.WithLogger(context.Background(), zap.NewNop())

	channels := []channel.Channel{
		fakeChannel{name: "email"},
		fakeChannel{name: "chat-block"},
	}

	delivered := d.sendAll(ctx, channels, channel.Notification{AlertID: "alert_3"})

	assert.ElementsMatch(t, []string{"email", "chat-block"}, delivered)
}
