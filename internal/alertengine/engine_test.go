//go:build integration

package alertengine_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"monitorplane/internal/alertengine"
	"monitorplane/internal/cooldown"
	"monitorplane/internal/dbx"
	"monitorplane/internal/dispatch"
	"monitorplane/internal/sampledb"
	"monitorplane/internal/store"
	"monitorplane/internal/testsupport"
)

// fixedSampleStore always reports one sample far over any reasonable
// threshold, so a rule's condition fires on every tick for as long as the
// rule isn't suppressed by cooldown.
type fixedSampleStore struct{}

func (fixedSampleStore) Append(context.Context, sampledb.Sample) error { return nil }

func (fixedSampleStore) Window(context.Context, string, time.Duration, int) ([]sampledb.Sample, error) {
	return []sampledb.Sample{{
		Timestamp: time.Now(),
		Fields:    map[string]interface{}{"latency_ms": 999.0},
	}}, nil
}

// TestCooldownSuppressesRefiringWithinWindowAgainstRealPostgres exercises
// the cooldown invariant end to end: a rule with a non-zero cooldown
// fires once, a second tick inside the cooldown window produces no new
// alert, and a tick after the cooldown has expired fires again.
func TestCooldownSuppressesRefiringWithinWindowAgainstRealPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := testsupport.StartPostgres(ctx)
	require.NoError(t, err)
	defer pg.Container.Terminate(ctx)

	db, err := sql.Open("postgres", pg.DSN)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, dbx.Migrate(ctx, db))

	st := store.Open(db)
	user, err := st.GetOrCreateUser(ctx, "cooldown@example.com")
	require.NoError(t, err)

	monitor, err := st.CreateMonitor(ctx, user.ID, "checkout latency", "http_probe",
		map[string]interface{}{"url": "https://example.com", "interval_seconds": float64(30)}, nil)
	require.NoError(t, err)

	condition := map[string]interface{}{
		"type": "threshold", "field": "latency_ms",
		"aggregation": "latest", "operator": ">", "value": 500.0,
	}
	rule, err := st.CreateAlertRule(ctx, user.ID, monitor.ID, "latency high", condition, store.SeverityHigh, 10)
	require.NoError(t, err)

	cd := cooldown.NewMemoryStore()
	// No mail key and no default chat webhooks configured: dispatch has no
	// channel to fan out to and only records an empty delivered_channels
	// set, so this test isolates the cooldown accounting from delivery.
	dp := dispatch.New(st, "", "", "", nil)
	defer dp.Close()

	// alertengine exposes no single-tick entry point, only Run's ticker
	// loop, so each call below starts a fresh Engine against a short
	// ticker and lets a bounded timeout stop it after its ticks have run.
	runFor := func(d time.Duration) {
		runCtx, cancelRun := context.WithTimeout(ctx, d)
		defer cancelRun()
		e := alertengine.New(st, fixedSampleStore{}, cd, dp, 10*time.Millisecond)
		_ = e.Run(runCtx)
	}

	runFor(50 * time.Millisecond)

	alerts, err := st.ListAlertsForUser(ctx, user.ID, monitor.ID, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1, "first tick inside an empty cooldown window must fire exactly once")

	runFor(50 * time.Millisecond)

	alerts, err = st.ListAlertsForUser(ctx, user.ID, monitor.ID, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1, "a tick inside the cooldown window must not produce a second alert")

	// Manually expire the cooldown key to simulate the window elapsing,
	// rather than sleeping out a real 10-minute cooldown in a test.
	require.NoError(t, cd.Set(ctx, cooldown.RuleKey(rule.ID), -time.Second))

	runFor(50 * time.Millisecond)

	alerts, err = st.ListAlertsForUser(ctx, user.ID, monitor.ID, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2, "once the cooldown has expired the rule must be able to fire again")
}
