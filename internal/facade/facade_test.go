//go:build integration

package facade_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"monitorplane/internal/apperr"
	"monitorplane/internal/dbx"
	"monitorplane/internal/facade"
	"monitorplane/internal/sampledb"
	"monitorplane/internal/secretvault"
	"monitorplane/internal/store"
	"monitorplane/internal/testsupport"
	"monitorplane/internal/workload"
)

// testMasterKey is a fixed base64-encoded 32-byte AES-256 key used only by
// tests — never a real deployment's secret.
const testMasterKey = "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE="

// nullSamples satisfies sampledb.Store without a real time-series backend;
// none of the ownership scenarios below read samples.
type nullSamples struct{}

func (nullSamples) Append(context.Context, sampledb.Sample) error { return nil }

func (nullSamples) Window(context.Context, string, time.Duration, int) ([]sampledb.Sample, error) {
	return nil, nil
}

// TestOwnershipScopingAgainstRealPostgres exercises the invariant every
// facade handler relies on: a monitor, alert rule, or alert is only ever
// visible to the user who owns it. A second user asking about the first
// user's entities must get the same "not found or access denied" apperr
// sentinel a truly nonexistent ID would produce, never the first user's
// data and never a different error.
func TestOwnershipScopingAgainstRealPostgres(t *testing.T) {
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
	vault, err := secretvault.New(testMasterKey)
	require.NoError(t, err)
	wl := workload.NewMockManager()
	f := facade.New(st, vault, wl, nullSamples{})

	owner, err := st.GetOrCreateUser(ctx, "owner@example.com")
	require.NoError(t, err)
	intruder, err := st.GetOrCreateUser(ctx, "intruder@example.com")
	require.NoError(t, err)

	createPayload, err := json.Marshal(map[string]interface{}{
		"name": "checkout latency", "monitor_type": "http_probe",
		"config": map[string]interface{}{"url": "https://example.com", "interval_seconds": float64(30)},
	})
	require.NoError(t, err)

	_, err = f.Handle(ctx, owner.ID, facade.OpCreateMonitor, createPayload)
	require.NoError(t, err)

	monitor, err := st.ListMonitorsForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, monitor, 1)
	mID := monitor[0].ID

	statusPayload, err := json.Marshal(map[string]interface{}{"monitor_id": mID})
	require.NoError(t, err)

	// The owner can see their own monitor.
	_, err = f.Handle(ctx, owner.ID, facade.OpGetMonitorStatus, statusPayload)
	require.NoError(t, err)

	// The intruder gets the same not-found-or-forbidden error a bogus ID
	// would produce, never the owner's monitor.
	_, err = f.Handle(ctx, intruder.ID, facade.OpGetMonitorStatus, statusPayload)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.Handle(ctx, intruder.ID, facade.OpDeleteMonitor, statusPayload)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// The owner's monitor must still exist — the intruder's delete attempt
	// must not have touched it.
	_, err = f.Handle(ctx, owner.ID, facade.OpGetMonitorStatus, statusPayload)
	require.NoError(t, err)

	ruleCondition := map[string]interface{}{
		"type": "threshold", "field": "latency_ms",
		"aggregation": "latest", "operator": ">", "value": 500.0,
	}
	rule, err := st.CreateAlertRule(ctx, owner.ID, mID, "latency high", ruleCondition, store.SeverityHigh, 5)
	require.NoError(t, err)

	rulePayload, err := json.Marshal(map[string]interface{}{"rule_id": rule.ID, "title": "renamed"})
	require.NoError(t, err)

	_, err = f.Handle(ctx, intruder.ID, facade.OpUpdateAlertRule, rulePayload)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	alert, err := st.CreateAlert(ctx, rule, map[string]interface{}{"condition": ruleCondition})
	require.NoError(t, err)

	alertPayload, err := json.Marshal(map[string]interface{}{"alert_id": alert.ID})
	require.NoError(t, err)

	_, err = f.Handle(ctx, intruder.ID, facade.OpAcknowledgeAlert, alertPayload)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.Handle(ctx, owner.ID, facade.OpAcknowledgeAlert, alertPayload)
	require.NoError(t, err)
}
