//go:build integration

package testsupport_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"monitorplane/internal/cooldown"
	"monitorplane/internal/dbx"
	"monitorplane/internal/reconciler"
	"monitorplane/internal/secretvault"
	"monitorplane/internal/store"
	"monitorplane/internal/testsupport"
	"monitorplane/internal/workload"
)

// testMasterKey is a fixed base64-encoded 32-byte AES-256 key used only by
// tests — never a real deployment's secret.
const testMasterKey = "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE="

func TestMigrateAndCreateMonitorAgainstRealPostgres(t *testing.T) {
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
	user, err := st.GetOrCreateUser(ctx, "alice@example.com")
	require.NoError(t, err)

	monitor, err := st.CreateMonitor(ctx, user.ID, "checkout latency", "http_probe",
		map[string]interface{}{"url": "https://example.com", "interval_seconds": float64(30)}, nil)
	require.NoError(t, err)
	require.Equal(t, store.MonitorStarting, monitor.Status)

	fetched, err := st.GetMonitorForUser(ctx, user.ID, monitor.ID)
	require.NoError(t, err)
	require.Equal(t, monitor.Name, fetched.Name)
}

func TestCooldownAgainstRealEtcd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	etcdContainer, err := testsupport.StartEtcd(ctx)
	require.NoError(t, err)
	defer etcdContainer.Container.Terminate(ctx)

	store, err := cooldown.NewEtcdStore([]string{etcdContainer.Endpoint}, 5*time.Second)
	require.NoError(t, err)
	defer store.Close()

	key := cooldown.RuleKey("rule_test")
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Set(ctx, key, 5*time.Second))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestReconcilerTransitionsAgainstRealPostgres(t *testing.T) {
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

	user, err := st.GetOrCreateUser(ctx, "bob@example.com")
	require.NoError(t, err)

	ciphertext, err := vault.Encrypt("super-secret")
	require.NoError(t, err)
	sec, err := st.CreateSecret(ctx, user.ID, "api_key", ciphertext)
	require.NoError(t, err)

	monitor, err := st.CreateMonitor(ctx, user.ID, "checkout latency", "http_probe",
		map[string]interface{}{"url": "https://example.com"}, map[string]string{"api_key": sec.ID})
	require.NoError(t, err)

	wl := workload.NewMockManager()
	workloadID, err := wl.Apply(ctx, workload.Spec{MonitorID: monitor.ID, MonitorType: "http_probe"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateMonitorStatus(ctx, monitor.ID, store.MonitorRunning, workloadID))

	rec := reconciler.New(st, wl, vault, time.Second)

	// workload-missing: the running monitor's workload disappears out from
	// under it; the next sweep must demote it to error.
	require.NoError(t, wl.Stop(ctx, workloadID))
	rec.SweepOnce(ctx)

	fetched, err := st.GetMonitorForUser(ctx, user.ID, monitor.ID)
	require.NoError(t, err)
	require.Equal(t, store.MonitorError, fetched.Status)

	// reapply-ok: the mock manager always succeeds on Apply, so the next
	// sweep must reapply the errored monitor and move it to deploying.
	rec.SweepOnce(ctx)

	fetched, err = st.GetMonitorForUser(ctx, user.ID, monitor.ID)
	require.NoError(t, err)
	require.Equal(t, store.MonitorDeploying, fetched.Status)
}
