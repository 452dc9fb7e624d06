// Package reconciler runs the periodic sweep over deployed monitors: it
// re-reads each monitor's workload status and folds it back into the
// monitor's relational status, which is never authoritative on its own —
// it only ever reflects the last observed workload read.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"monitorplane/internal/logging"
	"monitorplane/internal/secretvault"
	"monitorplane/internal/store"
	"monitorplane/internal/workload"
)

// Reconciler owns the sweep loop. It is independent of the alert engine's
// tick loop — a slow or stalled workload backend must never block alert
// evaluation, and vice versa.
type Reconciler struct {
	store    *store.Store
	workload workload.Manager
	vault    *secretvault.Vault
	interval time.Duration
}

// New builds a Reconciler that sweeps every interval.
func New(st *store.Store, wl workload.Manager, vault *secretvault.Vault, interval time.Duration) *Reconciler {
	return &Reconciler{store: st, workload: wl, vault: vault, interval: interval}
}

// Run blocks, sweeping on a fixed interval, until ctx is cancelled. As in
// internal/alertengine, cancelling ctx only stops scheduling of new
// sweeps — an in-flight sweep runs against a context.WithoutCancel
// derivative so shutdown never aborts a workload apply/status call
// partway through. A failure reconciling one monitor is logged and never
// stops the sweep from reaching the rest.
func (r *Reconciler) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			r.SweepOnce(context.WithoutCancel(ctx))
			elapsed := time.Since(start)
			if elapsed > r.interval {
				log.Warn("reconciler sweep overran its interval",
					zap.Duration("elapsed", elapsed), zap.Duration("interval", r.interval))
			}
		}
	}
}

// SweepOnce runs a single reconciliation pass over every deployed monitor.
// Run calls this on every tick; tests call it directly to assert on one
// pass without waiting on a ticker.
func (r *Reconciler) SweepOnce(ctx context.Context) {
	log := logging.FromContext(ctx)

	monitors, err := r.store.ListDeployedMonitors(ctx)
	if err != nil {
		log.Error("listing deployed monitors failed", zap.Error(err))
		return
	}

	for _, m := range monitors {
		r.reconcileOne(ctx, m)
	}
}

// reconcileOne applies the two reconciler-driven monitor transitions:
// running --workload-missing--> error, and error --reapply-ok--> deploying.
// Otherwise a "running" phase promotes the monitor to running, and a
// "starting" phase leaves its status unchanged.
func (r *Reconciler) reconcileOne(ctx context.Context, m *store.Monitor) {
	log := logging.FromContext(ctx).With(zap.String("monitor_id", m.ID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("reconciling monitor panicked", zap.Any("panic", rec))
		}
	}()

	// A monitor already in error has no running workload to read a
	// meaningful status from — the reconciler's job here is to retry the
	// apply, not to re-derive the same "error" it already recorded.
	if m.Status == store.MonitorError {
		r.tryReapply(ctx, m)
		return
	}

	status, err := r.workload.Status(ctx, m.WorkloadID)
	if err != nil {
		log.Warn("reading workload status failed, leaving monitor status unchanged", zap.Error(err))
		return
	}

	switch status.Phase {
	case "running":
		if m.Status != store.MonitorRunning {
			if err := r.store.UpdateMonitorStatus(ctx, m.ID, store.MonitorRunning, m.WorkloadID); err != nil {
				log.Error("promoting monitor to running failed", zap.Error(err))
			}
		}
	case "not_found", "error":
		if err := r.store.UpdateMonitorStatus(ctx, m.ID, store.MonitorError, m.WorkloadID); err != nil {
			log.Error("demoting monitor to error failed", zap.Error(err))
		}
	case "starting":
		// no transition: deploying monitors simply stay deploying until
		// the workload either becomes ready or reports a failure.
	}
}

// tryReapply re-derives plaintext secrets for an errored monitor and
// re-issues Apply. Apply succeeding moves the monitor back to "deploying"
// without requiring any external action.
func (r *Reconciler) tryReapply(ctx context.Context, m *store.Monitor) {
	log := logging.FromContext(ctx).With(zap.String("monitor_id", m.ID))

	secrets := make(map[string]string, len(m.SecretRefs))
	for logicalName, secretID := range m.SecretRefs {
		sec, err := r.store.GetSecretForUser(ctx, m.UserID, secretID)
		if err != nil {
			log.Warn("loading secret for reapply failed, skipping", zap.Error(err))
			return
		}
		plaintext, err := r.vault.Decrypt(sec.Ciphertext)
		if err != nil {
			log.Warn("decrypting secret for reapply failed, skipping", zap.Error(err))
			return
		}
		secrets[logicalName] = plaintext
	}

	workloadID, err := r.workload.Apply(ctx, workload.Spec{
		MonitorID:   m.ID,
		UserID:      m.UserID,
		MonitorType: m.MonitorType,
		Config:      m.Config,
		Secrets:     secrets,
	})
	if err != nil {
		log.Warn("reapplying errored monitor's workload failed", zap.Error(err))
		return
	}

	if err := r.store.UpdateMonitorStatus(ctx, m.ID, store.MonitorDeploying, workloadID); err != nil {
		log.Error("recording reapplied monitor status failed", zap.Error(err))
	}
}
