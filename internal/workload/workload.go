// Package workload deploys and tears down the container that actually
// collects samples for a monitor. The control plane never talks to the
// workload directly after deployment — it only asks the runtime for
// status.
package workload

import (
	"context"
	"fmt"
)

// Spec describes what to run for one monitor.
type Spec struct {
	MonitorID   string
	UserID      string
	MonitorType string
	Config      map[string]interface{}
	Secrets     map[string]string // logical name -> plaintext value, decrypted just-in-time by the caller
}

// Status is the runtime-observed state of a deployed workload.
type Status struct {
	WorkloadID    string
	Phase         string // one of "running", "starting", "not_found", "error"
	ReadyReplicas int32
	TotalReplicas int32
	Conditions    []string
}

// Manager applies, tears down, and reports on workloads. Implementations
// must make Apply idempotent: calling it twice with the same Spec.MonitorID
// converges to one running workload rather than creating duplicates.
type Manager interface {
	Apply(ctx context.Context, spec Spec) (workloadID string, err error)
	Stop(ctx context.Context, workloadID string) error
	Status(ctx context.Context, workloadID string) (Status, error)
}

// ErrUnknownMonitorType is returned by Apply when no workload image is
// registered for spec.MonitorType.
func ErrUnknownMonitorType(monitorType string) error {
	return fmt.Errorf("workload: no image registered for monitor type %q", monitorType)
}
