package workload

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockManager is an in-process Manager for tests and local development
// that never touches a real cluster — it just tracks applied specs and
// reports them running.
type MockManager struct {
	mu      sync.Mutex
	applied map[string]Spec
	stopped map[string]bool
}

// NewMockManager returns an empty mock.
func NewMockManager() *MockManager {
	return &MockManager{applied: map[string]Spec{}, stopped: map[string]bool{}}
}

func (m *MockManager) Apply(_ context.Context, spec Spec) (string, error) {
	if _, ok := ImageFor(spec.MonitorType); !ok {
		return "", ErrUnknownMonitorType(spec.MonitorType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.applied {
		if s.MonitorID == spec.MonitorID && !m.stopped[id] {
			m.applied[id] = spec
			return id, nil
		}
	}
	id := "wl_" + uuid.New().String()
	m.applied[id] = spec
	return id, nil
}

func (m *MockManager) Stop(_ context.Context, workloadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped[workloadID] = true
	return nil
}

func (m *MockManager) Status(_ context.Context, workloadID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped[workloadID] {
		return Status{WorkloadID: workloadID, Phase: "not_found"}, nil
	}
	if _, ok := m.applied[workloadID]; !ok {
		return Status{WorkloadID: workloadID, Phase: "not_found"}, nil
	}
	return Status{
		WorkloadID:    workloadID,
		Phase:         "running",
		ReadyReplicas: 1,
		TotalReplicas: 1,
	}, nil
}
