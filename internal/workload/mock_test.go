package workload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIsIdempotentForSameMonitor(t *testing.T) {
	m := NewMockManager()
	spec := Spec{MonitorID: "mon_1", MonitorType: "http_probe", Config: map[string]interface{}{"url": "https://example.com"}}

	id1, err := m.Apply(context.Background(), spec)
	require.NoError(t, err)

	id2, err := m.Apply(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "applying the same monitor twice must converge to one workload")
}

func TestApplyRejectsUnknownMonitorType(t *testing.T) {
	m := NewMockManager()
	_, err := m.Apply(context.Background(), Spec{MonitorID: "mon_1", MonitorType: "nonsense"})
	require.Error(t, err)
}

func TestStopThenStatusReportsMissing(t *testing.T) {
	m := NewMockManager()
	id, err := m.Apply(context.Background(), Spec{MonitorID: "mon_2", MonitorType: "log_tail"})
	require.NoError(t, err)

	status, err := m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "running", status.Phase)

	require.NoError(t, m.Stop(context.Background(), id))

	status, err = m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "not_found", status.Phase)
}

func TestApplyAfterStopCreatesNewWorkload(t *testing.T) {
	m := NewMockManager()
	spec := Spec{MonitorID: "mon_3", MonitorType: "price_feed"}

	id1, err := m.Apply(context.Background(), spec)
	require.NoError(t, err)
	require.NoError(t, m.Stop(context.Background(), id1))

	id2, err := m.Apply(context.Background(), spec)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}
