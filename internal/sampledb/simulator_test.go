package sampledb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorStoreWindowOrderingAndBounds(t *testing.T) {
	s := NewSimulatorStore()
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(context.Background(), Sample{
			MonitorID: "mon_1",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Fields:    map[string]interface{}{"value": float64(i)},
		}))
	}

	window, err := s.Window(context.Background(), "mon_1", 10*time.Minute, 3)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, float64(0), window[0].Fields["value"], "window must be newest-first")
}

func TestSimulatorStoreExcludesSamplesOutsideDuration(t *testing.T) {
	s := NewSimulatorStore()
	now := time.Now()

	require.NoError(t, s.Append(context.Background(), Sample{MonitorID: "mon_1", Timestamp: now.Add(-2 * time.Hour), Fields: map[string]interface{}{"value": 1.0}}))
	require.NoError(t, s.Append(context.Background(), Sample{MonitorID: "mon_1", Timestamp: now, Fields: map[string]interface{}{"value": 2.0}}))

	window, err := s.Window(context.Background(), "mon_1", 15*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 2.0, window[0].Fields["value"])
}

func TestSimulatorStoreScopesToMonitor(t *testing.T) {
	s := NewSimulatorStore()
	now := time.Now()

	require.NoError(t, s.Append(context.Background(), Sample{MonitorID: "mon_a", Timestamp: now, Fields: map[string]interface{}{"value": 1.0}}))
	require.NoError(t, s.Append(context.Background(), Sample{MonitorID: "mon_b", Timestamp: now, Fields: map[string]interface{}{"value": 2.0}}))

	window, err := s.Window(context.Background(), "mon_a", time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 1.0, window[0].Fields["value"])
}
